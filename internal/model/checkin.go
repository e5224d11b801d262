package model

import "time"

// CheckInMethod records how the holder proved presence at the seat.
type CheckInMethod string

const (
	MethodManual CheckInMethod = "manual"
	MethodQRCode CheckInMethod = "qrcode"
)

// Valid reports whether m is a known method.
func (m CheckInMethod) Valid() bool { return m == MethodManual || m == MethodQRCode }

// CheckInStatus tracks the presence of the holder during an active reservation.
type CheckInStatus string

const (
	CheckInCheckedIn  CheckInStatus = "checked_in"
	CheckInLeft       CheckInStatus = "left"
	CheckInReturned   CheckInStatus = "returned"
	CheckInCheckedOut CheckInStatus = "checked_out"
)

// CheckInRecord is the presence log attached to a reservation. At most one
// record per reservation has a status other than checked_out.
//
// Fields:
//  ID            – primary key identifier.
//  ReservationID – reservation checked in to.
//  UserID        – user who checked in.
//  CheckInTime   – when presence was first recorded.
//  CheckOutTime  – when the record was closed.
//  LeftAt        – start of the most recent leave.
//  Method        – manual or qrcode.
//  Status        – checked_in, left, returned or checked_out.
type CheckInRecord struct {
	ID            uint64        `json:"id"`
	ReservationID uint64        `json:"reservation_id"`
	UserID        uint64        `json:"user_id"`
	CheckInTime   time.Time     `json:"check_in_time"`
	CheckOutTime  *time.Time    `json:"check_out_time"`
	LeftAt        *time.Time    `json:"left_at"`
	Method        CheckInMethod `json:"method"`
	Status        CheckInStatus `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Open reports whether the record is still the active one for its reservation.
func (c *CheckInRecord) Open() bool { return c.Status != CheckInCheckedOut }

// Clone returns a deep copy.
func (c *CheckInRecord) Clone() *CheckInRecord {
	if c == nil {
		return nil
	}
	cp := *c
	cp.CheckOutTime = cloneTime(c.CheckOutTime)
	cp.LeftAt = cloneTime(c.LeftAt)
	return &cp
}

// CheckInFilter narrows check-in history queries.
type CheckInFilter struct {
	UserID        uint64
	ReservationID uint64
	Status        CheckInStatus
	Limit         int
}

// Matches applies the filter in memory.
func (f CheckInFilter) Matches(c *CheckInRecord) bool {
	if f.UserID != 0 && c.UserID != f.UserID {
		return false
	}
	if f.ReservationID != 0 && c.ReservationID != f.ReservationID {
		return false
	}
	if f.Status != "" && c.Status != f.Status {
		return false
	}
	return true
}
