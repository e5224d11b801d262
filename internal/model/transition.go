package model

import "time"

// Transition describes one compare-and-set change of a reservation's state
// together with the companion writes that must land atomically with it.
// Stores apply it only when the reservation is still in From.
type Transition struct {
	ReservationID uint64
	From          ReservationState
	To            ReservationState
	At            time.Time

	SetCheckIn       bool // check_in_time = At, unless already set
	SetCheckOut      bool // check_out_time = At
	SetLeftAt        bool // left_at = At
	ClearLeftAt      bool // left_at = NULL
	MarkCreditImpact bool

	// OpenCheckIn, when set, is inserted as the reservation's active
	// check-in record. Its ID is filled in by the store.
	OpenCheckIn *CheckInRecord
	// CheckInStatus, when set, is written to the open check-in record.
	// left stamps left_at, checked_out stamps check_out_time.
	CheckInStatus CheckInStatus
	// Violation, when set, is inserted. Its ID is filled in by the store.
	Violation *Violation
}

// ApplyTo mutates r the way the store does. Stores use it to keep the
// in-memory and SQL paths in agreement.
func (t *Transition) ApplyTo(r *Reservation) {
	r.State = t.To
	at := t.At
	if t.SetCheckIn && r.CheckInTime == nil {
		r.CheckInTime = &at
	}
	if t.SetCheckOut {
		r.CheckOutTime = &at
	}
	if t.SetLeftAt {
		r.LeftAt = &at
	}
	if t.ClearLeftAt {
		r.LeftAt = nil
	}
	if t.MarkCreditImpact {
		r.CreditImpact = true
	}
	r.UpdatedAt = at
}

// ApplyToCheckIn mutates an open check-in record according to CheckInStatus.
func (t *Transition) ApplyToCheckIn(c *CheckInRecord) {
	at := t.At
	c.Status = t.CheckInStatus
	switch t.CheckInStatus {
	case CheckInLeft:
		c.LeftAt = &at
	case CheckInCheckedOut:
		c.CheckOutTime = &at
	}
	c.UpdatedAt = at
}
