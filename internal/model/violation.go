package model

import "time"

// ViolationType classifies a breach of the reservation rules.
type ViolationType string

const (
	ViolationNoShow            ViolationType = "NO_SHOW"
	ViolationOverstay          ViolationType = "OVERSTAY"
	ViolationUnauthorizedLeave ViolationType = "UNAUTHORIZED_LEAVE"
)

// Valid reports whether t is a known violation type.
func (t ViolationType) Valid() bool {
	return t == ViolationNoShow || t == ViolationOverstay || t == ViolationUnauthorizedLeave
}

// ViolationStatus is processed once the credit deduction has been applied.
type ViolationStatus string

const (
	ViolationUnprocessed ViolationStatus = "unprocessed"
	ViolationProcessed   ViolationStatus = "processed"
)

// Violation is a recorded breach with a credit deduction. It is immutable
// apart from Status.
//
// Fields:
//  ID            – primary key identifier.
//  UserID        – user who committed the violation.
//  ReservationID – related reservation, nil for standalone violations.
//  Type          – NO_SHOW, OVERSTAY or UNAUTHORIZED_LEAVE.
//  DeductCredit  – positive number of credit points to deduct.
//  Status        – unprocessed or processed.
//  Description   – human readable reason.
//  CreatedAt     – creation timestamp.
type Violation struct {
	ID            uint64          `json:"id"`
	UserID        uint64          `json:"user_id"`
	ReservationID *uint64         `json:"reservation_id"`
	Type          ViolationType   `json:"type"`
	DeductCredit  int             `json:"deduct_credit"`
	Status        ViolationStatus `json:"status"`
	Description   string          `json:"description"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Clone returns a deep copy.
func (v *Violation) Clone() *Violation {
	if v == nil {
		return nil
	}
	cp := *v
	if v.ReservationID != nil {
		id := *v.ReservationID
		cp.ReservationID = &id
	}
	return &cp
}

// ViolationFilter narrows violation queries.
type ViolationFilter struct {
	UserID uint64
	Type   ViolationType
	Status ViolationStatus
	Limit  int
}

// Matches applies the filter in memory.
func (f ViolationFilter) Matches(v *Violation) bool {
	if f.UserID != 0 && v.UserID != f.UserID {
		return false
	}
	if f.Type != "" && v.Type != f.Type {
		return false
	}
	if f.Status != "" && v.Status != f.Status {
		return false
	}
	return true
}
