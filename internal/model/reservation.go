package model

import "time"

// ReservationState is the lifecycle state of a seat reservation.
type ReservationState string

const (
	StateBooked    ReservationState = "BOOKED"
	StateInUse     ReservationState = "IN_USE"
	StateOnLeave   ReservationState = "ON_LEAVE"
	StateCompleted ReservationState = "COMPLETED"
	StateViolated  ReservationState = "VIOLATED"
	StateCancelled ReservationState = "CANCELLED"
)

// AllStates lists every lifecycle state in declaration order.
var AllStates = []ReservationState{
	StateBooked, StateInUse, StateOnLeave, StateCompleted, StateViolated, StateCancelled,
}

// BlockingStates are the states whose windows keep a seat occupied.
var BlockingStates = []ReservationState{StateBooked, StateInUse, StateOnLeave}

// Valid reports whether s is one of the known lifecycle states.
func (s ReservationState) Valid() bool {
	for _, st := range AllStates {
		if st == s {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is permitted from s.
func (s ReservationState) Terminal() bool {
	return s == StateCompleted || s == StateViolated || s == StateCancelled
}

// Blocking reports whether a reservation in state s occupies its seat.
func (s ReservationState) Blocking() bool {
	return s == StateBooked || s == StateInUse || s == StateOnLeave
}

// Active reports whether the holder has checked in and not yet left for good.
func (s ReservationState) Active() bool {
	return s == StateInUse || s == StateOnLeave
}

// TimeWindow is a half-open interval [Start, End).
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration returns End - Start.
func (w TimeWindow) Duration() time.Duration { return w.End.Sub(w.Start) }

// Overlaps applies the half-open rule: touching endpoints do not overlap.
func (w TimeWindow) Overlaps(o TimeWindow) bool {
	return w.Start.Before(o.End) && o.Start.Before(w.End)
}

// Reservation records a user's booking of one seat for a time window.
// Reservations are never deleted; cancellation is a state.
//
// Fields:
//  ID           – primary key identifier.
//  UserID       – user who made the reservation.
//  SeatID       – seat being reserved.
//  StartTime    – inclusive start of the window.
//  EndTime      – exclusive end of the window.
//  State        – lifecycle state (BOOKED, IN_USE, ON_LEAVE, COMPLETED,
//                 VIOLATED, CANCELLED).
//  CheckInTime  – set when the reservation first enters IN_USE.
//  CheckOutTime – set when the reservation enters COMPLETED.
//  LeftAt       – start of the current leave while ON_LEAVE.
//  CreditImpact – a violation has already been recorded for it.
//  Remark       – free-form note.
//  CreatedAt    – creation timestamp.
//  UpdatedAt    – last update timestamp.
type Reservation struct {
	ID           uint64           `json:"id"`             // reservations.id
	UserID       uint64           `json:"user_id"`        // reservations.user_id
	SeatID       uint64           `json:"seat_id"`        // reservations.seat_id
	StartTime    time.Time        `json:"start_time"`     // reservations.start_time
	EndTime      time.Time        `json:"end_time"`       // reservations.end_time
	State        ReservationState `json:"state"`          // reservations.state
	CheckInTime  *time.Time       `json:"check_in_time"`  // reservations.check_in_time (nullable)
	CheckOutTime *time.Time       `json:"check_out_time"` // reservations.check_out_time (nullable)
	LeftAt       *time.Time       `json:"left_at"`        // reservations.left_at (nullable)
	CreditImpact bool             `json:"credit_impact"`  // reservations.credit_impact
	Remark       string           `json:"remark,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// Window returns the reservation's [start, end) interval.
func (r *Reservation) Window() TimeWindow {
	return TimeWindow{Start: r.StartTime, End: r.EndTime}
}

// Clone returns a deep copy so callers cannot alias stored pointers.
func (r *Reservation) Clone() *Reservation {
	if r == nil {
		return nil
	}
	cp := *r
	cp.CheckInTime = cloneTime(r.CheckInTime)
	cp.CheckOutTime = cloneTime(r.CheckOutTime)
	cp.LeftAt = cloneTime(r.LeftAt)
	return &cp
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// ReservationFilter narrows reservation queries. Zero values mean "any".
type ReservationFilter struct {
	UserID       uint64
	SeatID       uint64
	States       []ReservationState
	StartFrom    *time.Time // start_time >= StartFrom
	StartBefore  *time.Time // start_time < StartBefore
	EndBefore    *time.Time // end_time < EndBefore
	LeftBefore   *time.Time // left_at < LeftBefore
	CreditImpact *bool
	Limit        int
}

// Matches applies the filter to a single reservation in memory.
func (f ReservationFilter) Matches(r *Reservation) bool {
	if f.UserID != 0 && r.UserID != f.UserID {
		return false
	}
	if f.SeatID != 0 && r.SeatID != f.SeatID {
		return false
	}
	if len(f.States) > 0 {
		found := false
		for _, s := range f.States {
			if s == r.State {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.StartFrom != nil && r.StartTime.Before(*f.StartFrom) {
		return false
	}
	if f.StartBefore != nil && !r.StartTime.Before(*f.StartBefore) {
		return false
	}
	if f.EndBefore != nil && !r.EndTime.Before(*f.EndBefore) {
		return false
	}
	if f.LeftBefore != nil && (r.LeftAt == nil || !r.LeftAt.Before(*f.LeftBefore)) {
		return false
	}
	if f.CreditImpact != nil && r.CreditImpact != *f.CreditImpact {
		return false
	}
	return true
}
