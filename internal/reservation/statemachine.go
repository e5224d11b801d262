package reservation

import (
	"time"

	"github.com/iliyamo/study-room-reservation/internal/model"
)

// transitions is the lifecycle table for user and monitor driven changes.
// Administrative overrides bypass it (see overrideTransition).
var transitions = map[model.ReservationState][]model.ReservationState{
	model.StateBooked:  {model.StateInUse, model.StateViolated, model.StateCancelled},
	model.StateInUse:   {model.StateOnLeave, model.StateCompleted, model.StateViolated},
	model.StateOnLeave: {model.StateInUse, model.StateCompleted, model.StateViolated},
}

// CanTransition reports whether from -> to is in the lifecycle table.
func CanTransition(from, to model.ReservationState) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func invalidTransition(r *model.Reservation, to model.ReservationState) error {
	if r.State.Terminal() {
		return newError(ErrInvalidTransition, "reservation %d is %s and cannot move to %s", r.ID, r.State, to)
	}
	return newError(ErrInvalidTransition, "reservation %d cannot move from %s to %s", r.ID, r.State, to)
}

func newTransition(r *model.Reservation, to model.ReservationState, now time.Time) *model.Transition {
	return &model.Transition{ReservationID: r.ID, From: r.State, To: to, At: now}
}

func openCheckIn(r *model.Reservation, method model.CheckInMethod, now time.Time) *model.CheckInRecord {
	return &model.CheckInRecord{
		ReservationID: r.ID,
		UserID:        r.UserID,
		CheckInTime:   now,
		Method:        method,
		Status:        model.CheckInCheckedIn,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// checkInTransition builds BOOKED -> IN_USE with a fresh check-in record.
func checkInTransition(r *model.Reservation, method model.CheckInMethod, now time.Time) (*model.Transition, error) {
	switch r.State {
	case model.StateBooked:
	case model.StateInUse, model.StateOnLeave:
		return nil, newError(ErrAlreadyCheckedIn, "reservation %d is already checked in", r.ID)
	default:
		return nil, invalidTransition(r, model.StateInUse)
	}
	t := newTransition(r, model.StateInUse, now)
	t.SetCheckIn = true
	t.OpenCheckIn = openCheckIn(r, method, now)
	return t, nil
}

func leaveTransition(r *model.Reservation, now time.Time) (*model.Transition, error) {
	if r.State != model.StateInUse {
		return nil, invalidTransition(r, model.StateOnLeave)
	}
	t := newTransition(r, model.StateOnLeave, now)
	t.SetLeftAt = true
	t.CheckInStatus = model.CheckInLeft
	return t, nil
}

func returnTransition(r *model.Reservation, now time.Time) (*model.Transition, error) {
	if r.State != model.StateOnLeave {
		return nil, invalidTransition(r, model.StateInUse)
	}
	t := newTransition(r, model.StateInUse, now)
	t.ClearLeftAt = true
	t.CheckInStatus = model.CheckInReturned
	return t, nil
}

func checkOutTransition(r *model.Reservation, now time.Time) (*model.Transition, error) {
	if !r.State.Active() {
		return nil, invalidTransition(r, model.StateCompleted)
	}
	t := newTransition(r, model.StateCompleted, now)
	t.SetCheckOut = true
	t.CheckInStatus = model.CheckInCheckedOut
	return t, nil
}

func cancelTransition(r *model.Reservation, now time.Time) (*model.Transition, error) {
	switch r.State {
	case model.StateBooked:
	case model.StateInUse, model.StateOnLeave:
		return nil, newError(ErrCannotCancelActive, "reservation %d is %s and cannot be cancelled", r.ID, r.State)
	default:
		return nil, invalidTransition(r, model.StateCancelled)
	}
	return newTransition(r, model.StateCancelled, now), nil
}

// violateTransition moves a reservation to VIOLATED and records v in the
// same write.
func violateTransition(r *model.Reservation, v *model.Violation, now time.Time) *model.Transition {
	t := newTransition(r, model.StateViolated, now)
	t.MarkCreditImpact = true
	t.Violation = v
	if r.State.Active() {
		t.CheckInStatus = model.CheckInCheckedOut
	}
	return t
}

// overrideTransition builds an administrative move that skips the
// lifecycle table. Terminal reservations stay terminal, and the timestamp
// and check-in invariants are kept.
func overrideTransition(r *model.Reservation, to model.ReservationState, now time.Time) (*model.Transition, error) {
	if !to.Valid() {
		return nil, newError(ErrInvalidState, "unknown reservation state %q", to)
	}
	if r.State.Terminal() {
		return nil, newError(ErrTerminalState, "reservation %d is %s and cannot be changed", r.ID, r.State)
	}
	if r.State == to {
		return nil, newError(ErrInvalidTransition, "reservation %d is already %s", r.ID, to)
	}
	t := newTransition(r, to, now)

	switch {
	case r.State == model.StateBooked && to.Active():
		t.SetCheckIn = true
		t.OpenCheckIn = openCheckIn(r, model.MethodManual, now)
		if to == model.StateOnLeave {
			t.SetLeftAt = true
			t.OpenCheckIn.Status = model.CheckInLeft
			left := now
			t.OpenCheckIn.LeftAt = &left
		}
	case r.State.Active() && to == model.StateBooked:
		return nil, newError(ErrInvalidTransition, "reservation %d is %s and cannot return to %s", r.ID, r.State, to)
	case r.State.Active() && to == model.StateOnLeave:
		t.SetLeftAt = true
		t.CheckInStatus = model.CheckInLeft
	case r.State.Active() && to == model.StateInUse:
		t.ClearLeftAt = true
		t.CheckInStatus = model.CheckInReturned
	case to.Terminal():
		if r.State.Active() {
			t.CheckInStatus = model.CheckInCheckedOut
		}
		if to == model.StateCompleted {
			t.SetCheckOut = true
		}
	}
	return t, nil
}
