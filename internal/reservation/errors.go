package reservation

import (
	"errors"
	"fmt"
)

// Kind groups error codes by how callers should react to them.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindConflict      Kind = "conflict"
	KindNotFound      Kind = "not_found"
	KindState         Kind = "state"
	KindAuthorization Kind = "authorization"
	KindInternal      Kind = "internal"
)

// Error is the single error type returned by the reservation core. Two
// errors are equal under errors.Is when their codes match, so detailed
// copies made by newError still compare equal to the sentinels below.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

// Is matches on Code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrInvalidWindow       = &Error{KindValidation, "INVALID_WINDOW", "invalid reservation window"}
	ErrOutOfOperatingHours = &Error{KindValidation, "OUT_OF_OPERATING_HOURS", "reservation window is outside room operating hours"}
	ErrSeatUnavailable     = &Error{KindValidation, "SEAT_UNAVAILABLE", "seat is not available for booking"}
	ErrInvalidState        = &Error{KindValidation, "INVALID_STATE", "unknown reservation state"}
	ErrInvalidQRCode       = &Error{KindValidation, "INVALID_QR_CODE", "invalid check-in code"}
	ErrInvalidDeduction    = &Error{KindValidation, "INVALID_DEDUCTION", "credit deduction must be positive"}
	ErrInvalidMethod       = &Error{KindValidation, "INVALID_METHOD", "unknown check-in method"}

	ErrSlotTaken        = &Error{KindConflict, "SLOT_TAKEN", "seat is already reserved for an overlapping window"}
	ErrConcurrentUpdate = &Error{KindConflict, "CONCURRENT_UPDATE", "reservation was modified concurrently"}

	ErrReservationNotFound = &Error{KindNotFound, "RESERVATION_NOT_FOUND", "reservation not found"}
	ErrSeatNotFound        = &Error{KindNotFound, "SEAT_NOT_FOUND", "seat not found"}
	ErrUserNotFound        = &Error{KindNotFound, "USER_NOT_FOUND", "user not found"}
	ErrViolationNotFound   = &Error{KindNotFound, "VIOLATION_NOT_FOUND", "violation not found"}
	ErrCheckInNotFound     = &Error{KindNotFound, "CHECKIN_NOT_FOUND", "no active check-in"}

	ErrInvalidTransition  = &Error{KindState, "INVALID_TRANSITION", "transition not allowed"}
	ErrAlreadyCheckedIn   = &Error{KindState, "ALREADY_CHECKED_IN", "reservation is already checked in"}
	ErrCannotCancelActive = &Error{KindState, "CANNOT_CANCEL_ACTIVE", "reservation is in use and cannot be cancelled"}
	ErrTerminalState      = &Error{KindState, "TERMINAL_STATE", "reservation is in a terminal state"}

	ErrUserBanned         = &Error{KindAuthorization, "USER_BANNED", "user is banned from booking"}
	ErrInsufficientCredit = &Error{KindAuthorization, "INSUFFICIENT_CREDIT", "credit score too low to book"}
	ErrForbidden          = &Error{KindAuthorization, "FORBIDDEN", "not allowed to act on this resource"}

	ErrPartialSweepFailure = &Error{KindInternal, "PARTIAL_SWEEP_FAILURE", "violation sweep completed with failures"}
	ErrInternal            = &Error{KindInternal, "INTERNAL", "internal error"}
)

// newError copies base with a formatted message.
func newError(base *Error, format string, args ...any) error {
	return &Error{Kind: base.Kind, Code: base.Code, Message: fmt.Sprintf(format, args...)}
}

// internal wraps an unexpected store error. The cause is kept for logs only.
func internal(op string, err error) error {
	return &Error{Kind: KindInternal, Code: ErrInternal.Code, Message: fmt.Sprintf("%s: %v", op, err)}
}

// AsError extracts the core error from err, mapping anything unknown to
// ErrInternal.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: KindInternal, Code: ErrInternal.Code, Message: err.Error()}
}
