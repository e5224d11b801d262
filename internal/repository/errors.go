// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as the
// reservation service to distinguish between different failure scenarios
// without depending on driver specific errors.
package repository

import "errors"

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write cannot be performed because of
// conflicting rows, such as inserting a reservation whose window overlaps
// a blocking reservation for the same seat.
var ErrConflict = errors.New("conflict")

// ErrStaleState is returned by compare-and-set updates when the row is no
// longer in the expected state. Another writer got there first.
var ErrStaleState = errors.New("stale state")

// ErrLockTimeout is returned when a per-seat lock could not be acquired
// before the caller's deadline.
var ErrLockTimeout = errors.New("seat lock timeout")
