package reservation

import (
	"context"
	"time"

	"github.com/iliyamo/study-room-reservation/internal/model"
	"github.com/iliyamo/study-room-reservation/internal/queue"
)

// ReservationStore persists reservations and their check-in records.
// Implementations return the sentinels from the repository package.
type ReservationStore interface {
	// CreateReservation inserts r and fills its ID. It re-verifies that no
	// blocking reservation for the same seat overlaps r inside the same
	// atomic write and returns repository.ErrConflict otherwise.
	CreateReservation(ctx context.Context, r *model.Reservation) error
	GetReservation(ctx context.Context, id uint64) (*model.Reservation, error)
	ListReservations(ctx context.Context, f model.ReservationFilter) ([]*model.Reservation, error)
	// ApplyTransition performs a compare-and-set on the reservation state
	// and the companion writes in t. It returns repository.ErrStaleState
	// when the reservation is no longer in t.From.
	ApplyTransition(ctx context.Context, t *model.Transition) (*model.Reservation, error)
	// RescheduleReservation moves a BOOKED reservation to w. The overlap
	// re-check ignores the reservation itself. It returns
	// repository.ErrConflict on overlap and repository.ErrStaleState when
	// the reservation is no longer BOOKED.
	RescheduleReservation(ctx context.Context, id uint64, w model.TimeWindow, at time.Time) (*model.Reservation, error)

	ActiveCheckIn(ctx context.Context, reservationID uint64) (*model.CheckInRecord, error)
	ListCheckIns(ctx context.Context, f model.CheckInFilter) ([]*model.CheckInRecord, error)
}

// ViolationStore persists violation records.
type ViolationStore interface {
	CreateViolation(ctx context.Context, v *model.Violation) error
	GetViolation(ctx context.Context, id uint64) (*model.Violation, error)
	ListViolations(ctx context.Context, f model.ViolationFilter) ([]*model.Violation, error)
	// MarkViolationProcessed flips unprocessed to processed and returns
	// repository.ErrStaleState when it was already processed.
	MarkViolationProcessed(ctx context.Context, id uint64) error
}

// CreditStore owns the users' credit balance and its ledger.
type CreditStore interface {
	// AdjustCredit applies e.Delta clamped to [floor, ceiling] and records
	// the ledger row, filling e.Applied, e.BalanceAfter and e.ID. When
	// e.Key is already recorded nothing changes and applied is false.
	AdjustCredit(ctx context.Context, e *model.CreditEntry, floor, ceiling int) (applied bool, err error)
	ListCreditEntries(ctx context.Context, userID uint64, limit int) ([]*model.CreditEntry, error)
}

// SeatCatalog supplies seat and room metadata.
type SeatCatalog interface {
	GetSeat(ctx context.Context, seatID uint64) (*model.SeatSnapshot, error)
}

// UserDirectory supplies user status and credit.
type UserDirectory interface {
	GetUser(ctx context.Context, userID uint64) (*model.UserSnapshot, error)
}

// SeatLocker serializes writers per seat. The returned func releases the lock.
type SeatLocker interface {
	Lock(ctx context.Context, seatID uint64) (unlock func(), err error)
}

// EventPublisher receives lifecycle events. Failures are the publisher's
// concern and never fail the operation that produced the event.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.ReservationEvent)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, queue.ReservationEvent) {}
