package reservation

import (
	"context"
	"time"

	"github.com/iliyamo/study-room-reservation/internal/model"
)

// ConflictDetector decides whether a window is free on a seat. Callers
// that go on to write must hold the seat lock across Check and the write.
type ConflictDetector struct {
	store ReservationStore
}

// NewConflictDetector returns a detector reading from store.
func NewConflictDetector(store ReservationStore) *ConflictDetector {
	return &ConflictDetector{store: store}
}

// Check returns ErrSlotTaken when a blocking reservation on seatID overlaps
// w. A non-zero exclude ignores that reservation.
func (d *ConflictDetector) Check(ctx context.Context, seatID uint64, w model.TimeWindow, exclude uint64) error {
	end := w.End
	existing, err := d.store.ListReservations(ctx, model.ReservationFilter{
		SeatID:      seatID,
		States:      model.BlockingStates,
		StartBefore: &end,
	})
	if err != nil {
		return internal("list seat reservations", err)
	}
	if c := FindConflict(existing, w, exclude); c != nil {
		return newError(ErrSlotTaken, "seat %d is already reserved from %s to %s",
			seatID, c.StartTime.Format(time.RFC3339), c.EndTime.Format(time.RFC3339))
	}
	return nil
}

// FindConflict returns the first blocking reservation in existing that
// overlaps w under the half-open rule, or nil.
func FindConflict(existing []*model.Reservation, w model.TimeWindow, exclude uint64) *model.Reservation {
	for _, r := range existing {
		if r.ID == exclude && exclude != 0 {
			continue
		}
		if !r.State.Blocking() {
			continue
		}
		if r.Window().Overlaps(w) {
			return r
		}
	}
	return nil
}
