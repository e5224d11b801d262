// Package queue defines message payloads exchanged over the message broker
// and the background consumer that records them.
package queue

// Event types published on the reservation events queue.
const (
	EventCreated       = "reservation.created"
	EventCancelled     = "reservation.cancelled"
	EventCheckedIn     = "reservation.checked_in"
	EventLeft          = "reservation.left"
	EventReturned      = "reservation.returned"
	EventCheckedOut    = "reservation.checked_out"
	EventViolated      = "reservation.violated"
	EventStatusUpdated = "reservation.status_updated"
	EventRescheduled   = "reservation.rescheduled"
)

// ReservationEventsQueue is the durable queue all lifecycle events go to.
const ReservationEventsQueue = "reservation.events"

// ReservationEvent is published after every successful lifecycle change.
// It carries enough information for downstream consumers to log, notify or
// compute statistics without querying the primary database.
type ReservationEvent struct {
	Type          string `json:"type"`
	ReservationID uint64 `json:"reservation_id"`
	UserID        uint64 `json:"user_id"`
	SeatID        uint64 `json:"seat_id"`
	State         string `json:"state"`
	PreviousState string `json:"previous_state,omitempty"`
	StartsAt      string `json:"starts_at"`
	EndsAt        string `json:"ends_at"`
	ViolationType string `json:"violation_type,omitempty"`
	DeductCredit  int    `json:"deduct_credit,omitempty"`
	OccurredAt    string `json:"occurred_at"`
}
