package model

// Seat and room status values as stored in the catalog.
const (
	SeatAvailable   = "available"
	SeatMaintenance = "maintenance"
	RoomOpen        = "open"
	RoomClosed      = "closed"
)

// SeatSnapshot is a read-only view of a seat and the room that contains it,
// as supplied by the catalog. OpenTime and CloseTime are "HH:mm" strings;
// an empty string leaves that side unbounded.
//
// Fields:
//  SeatID     – seats.id
//  RoomID     – rooms.id
//  SeatNumber – label printed on the seat.
//  Status     – seats.status (available, maintenance).
//  RoomStatus – rooms.status (open, closed).
//  OpenTime   – rooms.open_time
//  CloseTime  – rooms.close_time
type SeatSnapshot struct {
	SeatID     uint64 `json:"seat_id"`
	RoomID     uint64 `json:"room_id"`
	SeatNumber string `json:"seat_number"`
	Status     string `json:"status"`
	RoomStatus string `json:"room_status"`
	OpenTime   string `json:"open_time"`
	CloseTime  string `json:"close_time"`
}

// Bookable reports whether the seat may accept new reservations.
func (s *SeatSnapshot) Bookable() bool {
	return s.Status == SeatAvailable && s.RoomStatus != RoomClosed
}
