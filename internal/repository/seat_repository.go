package repository // repository defines data access for seats and rooms

import (
	"context"      // context allows query cancellation and timeouts
	"database/sql" // sql provides DB primitives
	"errors"

	"github.com/iliyamo/study-room-reservation/internal/model"
)

// SeatRepo is the MySQL seat catalog. Seats belong to rooms; a room
// carries the operating hours and an open/closed flag.
type SeatRepo struct {
	db *sql.DB
}

// NewSeatRepo constructs a SeatRepo with the given DB handle.
func NewSeatRepo(db *sql.DB) *SeatRepo {
	return &SeatRepo{db: db}
}

// GetSeat returns the seat together with its room's status and hours.
func (r *SeatRepo) GetSeat(ctx context.Context, seatID uint64) (*model.SeatSnapshot, error) {
	const q = `SELECT s.id, s.room_id, s.seat_number, s.status, rm.status, rm.open_time, rm.close_time
               FROM seats s
               JOIN rooms rm ON rm.id = s.room_id
               WHERE s.id = ?`
	var s model.SeatSnapshot
	var open, closing sql.NullString
	err := r.db.QueryRowContext(ctx, q, seatID).Scan(
		&s.SeatID, &s.RoomID, &s.SeatNumber, &s.Status, &s.RoomStatus, &open, &closing,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	s.OpenTime = open.String
	s.CloseTime = closing.String
	return &s, nil
}
