package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/study-room-reservation/internal/model"
)

// CheckInRepo stores check-in records. Writes happen only inside a
// reservation transition, hence the Tx methods.
type CheckInRepo struct {
	db *sql.DB
}

// NewCheckInRepo returns a new CheckInRepo bound to the given database.
func NewCheckInRepo(db *sql.DB) *CheckInRepo { return &CheckInRepo{db: db} }

const checkInColumns = `id, reservation_id, user_id, check_in_time, check_out_time, left_at, method, status, created_at, updated_at`

func scanCheckIn(row rowScanner) (*model.CheckInRecord, error) {
	var (
		c              model.CheckInRecord
		checkOut, left sql.NullTime
		method, status string
	)
	if err := row.Scan(&c.ID, &c.ReservationID, &c.UserID, &c.CheckInTime, &checkOut, &left,
		&method, &status, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.CheckOutTime = timePtr(checkOut)
	c.LeftAt = timePtr(left)
	c.Method = model.CheckInMethod(method)
	c.Status = model.CheckInStatus(status)
	return &c, nil
}

// InsertTx inserts c within tx and fills its ID.
func (r *CheckInRepo) InsertTx(ctx context.Context, tx *sql.Tx, c *model.CheckInRecord) error {
	const q = `INSERT INTO check_ins (reservation_id, user_id, check_in_time, check_out_time, left_at, method, status, created_at, updated_at)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, c.ReservationID, c.UserID, c.CheckInTime.UTC(),
		nullTime(c.CheckOutTime), nullTime(c.LeftAt), string(c.Method), string(c.Status),
		c.CreatedAt.UTC(), c.UpdatedAt.UTC())
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = uint64(id)
	return nil
}

// UpdateOpenStatusTx writes status to the reservation's open record. left
// stamps left_at and checked_out stamps check_out_time.
func (r *CheckInRepo) UpdateOpenStatusTx(ctx context.Context, tx *sql.Tx, reservationID uint64, status model.CheckInStatus, at time.Time) error {
	sets := []string{`status = ?`, `updated_at = ?`}
	args := []any{string(status), at.UTC()}
	switch status {
	case model.CheckInLeft:
		sets = append(sets, `left_at = ?`)
		args = append(args, at.UTC())
	case model.CheckInCheckedOut:
		sets = append(sets, `check_out_time = ?`)
		args = append(args, at.UTC())
	}
	args = append(args, reservationID, string(model.CheckInCheckedOut))
	q := `UPDATE check_ins SET ` + strings.Join(sets, `, `) + ` WHERE reservation_id = ? AND status <> ?`
	_, err := tx.ExecContext(ctx, q, args...)
	return err
}

func (r *CheckInRepo) openTx(ctx context.Context, tx *sql.Tx, reservationID uint64) (*model.CheckInRecord, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+checkInColumns+` FROM check_ins
        WHERE reservation_id = ? AND status <> ? ORDER BY id DESC LIMIT 1 FOR UPDATE`,
		reservationID, string(model.CheckInCheckedOut))
	c, err := scanCheckIn(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

// Active returns the reservation's open record.
func (r *CheckInRepo) Active(ctx context.Context, reservationID uint64) (*model.CheckInRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+checkInColumns+` FROM check_ins
        WHERE reservation_id = ? AND status <> ? ORDER BY id DESC LIMIT 1`,
		reservationID, string(model.CheckInCheckedOut))
	c, err := scanCheckIn(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

// List returns matching records, newest first.
func (r *CheckInRepo) List(ctx context.Context, f model.CheckInFilter) ([]*model.CheckInRecord, error) {
	var where []string
	var args []any
	if f.UserID != 0 {
		where = append(where, `user_id = ?`)
		args = append(args, f.UserID)
	}
	if f.ReservationID != 0 {
		where = append(where, `reservation_id = ?`)
		args = append(args, f.ReservationID)
	}
	if f.Status != "" {
		where = append(where, `status = ?`)
		args = append(args, string(f.Status))
	}
	q := `SELECT ` + checkInColumns + ` FROM check_ins`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, ` AND `)
	}
	q += ` ORDER BY id DESC`
	if f.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]*model.CheckInRecord, 0)
	for rows.Next() {
		c, err := scanCheckIn(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
