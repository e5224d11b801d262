package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/study-room-reservation/internal/model"
)

// ReservationRepo stores reservations in MySQL. Writes that touch
// check-ins or violations run in one transaction through the Tx methods of
// CheckInRepo and ViolationRepo. All timestamps are stored in UTC.
type ReservationRepo struct {
	db         *sql.DB
	checkIns   *CheckInRepo
	violations *ViolationRepo
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo {
	return &ReservationRepo{db: db, checkIns: NewCheckInRepo(db), violations: NewViolationRepo(db)}
}

// DB exposes the underlying handle.
func (r *ReservationRepo) DB() *sql.DB { return r.db }

const reservationColumns = `id, user_id, seat_id, start_time, end_time, state,
    check_in_time, check_out_time, left_at, credit_impact, remark, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(row rowScanner) (*model.Reservation, error) {
	var (
		res                     model.Reservation
		state                   string
		checkIn, checkOut, left sql.NullTime
		remark                  sql.NullString
	)
	if err := row.Scan(&res.ID, &res.UserID, &res.SeatID, &res.StartTime, &res.EndTime, &state,
		&checkIn, &checkOut, &left, &res.CreditImpact, &remark, &res.CreatedAt, &res.UpdatedAt); err != nil {
		return nil, err
	}
	res.State = model.ReservationState(state)
	res.CheckInTime = timePtr(checkIn)
	res.CheckOutTime = timePtr(checkOut)
	res.LeftAt = timePtr(left)
	res.Remark = remark.String
	return &res, nil
}

// CreateReservation inserts res after re-checking overlap. The seat row is
// locked FOR UPDATE so concurrent inserts for the same seat serialize even
// across instances.
func (r *ReservationRepo) CreateReservation(ctx context.Context, res *model.Reservation) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var seatID uint64
	if err := tx.QueryRowContext(ctx, `SELECT id FROM seats WHERE id = ? FOR UPDATE`, res.SeatID).Scan(&seatID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}

	const overlapQ = `SELECT COUNT(*) FROM reservations
                      WHERE seat_id = ? AND state IN (?, ?, ?) AND start_time < ? AND end_time > ?`
	var n int
	if err := tx.QueryRowContext(ctx, overlapQ, res.SeatID,
		string(model.StateBooked), string(model.StateInUse), string(model.StateOnLeave),
		res.EndTime.UTC(), res.StartTime.UTC()).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return ErrConflict
	}

	const insQ = `INSERT INTO reservations (user_id, seat_id, start_time, end_time, state, credit_impact, remark, created_at, updated_at)
                  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, insQ, res.UserID, res.SeatID, res.StartTime.UTC(), res.EndTime.UTC(),
		string(res.State), res.CreditImpact, nullString(res.Remark), res.CreatedAt.UTC(), res.UpdatedAt.UTC())
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	res.ID = uint64(id)
	return nil
}

// RescheduleReservation moves a BOOKED reservation to w. It locks the seat
// row like CreateReservation and leaves the reservation's own window out of
// the overlap re-check.
func (r *ReservationRepo) RescheduleReservation(ctx context.Context, id uint64, w model.TimeWindow, at time.Time) (*model.Reservation, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var seatID uint64
	var state string
	err = tx.QueryRowContext(ctx, `SELECT seat_id, state FROM reservations WHERE id = ?`, id).Scan(&seatID, &state)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if state != string(model.StateBooked) {
		return nil, ErrStaleState
	}
	if err := tx.QueryRowContext(ctx, `SELECT id FROM seats WHERE id = ? FOR UPDATE`, seatID).Scan(&seatID); err != nil {
		return nil, err
	}

	const overlapQ = `SELECT COUNT(*) FROM reservations
                      WHERE seat_id = ? AND id <> ? AND state IN (?, ?, ?) AND start_time < ? AND end_time > ?`
	var n int
	if err := tx.QueryRowContext(ctx, overlapQ, seatID, id,
		string(model.StateBooked), string(model.StateInUse), string(model.StateOnLeave),
		w.End.UTC(), w.Start.UTC()).Scan(&n); err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, ErrConflict
	}

	const updQ = `UPDATE reservations SET start_time = ?, end_time = ?, updated_at = ? WHERE id = ? AND state = ?`
	result, err := tx.ExecContext(ctx, updQ, w.Start.UTC(), w.End.UTC(), at.UTC(), id, string(model.StateBooked))
	if err != nil {
		return nil, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, ErrStaleState
	}
	res, err := r.getTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return res, nil
}

// GetReservation loads one reservation by id.
func (r *ReservationRepo) GetReservation(ctx context.Context, id uint64) (*model.Reservation, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id)
	res, err := scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return res, err
}

func (r *ReservationRepo) getTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Reservation, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id)
	res, err := scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return res, err
}

// ListReservations returns reservations matching f ordered by id.
func (r *ReservationRepo) ListReservations(ctx context.Context, f model.ReservationFilter) ([]*model.Reservation, error) {
	where, args := reservationWhere(f)
	q := `SELECT ` + reservationColumns + ` FROM reservations`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, ` AND `)
	}
	q += ` ORDER BY id`
	if f.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]*model.Reservation, 0)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

func reservationWhere(f model.ReservationFilter) ([]string, []any) {
	var where []string
	var args []any
	if f.UserID != 0 {
		where = append(where, `user_id = ?`)
		args = append(args, f.UserID)
	}
	if f.SeatID != 0 {
		where = append(where, `seat_id = ?`)
		args = append(args, f.SeatID)
	}
	if len(f.States) > 0 {
		where = append(where, `state IN (`+placeholders(len(f.States))+`)`)
		for _, s := range f.States {
			args = append(args, string(s))
		}
	}
	if f.StartFrom != nil {
		where = append(where, `start_time >= ?`)
		args = append(args, f.StartFrom.UTC())
	}
	if f.StartBefore != nil {
		where = append(where, `start_time < ?`)
		args = append(args, f.StartBefore.UTC())
	}
	if f.EndBefore != nil {
		where = append(where, `end_time < ?`)
		args = append(args, f.EndBefore.UTC())
	}
	if f.LeftBefore != nil {
		where = append(where, `left_at IS NOT NULL AND left_at < ?`)
		args = append(args, f.LeftBefore.UTC())
	}
	if f.CreditImpact != nil {
		where = append(where, `credit_impact = ?`)
		args = append(args, *f.CreditImpact)
	}
	return where, args
}

// ApplyTransition performs the state compare-and-set and the companion
// check-in and violation writes in one transaction.
func (r *ReservationRepo) ApplyTransition(ctx context.Context, t *model.Transition) (*model.Reservation, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	at := t.At.UTC()
	sets := []string{`state = ?`, `updated_at = ?`}
	args := []any{string(t.To), at}
	if t.SetCheckIn {
		sets = append(sets, `check_in_time = COALESCE(check_in_time, ?)`)
		args = append(args, at)
	}
	if t.SetCheckOut {
		sets = append(sets, `check_out_time = ?`)
		args = append(args, at)
	}
	if t.SetLeftAt {
		sets = append(sets, `left_at = ?`)
		args = append(args, at)
	}
	if t.ClearLeftAt {
		sets = append(sets, `left_at = NULL`)
	}
	if t.MarkCreditImpact {
		sets = append(sets, `credit_impact = 1`)
	}
	args = append(args, t.ReservationID, string(t.From))
	q := `UPDATE reservations SET ` + strings.Join(sets, `, `) + ` WHERE id = ? AND state = ?`
	result, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		var state string
		err := tx.QueryRowContext(ctx, `SELECT state FROM reservations WHERE id = ?`, t.ReservationID).Scan(&state)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, err
		}
		return nil, ErrStaleState
	}

	if t.OpenCheckIn != nil {
		if _, err := r.checkIns.openTx(ctx, tx, t.ReservationID); err == nil {
			return nil, ErrConflict
		} else if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		if err := r.checkIns.InsertTx(ctx, tx, t.OpenCheckIn); err != nil {
			return nil, err
		}
	}
	if t.CheckInStatus != "" {
		if err := r.checkIns.UpdateOpenStatusTx(ctx, tx, t.ReservationID, t.CheckInStatus, at); err != nil {
			return nil, err
		}
	}
	if t.Violation != nil {
		if err := r.violations.CreateTx(ctx, tx, t.Violation); err != nil {
			return nil, err
		}
	}

	res, err := r.getTx(ctx, tx, t.ReservationID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return res, nil
}

// ActiveCheckIn returns the reservation's open check-in record.
func (r *ReservationRepo) ActiveCheckIn(ctx context.Context, reservationID uint64) (*model.CheckInRecord, error) {
	return r.checkIns.Active(ctx, reservationID)
}

// ListCheckIns lists check-in records.
func (r *ReservationRepo) ListCheckIns(ctx context.Context, f model.CheckInFilter) ([]*model.CheckInRecord, error) {
	return r.checkIns.List(ctx, f)
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
