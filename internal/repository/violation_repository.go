package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/study-room-reservation/internal/model"
)

// ViolationRepo stores violation records.
type ViolationRepo struct {
	db *sql.DB
}

// NewViolationRepo returns a new ViolationRepo bound to the given database.
func NewViolationRepo(db *sql.DB) *ViolationRepo { return &ViolationRepo{db: db} }

const violationColumns = `id, user_id, reservation_id, type, deduct_credit, status, description, created_at, updated_at`

func scanViolation(row rowScanner) (*model.Violation, error) {
	var (
		v           model.Violation
		resID       sql.NullInt64
		typ, status string
		desc        sql.NullString
	)
	if err := row.Scan(&v.ID, &v.UserID, &resID, &typ, &v.DeductCredit, &status, &desc, &v.CreatedAt, &v.UpdatedAt); err != nil {
		return nil, err
	}
	if resID.Valid {
		id := uint64(resID.Int64)
		v.ReservationID = &id
	}
	v.Type = model.ViolationType(typ)
	v.Status = model.ViolationStatus(status)
	v.Description = desc.String
	return &v, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertViolation(ctx context.Context, ex execer, v *model.Violation) error {
	const q = `INSERT INTO violations (user_id, reservation_id, type, deduct_credit, status, description, created_at, updated_at)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	var resID any
	if v.ReservationID != nil {
		resID = *v.ReservationID
	}
	res, err := ex.ExecContext(ctx, q, v.UserID, resID, string(v.Type), v.DeductCredit, string(v.Status),
		nullString(v.Description), v.CreatedAt.UTC(), v.UpdatedAt.UTC())
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	v.ID = uint64(id)
	return nil
}

// CreateTx inserts v within an existing transaction.
func (r *ViolationRepo) CreateTx(ctx context.Context, tx *sql.Tx, v *model.Violation) error {
	return insertViolation(ctx, tx, v)
}

// CreateViolation inserts a standalone violation.
func (r *ViolationRepo) CreateViolation(ctx context.Context, v *model.Violation) error {
	return insertViolation(ctx, r.db, v)
}

// GetViolation loads one violation by id.
func (r *ViolationRepo) GetViolation(ctx context.Context, id uint64) (*model.Violation, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+violationColumns+` FROM violations WHERE id = ?`, id)
	v, err := scanViolation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return v, err
}

// ListViolations returns matching violations, oldest first.
func (r *ViolationRepo) ListViolations(ctx context.Context, f model.ViolationFilter) ([]*model.Violation, error) {
	var where []string
	var args []any
	if f.UserID != 0 {
		where = append(where, `user_id = ?`)
		args = append(args, f.UserID)
	}
	if f.Type != "" {
		where = append(where, `type = ?`)
		args = append(args, string(f.Type))
	}
	if f.Status != "" {
		where = append(where, `status = ?`)
		args = append(args, string(f.Status))
	}
	q := `SELECT ` + violationColumns + ` FROM violations`
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
	out := make([]*model.Violation, 0)
	for rows.Next() {
		v, err := scanViolation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// MarkViolationProcessed flips unprocessed to processed exactly once.
func (r *ViolationRepo) MarkViolationProcessed(ctx context.Context, id uint64) error {
	const q = `UPDATE violations SET status = ?, updated_at = ? WHERE id = ? AND status = ?`
	res, err := r.db.ExecContext(ctx, q, string(model.ViolationProcessed), time.Now().UTC(), id, string(model.ViolationUnprocessed))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var exists int
	err = r.db.QueryRowContext(ctx, `SELECT 1 FROM violations WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrStaleState
}
