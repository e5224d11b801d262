package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/study-room-reservation/internal/model"
)

// mysqlDuplicateEntry is the server error number for a unique key clash.
const mysqlDuplicateEntry = 1062

// CreditRepo owns users.credit_score and the credit_ledger table.
type CreditRepo struct {
	db *sql.DB
}

// NewCreditRepo returns a new CreditRepo bound to the given database.
func NewCreditRepo(db *sql.DB) *CreditRepo { return &CreditRepo{db: db} }

// AdjustCredit locks the user row, applies the clamped delta and appends
// the ledger row in one transaction. A repeated idempotency key is a no-op,
// including when two callers race on it: the unique index rejects the
// second insert and its transaction rolls back.
func (r *CreditRepo) AdjustCredit(ctx context.Context, e *model.CreditEntry, floor, ceiling int) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if e.Key != "" {
		var id uint64
		err := tx.QueryRowContext(ctx, `SELECT id FROM credit_ledger WHERE idem_key = ?`, e.Key).Scan(&id)
		if err == nil {
			return false, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return false, err
		}
	}

	var current int
	err = tx.QueryRowContext(ctx, `SELECT credit_score FROM users WHERE id = ? FOR UPDATE`, e.UserID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, err
	}
	next := ClampCredit(current+e.Delta, floor, ceiling)
	if _, err := tx.ExecContext(ctx, `UPDATE users SET credit_score = ? WHERE id = ?`, next, e.UserID); err != nil {
		return false, err
	}

	const insQ = `INSERT INTO credit_ledger (user_id, delta, applied, balance_after, reason, idem_key, created_at)
                  VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, insQ, e.UserID, e.Delta, next-current, next, e.Reason, nullString(e.Key), e.CreatedAt.UTC())
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
			return false, nil
		}
		return false, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	committed = true
	e.ID = uint64(id)
	e.Applied = next - current
	e.BalanceAfter = next
	return true, nil
}

// ListCreditEntries returns the user's ledger rows, newest first.
func (r *CreditRepo) ListCreditEntries(ctx context.Context, userID uint64, limit int) ([]*model.CreditEntry, error) {
	q := `SELECT id, user_id, delta, applied, balance_after, reason, idem_key, created_at
          FROM credit_ledger WHERE user_id = ? ORDER BY id DESC`
	args := []any{userID}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]*model.CreditEntry, 0)
	for rows.Next() {
		var e model.CreditEntry
		var key sql.NullString
		if err := rows.Scan(&e.ID, &e.UserID, &e.Delta, &e.Applied, &e.BalanceAfter, &e.Reason, &key, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Key = key.String
		out = append(out, &e)
	}
	return out, rows.Err()
}

// ClampCredit bounds a credit score to [floor, ceiling]. A ceiling below
// the floor disables the upper bound.
func ClampCredit(score, floor, ceiling int) int {
	if score < floor {
		return floor
	}
	if ceiling >= floor && score > ceiling {
		return ceiling
	}
	return score
}
