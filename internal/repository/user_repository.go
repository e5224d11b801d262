package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/study-room-reservation/internal/model"
)

// UserRepo reads the user directory. Accounts are managed elsewhere; this
// service only needs status and credit.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// GetUser fetches a user by id.
func (r *UserRepo) GetUser(ctx context.Context, id uint64) (*model.UserSnapshot, error) {
	var u model.UserSnapshot
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,role,status,credit_score FROM users WHERE id=? LIMIT 1",
		id).Scan(&u.ID, &u.Role, &u.Status, &u.CreditScore)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
