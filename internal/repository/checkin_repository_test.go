package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/study-room-reservation/internal/model"
)

var checkInCols = []string{"id", "reservation_id", "user_id", "check_in_time", "check_out_time", "left_at",
	"method", "status", "created_at", "updated_at"}

func TestCheckInRepo_Active(t *testing.T) {
	db, mock := newMock(t)
	repo := NewCheckInRepo(db)

	mock.ExpectQuery(`FROM check_ins WHERE reservation_id = \? AND status <> \? ORDER BY id DESC LIMIT 1`).
		WithArgs(5, "checked_out").
		WillReturnRows(sqlmock.NewRows(checkInCols).AddRow(2, 5, 1, ts(10), nil, ts(11), "manual", "left", ts(10), ts(11)))
	mock.ExpectQuery(`FROM check_ins WHERE reservation_id = \?`).
		WithArgs(6, "checked_out").
		WillReturnRows(sqlmock.NewRows(checkInCols))

	c, err := repo.Active(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, model.CheckInLeft, c.Status)
	require.NotNil(t, c.LeftAt)
	assert.Equal(t, ts(11), *c.LeftAt)
	assert.Nil(t, c.CheckOutTime)

	_, err = repo.Active(context.Background(), 6)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckInRepo_List(t *testing.T) {
	db, mock := newMock(t)
	repo := NewCheckInRepo(db)

	mock.ExpectQuery(`FROM check_ins WHERE user_id = \? AND status = \? ORDER BY id DESC LIMIT \?`).
		WithArgs(1, "checked_out", 20).
		WillReturnRows(sqlmock.NewRows(checkInCols).
			AddRow(4, 9, 1, ts(14), ts(15), nil, "qrcode", "checked_out", ts(14), ts(15)).
			AddRow(2, 5, 1, ts(10), ts(12), nil, "manual", "checked_out", ts(10), ts(12)))

	out, err := repo.List(context.Background(), model.CheckInFilter{UserID: 1, Status: model.CheckInCheckedOut, Limit: 20})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, uint64(4), out[0].ID)
	assert.Equal(t, model.MethodQRCode, out[0].Method)
	assert.False(t, out[1].Open())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckInRepo_UpdateOpenStatusLeft(t *testing.T) {
	db, mock := newMock(t)
	repo := NewCheckInRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE check_ins SET status = \?, updated_at = \?, left_at = \? WHERE reservation_id = \? AND status <> \?`).
		WithArgs("left", ts(11), ts(11), 5, "checked_out").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, repo.UpdateOpenStatusTx(context.Background(), tx, 5, model.CheckInLeft, ts(11)))
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}
