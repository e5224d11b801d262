package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/study-room-reservation/internal/model"
)

type countingSource struct {
	mu    sync.Mutex
	calls int
	seats map[uint64]*model.SeatSnapshot
}

func (s *countingSource) GetSeat(_ context.Context, id uint64) (*model.SeatSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	seat, ok := s.seats[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *seat
	return &cp, nil
}

func (s *countingSource) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newSource() *countingSource {
	return &countingSource{seats: map[uint64]*model.SeatSnapshot{
		1: {SeatID: 1, RoomID: 1, SeatNumber: "A01", Status: model.SeatAvailable, RoomStatus: "open", OpenTime: "08:00", CloseTime: "22:00"},
	}}
}

func TestCachedCatalog_HitAfterMiss(t *testing.T) {
	mr, rdb := newMiniredis(t)
	src := newSource()
	cat := NewCachedCatalog(src, rdb, "srr:catalog", 30*time.Second)
	ctx := context.Background()

	first, err := cat.GetSeat(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "A01", first.SeatNumber)
	assert.True(t, mr.Exists("srr:catalog:seat:1"))
	assert.Equal(t, 30*time.Second, mr.TTL("srr:catalog:seat:1"))

	second, err := cat.GetSeat(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, src.count())

	require.NoError(t, cat.Invalidate(ctx, 1))
	_, err = cat.GetSeat(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, src.count())
}

func TestCachedCatalog_NotFoundIsNotCached(t *testing.T) {
	mr, rdb := newMiniredis(t)
	src := newSource()
	cat := NewCachedCatalog(src, rdb, "", 0)
	ctx := context.Background()

	_, err := cat.GetSeat(ctx, 42)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = cat.GetSeat(ctx, 42)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 2, src.count())
	assert.False(t, mr.Exists("catalog:seat:42"))
}

func TestCachedCatalog_CorruptEntryReloads(t *testing.T) {
	mr, rdb := newMiniredis(t)
	src := newSource()
	cat := NewCachedCatalog(src, rdb, "", 0)
	require.NoError(t, mr.Set("catalog:seat:1", "{not json"))

	seat, err := cat.GetSeat(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "A01", seat.SeatNumber)
	assert.Equal(t, 1, src.count())
}

func TestCachedCatalog_FallsBackWhenRedisDown(t *testing.T) {
	mr, rdb := newMiniredis(t)
	src := newSource()
	cat := NewCachedCatalog(src, rdb, "", 0)
	mr.Close()

	seat, err := cat.GetSeat(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, seat.Bookable())
}
