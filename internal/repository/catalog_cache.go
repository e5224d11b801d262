package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/iliyamo/study-room-reservation/internal/model"
)

// SeatSource is the catalog being cached.
type SeatSource interface {
	GetSeat(ctx context.Context, seatID uint64) (*model.SeatSnapshot, error)
}

// CachedCatalog keeps seat snapshots in Redis as JSON. Concurrent misses
// for the same seat share one load from the source. Redis errors fall back
// to the source so the cache never fails a booking.
type CachedCatalog struct {
	src    SeatSource
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
	group  singleflight.Group
}

// NewCachedCatalog wraps src with a Redis cache.
func NewCachedCatalog(src SeatSource, rdb *redis.Client, prefix string, ttl time.Duration) *CachedCatalog {
	if prefix == "" {
		prefix = "catalog"
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachedCatalog{src: src, rdb: rdb, ttl: ttl, prefix: prefix}
}

func (c *CachedCatalog) key(seatID uint64) string {
	return fmt.Sprintf("%s:seat:%d", c.prefix, seatID)
}

// GetSeat returns the cached snapshot or loads and caches it.
func (c *CachedCatalog) GetSeat(ctx context.Context, seatID uint64) (*model.SeatSnapshot, error) {
	key := c.key(seatID)
	if bs, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var s model.SeatSnapshot
		if err := json.Unmarshal(bs, &s); err == nil {
			return &s, nil
		}
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		seat, err := c.src.GetSeat(ctx, seatID)
		if err != nil {
			return nil, err
		}
		if bs, err := json.Marshal(seat); err == nil {
			_ = c.rdb.Set(ctx, key, bs, c.ttl).Err()
		}
		return seat, nil
	})
	if err != nil {
		return nil, err
	}
	cp := *v.(*model.SeatSnapshot)
	return &cp, nil
}

// Invalidate drops a cached seat, e.g. after its status changes.
func (c *CachedCatalog) Invalidate(ctx context.Context, seatID uint64) error {
	return c.rdb.Del(ctx, c.key(seatID)).Err()
}
