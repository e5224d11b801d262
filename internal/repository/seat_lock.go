package repository

// This file defines the per-seat lock registries that serialize reservation
// writers for one seat. LocalSeatLocks serves a single process and the
// in-memory store; RedisSeatLocks is shared by every instance pointed at the
// same Redis.

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// LocalSeatLocks is an in-process lock table keyed by seat id. Entries are
// created on demand and dropped once nobody holds or waits for them.
type LocalSeatLocks struct {
	mu    sync.Mutex
	seats map[uint64]*seatLock
	wait  time.Duration
}

type seatLock struct {
	ch   chan struct{}
	refs int
}

// NewLocalSeatLocks returns a registry whose Lock gives up after wait.
// A zero wait only honours the caller's context.
func NewLocalSeatLocks(wait time.Duration) *LocalSeatLocks {
	return &LocalSeatLocks{seats: make(map[uint64]*seatLock), wait: wait}
}

// Lock blocks until seatID is free, the wait elapses or ctx is done.
func (l *LocalSeatLocks) Lock(ctx context.Context, seatID uint64) (func(), error) {
	l.mu.Lock()
	sl, ok := l.seats[seatID]
	if !ok {
		sl = &seatLock{ch: make(chan struct{}, 1)}
		l.seats[seatID] = sl
	}
	sl.refs++
	l.mu.Unlock()

	if l.wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.wait)
		defer cancel()
	}
	select {
	case sl.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-sl.ch
				l.release(seatID, sl)
			})
		}, nil
	case <-ctx.Done():
		l.release(seatID, sl)
		return nil, fmt.Errorf("%w: seat %d: %v", ErrLockTimeout, seatID, ctx.Err())
	}
}

func (l *LocalSeatLocks) release(seatID uint64, sl *seatLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	sl.refs--
	if sl.refs == 0 {
		delete(l.seats, seatID)
	}
}

// Len returns the number of seats currently locked or waited on.
func (l *LocalSeatLocks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.seats)
}

// releaseScript deletes the lock only if it still carries our token, so an
// expired holder never frees a lock taken over by someone else.
var releaseScript = redis.NewScript(`
    if redis.call('GET', KEYS[1]) == ARGV[1] then
        return redis.call('DEL', KEYS[1])
    end
    return 0
`)

// RedisSeatLocks is a distributed lock table built on SET NX PX. The TTL
// bounds how long a crashed holder can block a seat.
type RedisSeatLocks struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	wait   time.Duration
	retry  time.Duration
}

// NewRedisSeatLocks returns a Redis backed registry.
func NewRedisSeatLocks(rdb *redis.Client, prefix string, ttl, wait time.Duration) *RedisSeatLocks {
	if prefix == "" {
		prefix = "lock"
	}
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisSeatLocks{rdb: rdb, prefix: prefix, ttl: ttl, wait: wait, retry: 25 * time.Millisecond}
}

func (l *RedisSeatLocks) key(seatID uint64) string {
	return fmt.Sprintf("%s:seat:%d", l.prefix, seatID)
}

// Lock polls until the seat key is acquired or the wait elapses.
func (l *RedisSeatLocks) Lock(ctx context.Context, seatID uint64) (func(), error) {
	key := l.key(seatID)
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)
	for {
		ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("seat lock %d: %w", seatID, err)
		}
		if ok {
			var once sync.Once
			return func() {
				once.Do(func() {
					rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
					defer cancel()
					_ = releaseScript.Run(rctx, l.rdb, []string{key}, token).Err()
				})
			}, nil
		}
		if !time.Now().Before(deadline) {
			return nil, fmt.Errorf("%w: seat %d", ErrLockTimeout, seatID)
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: seat %d: %v", ErrLockTimeout, seatID, ctx.Err())
		case <-time.After(l.retry):
		}
	}
}
