package reservation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/study-room-reservation/internal/model"
	"github.com/iliyamo/study-room-reservation/internal/queue"
	"github.com/iliyamo/study-room-reservation/internal/repository/memory"
)

// day is the calendar day every scenario runs on.
var day = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func clock(hour, min int) time.Time {
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(min)*time.Minute)
}

func window(fromH, fromM, toH, toM int) model.TimeWindow {
	return model.TimeWindow{Start: clock(fromH, fromM), End: clock(toH, toM)}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.ReservationEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.ReservationEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) ofType(typ string) []queue.ReservationEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []queue.ReservationEvent
	for _, ev := range p.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

// flakyCredits fails every adjustment while fail is set.
type flakyCredits struct {
	CreditStore
	mu   sync.Mutex
	fail bool
}

func (f *flakyCredits) setFail(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = v
}

func (f *flakyCredits) AdjustCredit(ctx context.Context, e *model.CreditEntry, floor, ceiling int) (bool, error) {
	f.mu.Lock()
	fail := f.fail
	f.mu.Unlock()
	if fail {
		return false, errors.New("credit store unavailable")
	}
	return f.CreditStore.AdjustCredit(ctx, e, floor, ceiling)
}

type fixture struct {
	store   *memory.Store
	clock   *fakeClock
	events  *recordingPublisher
	credits *flakyCredits
	svc     *Service
}

func testPolicy() Policy {
	p := DefaultPolicy()
	p.Location = time.UTC
	return p
}

// newFixture seeds ten seats open 07:00-22:00, students 1 and 2 and admin
// 100, all with credit 100. The clock starts at 07:30.
func newFixture(t *testing.T, tweak func(p *Policy)) *fixture {
	t.Helper()
	policy := testPolicy()
	if tweak != nil {
		tweak(&policy)
	}
	st := memory.New(200 * time.Millisecond)
	memory.SeedDemo(st, "07:00", "22:00")

	f := &fixture{
		store:   st,
		clock:   &fakeClock{now: clock(7, 30)},
		events:  &recordingPublisher{},
		credits: &flakyCredits{CreditStore: st},
	}
	f.svc = NewService(Deps{
		Reservations: st,
		Violations:   st,
		Credits:      f.credits,
		Catalog:      st,
		Users:        st,
		Locks:        st.Locks(),
		Events:       f.events,
		Clock:        f.clock.Now,
	}, policy, zap.NewNop())
	return f
}

func (f *fixture) book(t *testing.T, userID, seatID uint64, w model.TimeWindow) *model.Reservation {
	t.Helper()
	r, err := f.svc.Create(context.Background(), userID, seatID, w)
	require.NoError(t, err)
	return r
}

func (f *fixture) credit(t *testing.T, userID uint64) int {
	t.Helper()
	u, err := f.store.GetUser(context.Background(), userID)
	require.NoError(t, err)
	return u.CreditScore
}

func (f *fixture) state(t *testing.T, id uint64) model.ReservationState {
	t.Helper()
	r, err := f.svc.Get(context.Background(), id)
	require.NoError(t, err)
	return r.State
}

func (f *fixture) violations(t *testing.T, filter model.ViolationFilter) []*model.Violation {
	t.Helper()
	out, err := f.svc.Violations(context.Background(), filter)
	require.NoError(t, err)
	return out
}
