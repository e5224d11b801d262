// Package memory is an in-process implementation of every store the
// reservation core needs. It backs STORE_DRIVER=memory and the tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/study-room-reservation/internal/model"
	"github.com/iliyamo/study-room-reservation/internal/repository"
)

// Store keeps all rows in maps guarded by one mutex, so every method is
// atomic with respect to every other. The seat lock registry lives and dies
// with the store.
type Store struct {
	mu     sync.RWMutex
	locks  *repository.LocalSeatLocks
	nextID uint64

	reservations map[uint64]*model.Reservation
	checkIns     map[uint64]*model.CheckInRecord
	violations   map[uint64]*model.Violation
	seats        map[uint64]*model.SeatSnapshot
	users        map[uint64]*model.UserSnapshot
	credits      []*model.CreditEntry
	creditKeys   map[string]struct{}
}

// New returns an empty store whose seat locks give up after lockWait.
func New(lockWait time.Duration) *Store {
	return &Store{
		locks:        repository.NewLocalSeatLocks(lockWait),
		reservations: make(map[uint64]*model.Reservation),
		checkIns:     make(map[uint64]*model.CheckInRecord),
		violations:   make(map[uint64]*model.Violation),
		seats:        make(map[uint64]*model.SeatSnapshot),
		users:        make(map[uint64]*model.UserSnapshot),
		creditKeys:   make(map[string]struct{}),
	}
}

// Locks returns the store's per-seat lock registry.
func (s *Store) Locks() *repository.LocalSeatLocks { return s.locks }

func (s *Store) id() uint64 {
	s.nextID++
	return s.nextID
}

// PutSeat inserts or replaces a catalog entry.
func (s *Store) PutSeat(seat model.SeatSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seats[seat.SeatID] = &seat
}

// PutUser inserts or replaces a directory entry.
func (s *Store) PutUser(u model.UserSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = &u
}

// GetSeat implements the seat catalog.
func (s *Store) GetSeat(_ context.Context, seatID uint64) (*model.SeatSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seat, ok := s.seats[seatID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *seat
	return &cp, nil
}

// GetUser implements the user directory.
func (s *Store) GetUser(_ context.Context, userID uint64) (*model.UserSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// CreateReservation inserts r unless a blocking reservation on the same
// seat overlaps it.
func (s *Store) CreateReservation(_ context.Context, r *model.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := r.Window()
	for _, existing := range s.reservations {
		if existing.SeatID == r.SeatID && existing.State.Blocking() && existing.Window().Overlaps(w) {
			return repository.ErrConflict
		}
	}
	r.ID = s.id()
	s.reservations[r.ID] = r.Clone()
	return nil
}

// GetReservation returns a copy of one reservation.
func (s *Store) GetReservation(_ context.Context, id uint64) (*model.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reservations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r.Clone(), nil
}

// ListReservations returns matching reservations ordered by id.
func (s *Store) ListReservations(_ context.Context, f model.ReservationFilter) ([]*model.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Reservation, 0)
	for _, r := range s.reservations {
		if f.Matches(r) {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// RescheduleReservation moves a BOOKED reservation to w unless another
// blocking reservation on the same seat overlaps it.
func (s *Store) RescheduleReservation(_ context.Context, id uint64, w model.TimeWindow, at time.Time) (*model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reservations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if r.State != model.StateBooked {
		return nil, repository.ErrStaleState
	}
	for _, existing := range s.reservations {
		if existing.ID != id && existing.SeatID == r.SeatID && existing.State.Blocking() && existing.Window().Overlaps(w) {
			return nil, repository.ErrConflict
		}
	}
	r.StartTime = w.Start
	r.EndTime = w.End
	r.UpdatedAt = at
	return r.Clone(), nil
}

// ApplyTransition validates everything first and only then mutates, so a
// failed transition leaves no trace.
func (s *Store) ApplyTransition(_ context.Context, t *model.Transition) (*model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reservations[t.ReservationID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if r.State != t.From {
		return nil, repository.ErrStaleState
	}
	open := s.openCheckIn(t.ReservationID)
	if t.OpenCheckIn != nil && open != nil {
		return nil, repository.ErrConflict
	}

	if t.OpenCheckIn != nil {
		c := t.OpenCheckIn.Clone()
		c.ID = s.id()
		t.OpenCheckIn.ID = c.ID
		s.checkIns[c.ID] = c
	}
	if t.CheckInStatus != "" && open != nil {
		t.ApplyToCheckIn(open)
	}
	if t.Violation != nil {
		v := t.Violation.Clone()
		v.ID = s.id()
		t.Violation.ID = v.ID
		s.violations[v.ID] = v
	}
	t.ApplyTo(r)
	return r.Clone(), nil
}

func (s *Store) openCheckIn(reservationID uint64) *model.CheckInRecord {
	for _, c := range s.checkIns {
		if c.ReservationID == reservationID && c.Open() {
			return c
		}
	}
	return nil
}

// ActiveCheckIn returns the reservation's open check-in record.
func (s *Store) ActiveCheckIn(_ context.Context, reservationID uint64) (*model.CheckInRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := s.openCheckIn(reservationID)
	if c == nil {
		return nil, repository.ErrNotFound
	}
	return c.Clone(), nil
}

// ListCheckIns returns matching records, newest first.
func (s *Store) ListCheckIns(_ context.Context, f model.CheckInFilter) ([]*model.CheckInRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.CheckInRecord, 0)
	for _, c := range s.checkIns {
		if f.Matches(c) {
			out = append(out, c.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// CreateViolation inserts v and fills its ID.
func (s *Store) CreateViolation(_ context.Context, v *model.Violation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v.ID = s.id()
	s.violations[v.ID] = v.Clone()
	return nil
}

// GetViolation returns a copy of one violation.
func (s *Store) GetViolation(_ context.Context, id uint64) (*model.Violation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.violations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return v.Clone(), nil
}

// ListViolations returns matching violations, oldest first.
func (s *Store) ListViolations(_ context.Context, f model.ViolationFilter) ([]*model.Violation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Violation, 0)
	for _, v := range s.violations {
		if f.Matches(v) {
			out = append(out, v.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// MarkViolationProcessed flips the status once.
func (s *Store) MarkViolationProcessed(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.violations[id]
	if !ok {
		return repository.ErrNotFound
	}
	if v.Status == model.ViolationProcessed {
		return repository.ErrStaleState
	}
	v.Status = model.ViolationProcessed
	v.UpdatedAt = time.Now()
	return nil
}

// AdjustCredit applies e to the user's score unless e.Key was seen before.
func (s *Store) AdjustCredit(_ context.Context, e *model.CreditEntry, floor, ceiling int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.Key != "" {
		if _, seen := s.creditKeys[e.Key]; seen {
			return false, nil
		}
	}
	u, ok := s.users[e.UserID]
	if !ok {
		return false, repository.ErrNotFound
	}
	next := repository.ClampCredit(u.CreditScore+e.Delta, floor, ceiling)
	e.Applied = next - u.CreditScore
	e.BalanceAfter = next
	e.ID = s.id()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	u.CreditScore = next
	cp := *e
	s.credits = append(s.credits, &cp)
	if e.Key != "" {
		s.creditKeys[e.Key] = struct{}{}
	}
	return true, nil
}

// ListCreditEntries returns the user's ledger rows, newest first.
func (s *Store) ListCreditEntries(_ context.Context, userID uint64, limit int) ([]*model.CreditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.CreditEntry, 0)
	for i := len(s.credits) - 1; i >= 0; i-- {
		if s.credits[i].UserID != userID {
			continue
		}
		cp := *s.credits[i]
		out = append(out, &cp)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
