// Package reservation implements the seat reservation lifecycle: window
// validation, conflict detection, the state machine, the violation monitor
// and the credit ledger.
package reservation

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/study-room-reservation/internal/model"
	"github.com/iliyamo/study-room-reservation/internal/queue"
	"github.com/iliyamo/study-room-reservation/internal/repository"
)

// Deps are the collaborators of a Service. Events and Clock are optional.
type Deps struct {
	Reservations ReservationStore
	Violations   ViolationStore
	Credits      CreditStore
	Catalog      SeatCatalog
	Users        UserDirectory
	Locks        SeatLocker
	Events       EventPublisher
	Clock        func() time.Time
}

// Service is the entry point used by the HTTP layer and the sweep worker.
type Service struct {
	reservations ReservationStore
	violations   ViolationStore
	catalog      SeatCatalog
	users        UserDirectory
	locks        SeatLocker
	events       EventPublisher
	conflicts    *ConflictDetector
	ledger       *Ledger
	monitor      *Monitor
	policy       Policy
	log          *zap.Logger
	now          func() time.Time
}

// NewService wires the reservation core.
func NewService(d Deps, policy Policy, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if d.Events == nil {
		d.Events = nopPublisher{}
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	ledger := NewLedger(d.Credits, d.Violations, d.Users, policy, log.Named("ledger"), d.Clock)
	return &Service{
		reservations: d.Reservations,
		violations:   d.Violations,
		catalog:      d.Catalog,
		users:        d.Users,
		locks:        d.Locks,
		events:       d.Events,
		conflicts:    NewConflictDetector(d.Reservations),
		ledger:       ledger,
		monitor:      NewMonitor(d.Reservations, d.Violations, ledger, d.Events, policy, log.Named("monitor"), d.Clock),
		policy:       policy,
		log:          log,
		now:          d.Clock,
	}
}

// Monitor exposes the violation monitor for the sweep worker.
func (s *Service) Monitor() *Monitor { return s.monitor }

// Ledger exposes the credit ledger.
func (s *Service) Ledger() *Ledger { return s.ledger }

// Policy returns the active rules.
func (s *Service) Policy() Policy { return s.policy }

// Create books seatID for userID over w.
func (s *Service) Create(ctx context.Context, userID, seatID uint64, w model.TimeWindow) (*model.Reservation, error) {
	if s.policy.SweepOnCreate {
		if rep := s.monitor.SweepUser(ctx, userID); rep.Partial() {
			s.log.Warn("lazy user sweep incomplete", zap.Uint64("user_id", userID), zap.Int("failures", len(rep.Failures)))
		}
	}
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(ErrUserNotFound, "user %d not found", userID)
		}
		return nil, internal("load user", err)
	}
	if user.Status != model.UserActive {
		return nil, newError(ErrUserBanned, "user %d is %s", userID, user.Status)
	}
	if user.CreditScore < s.policy.MinCreditToBook {
		return nil, newError(ErrInsufficientCredit, "credit score %d is below %d", user.CreditScore, s.policy.MinCreditToBook)
	}

	seat, err := s.seat(ctx, seatID)
	if err != nil {
		return nil, err
	}
	if err := ValidateWindow(seat, w, s.now(), s.policy); err != nil {
		return nil, err
	}

	r, events, err := s.createLocked(ctx, userID, seatID, w)
	s.publish(ctx, events)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// createLocked runs the conflict check and insert under the seat lock and
// returns the events to publish once the lock is released.
func (s *Service) createLocked(ctx context.Context, userID, seatID uint64, w model.TimeWindow) (*model.Reservation, []queue.ReservationEvent, error) {
	unlock, err := s.lock(ctx, seatID)
	if err != nil {
		return nil, nil, err
	}
	defer unlock()

	var events []queue.ReservationEvent
	if s.policy.SweepOnCreate {
		rep := s.monitor.sweep(ctx, sweepScope{seatID: seatID})
		events = append(events, rep.events...)
	}
	if err := s.conflicts.Check(ctx, seatID, w, 0); err != nil {
		return nil, events, err
	}

	now := s.now()
	r := &model.Reservation{
		UserID:    userID,
		SeatID:    seatID,
		StartTime: w.Start,
		EndTime:   w.End,
		State:     model.StateBooked,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.reservations.CreateReservation(ctx, r); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, events, newError(ErrSlotTaken, "seat %d was reserved concurrently for an overlapping window", seatID)
		}
		return nil, events, internal("create reservation", err)
	}
	s.log.Info("reservation created",
		zap.Uint64("reservation_id", r.ID),
		zap.Uint64("user_id", userID),
		zap.Uint64("seat_id", seatID),
		zap.Time("start", w.Start),
		zap.Time("end", w.End))
	return r, append(events, newEvent(queue.EventCreated, r, "", now)), nil
}

// Reschedule moves a BOOKED reservation to a new window on the same seat.
// The reservation's own current window does not count as a conflict.
func (s *Service) Reschedule(ctx context.Context, id uint64, w model.TimeWindow) (*model.Reservation, error) {
	r, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.State != model.StateBooked {
		return nil, newError(ErrInvalidTransition, "reservation %d is %s and cannot be rescheduled", id, r.State)
	}
	seat, err := s.seat(ctx, r.SeatID)
	if err != nil {
		return nil, err
	}
	if err := ValidateWindow(seat, w, s.now(), s.policy); err != nil {
		return nil, err
	}
	updated, events, err := s.rescheduleLocked(ctx, r.SeatID, id, w)
	s.publish(ctx, events)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) rescheduleLocked(ctx context.Context, seatID, id uint64, w model.TimeWindow) (*model.Reservation, []queue.ReservationEvent, error) {
	unlock, err := s.lock(ctx, seatID)
	if err != nil {
		return nil, nil, err
	}
	defer unlock()

	r, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	now := s.now()
	if s.monitor.noShowDue(r, now) {
		rep := s.monitor.expireNoShow(ctx, r, now)
		return nil, rep.events, newError(ErrInvalidTransition, "reservation %d missed its check-in deadline and cannot be rescheduled", id)
	}
	if r.State != model.StateBooked {
		return nil, nil, newError(ErrInvalidTransition, "reservation %d is %s and cannot be rescheduled", id, r.State)
	}
	if err := s.conflicts.Check(ctx, seatID, w, id); err != nil {
		return nil, nil, err
	}
	updated, err := s.reservations.RescheduleReservation(ctx, id, w, now)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrConflict):
			return nil, nil, newError(ErrSlotTaken, "seat %d was reserved concurrently for an overlapping window", seatID)
		case errors.Is(err, repository.ErrStaleState):
			return nil, nil, newError(ErrConcurrentUpdate, "reservation %d changed while being rescheduled", id)
		case errors.Is(err, repository.ErrNotFound):
			return nil, nil, newError(ErrReservationNotFound, "reservation %d not found", id)
		}
		return nil, nil, internal("reschedule reservation", err)
	}
	s.log.Info("reservation rescheduled",
		zap.Uint64("reservation_id", id),
		zap.Time("from_start", r.StartTime),
		zap.Time("start", w.Start),
		zap.Time("end", w.End))
	return updated, []queue.ReservationEvent{newEvent(queue.EventRescheduled, updated, "", now)}, nil
}

// CheckAvailability reports whether w is bookable on seatID right now
// without writing anything.
func (s *Service) CheckAvailability(ctx context.Context, seatID uint64, w model.TimeWindow) error {
	seat, err := s.seat(ctx, seatID)
	if err != nil {
		return err
	}
	if err := ValidateWindow(seat, w, s.now(), s.policy); err != nil {
		return err
	}
	return s.conflicts.Check(ctx, seatID, w, 0)
}

// CheckIn moves a BOOKED reservation to IN_USE. Past start + grace the
// reservation is recorded as a no-show instead and the call fails.
func (s *Service) CheckIn(ctx context.Context, id uint64, method model.CheckInMethod) (*model.Reservation, error) {
	if method == "" {
		method = model.MethodManual
	}
	if !method.Valid() {
		return nil, newError(ErrInvalidMethod, "unknown check-in method %q", method)
	}
	updated, events, err := s.checkInLocked(ctx, id, method)
	s.publish(ctx, events)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// CheckInWithCode decodes a QR payload and checks the reservation in.
func (s *Service) CheckInWithCode(ctx context.Context, code string) (*model.Reservation, error) {
	id, err := DecodeCheckInCode(code)
	if err != nil {
		return nil, err
	}
	return s.CheckIn(ctx, id, model.MethodQRCode)
}

// Leave moves IN_USE to ON_LEAVE.
func (s *Service) Leave(ctx context.Context, id uint64) (*model.Reservation, error) {
	return s.transition(ctx, id, queue.EventLeft, leaveTransition)
}

// ReturnFromLeave moves ON_LEAVE back to IN_USE.
func (s *Service) ReturnFromLeave(ctx context.Context, id uint64) (*model.Reservation, error) {
	return s.transition(ctx, id, queue.EventReturned, returnTransition)
}

// CheckOut completes an active reservation.
func (s *Service) CheckOut(ctx context.Context, id uint64) (*model.Reservation, error) {
	return s.transition(ctx, id, queue.EventCheckedOut, checkOutTransition)
}

// Cancel cancels a reservation that has not been checked in.
func (s *Service) Cancel(ctx context.Context, id uint64) (*model.Reservation, error) {
	return s.transition(ctx, id, queue.EventCancelled, cancelTransition)
}

// UpdateStatus is the administrative override. It skips the lifecycle
// table but never leaves a terminal state.
func (s *Service) UpdateStatus(ctx context.Context, id uint64, to model.ReservationState) (*model.Reservation, error) {
	if !to.Valid() {
		return nil, newError(ErrInvalidState, "unknown reservation state %q", to)
	}
	return s.transition(ctx, id, queue.EventStatusUpdated, func(r *model.Reservation, now time.Time) (*model.Transition, error) {
		return overrideTransition(r, to, now)
	})
}

type transitionFunc func(r *model.Reservation, now time.Time) (*model.Transition, error)

// transition runs one user or admin state change under the seat lock and
// applies it with compare-and-set. The re-read under the lock narrows the
// window for races with other users; the monitor is still resolved by the
// compare-and-set. Events go out after the lock is released.
func (s *Service) transition(ctx context.Context, id uint64, eventType string, build transitionFunc) (*model.Reservation, error) {
	updated, events, err := s.transitionLocked(ctx, id, eventType, build)
	s.publish(ctx, events)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) transitionLocked(ctx context.Context, id uint64, eventType string, build transitionFunc) (*model.Reservation, []queue.ReservationEvent, error) {
	r, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	unlock, err := s.lock(ctx, r.SeatID)
	if err != nil {
		return nil, nil, err
	}
	defer unlock()

	if r, err = s.Get(ctx, id); err != nil {
		return nil, nil, err
	}
	now := s.now()
	t, err := build(r, now)
	if err != nil {
		return nil, nil, err
	}
	updated, err := s.reservations.ApplyTransition(ctx, t)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrStaleState):
			return nil, nil, newError(ErrConcurrentUpdate, "reservation %d changed while moving from %s to %s", id, t.From, t.To)
		case errors.Is(err, repository.ErrNotFound):
			return nil, nil, newError(ErrReservationNotFound, "reservation %d not found", id)
		}
		return nil, nil, internal("apply transition", err)
	}
	s.log.Info("reservation transition",
		zap.Uint64("reservation_id", id),
		zap.String("from", string(t.From)),
		zap.String("to", string(t.To)))
	return updated, []queue.ReservationEvent{newEvent(eventType, updated, t.From, now)}, nil
}

// checkInLocked is transitionLocked for check-in. A BOOKED reservation
// past start + grace is violated as a no-show on the spot instead of being
// checked in.
func (s *Service) checkInLocked(ctx context.Context, id uint64, method model.CheckInMethod) (*model.Reservation, []queue.ReservationEvent, error) {
	var expired *SweepReport
	updated, events, err := s.transitionLocked(ctx, id, queue.EventCheckedIn, func(r *model.Reservation, now time.Time) (*model.Transition, error) {
		if s.monitor.noShowDue(r, now) {
			expired = s.monitor.expireNoShow(ctx, r, now)
			return nil, newError(ErrInvalidTransition, "reservation %d missed its check-in deadline %s",
				id, r.StartTime.Add(s.policy.GracePeriod).Format(time.RFC3339))
		}
		return checkInTransition(r, method, now)
	})
	if expired != nil {
		events = append(events, expired.events...)
	}
	return updated, events, err
}

func (s *Service) publish(ctx context.Context, events []queue.ReservationEvent) {
	for _, ev := range events {
		s.events.Publish(ctx, ev)
	}
}

// Get loads one reservation.
func (s *Service) Get(ctx context.Context, id uint64) (*model.Reservation, error) {
	r, err := s.reservations.GetReservation(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(ErrReservationNotFound, "reservation %d not found", id)
		}
		return nil, internal("load reservation", err)
	}
	return r, nil
}

// List returns reservations matching an optional user and state.
func (s *Service) List(ctx context.Context, userID uint64, state model.ReservationState) ([]*model.Reservation, error) {
	f := model.ReservationFilter{UserID: userID}
	if state != "" {
		if !state.Valid() {
			return nil, newError(ErrInvalidState, "unknown reservation state %q", state)
		}
		f.States = []model.ReservationState{state}
	}
	return s.list(ctx, f, false)
}

// Upcoming returns the user's BOOKED reservations that have not started,
// earliest first.
func (s *Service) Upcoming(ctx context.Context, userID uint64) ([]*model.Reservation, error) {
	now := s.now()
	return s.list(ctx, model.ReservationFilter{
		UserID:    userID,
		States:    []model.ReservationState{model.StateBooked},
		StartFrom: &now,
	}, true)
}

// Today returns the user's reservations starting on the current calendar
// day in the configured time zone, earliest first.
func (s *Service) Today(ctx context.Context, userID uint64) ([]*model.Reservation, error) {
	now := s.now().In(s.policy.location())
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	to := from.AddDate(0, 0, 1)
	return s.list(ctx, model.ReservationFilter{UserID: userID, StartFrom: &from, StartBefore: &to}, true)
}

func (s *Service) list(ctx context.Context, f model.ReservationFilter, ascending bool) ([]*model.Reservation, error) {
	out, err := s.reservations.ListReservations(ctx, f)
	if err != nil {
		return nil, internal("list reservations", err)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if ascending {
			return out[i].StartTime.Before(out[j].StartTime)
		}
		return out[i].StartTime.After(out[j].StartTime)
	})
	return out, nil
}

// Fee computes the usage fee of a reservation.
func (s *Service) Fee(ctx context.Context, id uint64) (Fee, error) {
	r, err := s.Get(ctx, id)
	if err != nil {
		return Fee{}, err
	}
	return CalculateFee(r, s.policy.FeePerHour), nil
}

// CheckInCode issues a QR payload for a reservation that can still be
// checked in.
func (s *Service) CheckInCode(ctx context.Context, id uint64) (string, error) {
	r, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if r.State != model.StateBooked {
		if r.State.Active() {
			return "", newError(ErrAlreadyCheckedIn, "reservation %d is already checked in", id)
		}
		return "", invalidTransition(r, model.StateInUse)
	}
	return EncodeCheckInCode(id), nil
}

// CheckIns lists check-in records.
func (s *Service) CheckIns(ctx context.Context, f model.CheckInFilter) ([]*model.CheckInRecord, error) {
	out, err := s.reservations.ListCheckIns(ctx, f)
	if err != nil {
		return nil, internal("list check-ins", err)
	}
	return out, nil
}

// CurrentCheckIn returns the user's open check-in record, if any.
func (s *Service) CurrentCheckIn(ctx context.Context, userID uint64) (*model.CheckInRecord, error) {
	active, err := s.reservations.ListReservations(ctx, model.ReservationFilter{
		UserID: userID,
		States: []model.ReservationState{model.StateInUse, model.StateOnLeave},
	})
	if err != nil {
		return nil, internal("list active reservations", err)
	}
	for _, r := range active {
		c, err := s.reservations.ActiveCheckIn(ctx, r.ID)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, internal("load check-in", err)
		}
		return c, nil
	}
	return nil, newError(ErrCheckInNotFound, "user %d has no active check-in", userID)
}

// RunViolationSweep scans all reservations once.
func (s *Service) RunViolationSweep(ctx context.Context) *SweepReport {
	return s.monitor.Sweep(ctx)
}

// CreateViolation records an administrative violation and applies its
// deduction immediately.
func (s *Service) CreateViolation(ctx context.Context, userID uint64, reservationID *uint64, typ model.ViolationType, deduct int, description string) (*model.Violation, error) {
	if !typ.Valid() {
		return nil, newError(ErrInvalidState, "unknown violation type %q", typ)
	}
	if deduct <= 0 {
		return nil, newError(ErrInvalidDeduction, "deduction must be positive, got %d", deduct)
	}
	if _, err := s.users.GetUser(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(ErrUserNotFound, "user %d not found", userID)
		}
		return nil, internal("load user", err)
	}
	if reservationID != nil {
		r, err := s.Get(ctx, *reservationID)
		if err != nil {
			return nil, err
		}
		if r.UserID != userID {
			return nil, newError(ErrForbidden, "reservation %d does not belong to user %d", r.ID, userID)
		}
	}
	now := s.now()
	v := &model.Violation{
		UserID:        userID,
		ReservationID: reservationID,
		Type:          typ,
		DeductCredit:  deduct,
		Status:        model.ViolationUnprocessed,
		Description:   description,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.violations.CreateViolation(ctx, v); err != nil {
		return nil, internal("create violation", err)
	}
	if _, err := s.ledger.ApplyViolation(ctx, v); err != nil {
		// the violation stays unprocessed and the next sweep retries it
		s.log.Warn("violation deduction deferred", zap.Uint64("violation_id", v.ID), zap.Error(err))
	}
	return v, nil
}

// ProcessViolation applies a pending violation's deduction.
func (s *Service) ProcessViolation(ctx context.Context, id uint64) (*model.Violation, error) {
	v, err := s.Violation(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.ledger.ApplyViolation(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

// Violation loads one violation.
func (s *Service) Violation(ctx context.Context, id uint64) (*model.Violation, error) {
	v, err := s.violations.GetViolation(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(ErrViolationNotFound, "violation %d not found", id)
		}
		return nil, internal("load violation", err)
	}
	return v, nil
}

// Violations lists violations.
func (s *Service) Violations(ctx context.Context, f model.ViolationFilter) ([]*model.Violation, error) {
	out, err := s.violations.ListViolations(ctx, f)
	if err != nil {
		return nil, internal("list violations", err)
	}
	return out, nil
}

func (s *Service) seat(ctx context.Context, seatID uint64) (*model.SeatSnapshot, error) {
	seat, err := s.catalog.GetSeat(ctx, seatID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(ErrSeatNotFound, "seat %d not found", seatID)
		}
		return nil, internal("load seat", err)
	}
	return seat, nil
}

func (s *Service) lock(ctx context.Context, seatID uint64) (func(), error) {
	unlock, err := s.locks.Lock(ctx, seatID)
	if err != nil {
		if errors.Is(err, repository.ErrLockTimeout) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, newError(ErrConcurrentUpdate, "seat %d is busy, try again", seatID)
		}
		return nil, internal("lock seat", err)
	}
	return unlock, nil
}

func newEvent(typ string, r *model.Reservation, prev model.ReservationState, now time.Time) queue.ReservationEvent {
	return queue.ReservationEvent{
		Type:          typ,
		ReservationID: r.ID,
		UserID:        r.UserID,
		SeatID:        r.SeatID,
		State:         string(r.State),
		PreviousState: string(prev),
		StartsAt:      r.StartTime.UTC().Format(time.RFC3339),
		EndsAt:        r.EndTime.UTC().Format(time.RFC3339),
		OccurredAt:    now.UTC().Format(time.RFC3339),
	}
}
