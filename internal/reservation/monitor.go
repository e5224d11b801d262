package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/study-room-reservation/internal/model"
	"github.com/iliyamo/study-room-reservation/internal/queue"
	"github.com/iliyamo/study-room-reservation/internal/repository"
)

// SweepReport summarizes one pass of the violation monitor.
type SweepReport struct {
	StartedAt      time.Time      `json:"started_at"`
	FinishedAt     time.Time      `json:"finished_at"`
	Scanned        int            `json:"scanned"`
	Violated       int            `json:"violated"`
	Skipped        int            `json:"skipped"`
	Retried        int            `json:"retried"`
	CreditsApplied int            `json:"credits_applied"`
	Failures       []SweepFailure `json:"failures"`

	events []queue.ReservationEvent
}

// SweepFailure records one reservation or violation the sweep could not
// finish. The sweep carries on past it.
type SweepFailure struct {
	ReservationID uint64 `json:"reservation_id,omitempty"`
	ViolationID   uint64 `json:"violation_id,omitempty"`
	Error         string `json:"error"`
}

// Partial reports whether any record failed.
func (r *SweepReport) Partial() bool { return len(r.Failures) > 0 }

// Err returns ErrPartialSweepFailure when any record failed.
func (r *SweepReport) Err() error {
	if !r.Partial() {
		return nil
	}
	return newError(ErrPartialSweepFailure, "violation sweep finished with %d failure(s)", len(r.Failures))
}

func (r *SweepReport) fail(resID, vioID uint64, err error) {
	r.Failures = append(r.Failures, SweepFailure{ReservationID: resID, ViolationID: vioID, Error: err.Error()})
}

// Monitor detects timed-out reservations, moves them to VIOLATED and asks
// the ledger to deduct credit. Several monitors may run at once and may
// race with user transitions; the state compare-and-set decides.
type Monitor struct {
	reservations ReservationStore
	violations   ViolationStore
	ledger       *Ledger
	events       EventPublisher
	policy       Policy
	log          *zap.Logger
	now          func() time.Time
}

// NewMonitor returns a monitor. A nil publisher drops events.
func NewMonitor(reservations ReservationStore, violations ViolationStore, ledger *Ledger, events EventPublisher, policy Policy, log *zap.Logger, now func() time.Time) *Monitor {
	if events == nil {
		events = nopPublisher{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &Monitor{
		reservations: reservations,
		violations:   violations,
		ledger:       ledger,
		events:       events,
		policy:       policy,
		log:          log,
		now:          now,
	}
}

type sweepScope struct {
	userID uint64
	seatID uint64
}

// rule selects reservations for one violation type.
type rule struct {
	typ      model.ViolationType
	deduct   int
	filter   model.ReservationFilter
	describe func(r *model.Reservation) string
}

// Sweep scans every reservation.
func (m *Monitor) Sweep(ctx context.Context) *SweepReport {
	return m.publish(ctx, m.sweep(ctx, sweepScope{}))
}

// SweepUser scans one user's reservations. It runs before that user books.
func (m *Monitor) SweepUser(ctx context.Context, userID uint64) *SweepReport {
	return m.publish(ctx, m.sweep(ctx, sweepScope{userID: userID}))
}

// SweepSeat scans one seat's reservations so that timed-out bookings free
// the seat before a conflict check.
func (m *Monitor) SweepSeat(ctx context.Context, seatID uint64) *SweepReport {
	return m.publish(ctx, m.sweep(ctx, sweepScope{seatID: seatID}))
}

// publish sends the events collected by rep. Callers holding a seat lock
// use sweep directly and publish after releasing it.
func (m *Monitor) publish(ctx context.Context, rep *SweepReport) *SweepReport {
	for _, ev := range rep.events {
		m.events.Publish(ctx, ev)
	}
	rep.events = nil
	return rep
}

// noShowDue reports whether r has passed its check-in deadline.
func (m *Monitor) noShowDue(r *model.Reservation, now time.Time) bool {
	return r.State == model.StateBooked && !r.CreditImpact && r.StartTime.Before(now.Add(-m.policy.GracePeriod))
}

// expireNoShow applies the no-show rule to a single reservation. It is the
// lazy form of the sweep used when a late user action reaches r first.
func (m *Monitor) expireNoShow(ctx context.Context, r *model.Reservation, now time.Time) *SweepReport {
	rep := &SweepReport{StartedAt: now, Failures: []SweepFailure{}}
	if m.noShowDue(r, now) {
		rep.Scanned++
		m.violate(ctx, r, m.noShowRule(), now, rep)
	}
	rep.FinishedAt = now
	return rep
}

func (m *Monitor) noShowRule() rule {
	return rule{
		typ:    model.ViolationNoShow,
		deduct: m.policy.NoShowDeduction,
		describe: func(r *model.Reservation) string {
			return fmt.Sprintf("no check-in within %s of %s", m.policy.GracePeriod, r.StartTime.Format(time.RFC3339))
		},
	}
}

func (m *Monitor) sweep(ctx context.Context, scope sweepScope) *SweepReport {
	now := m.now()
	rep := &SweepReport{StartedAt: now, Failures: []SweepFailure{}}

	if scope.seatID == 0 {
		m.retryPending(ctx, scope, rep)
	}
	for _, rl := range m.rules(now, scope) {
		if ctx.Err() != nil {
			rep.fail(0, 0, ctx.Err())
			break
		}
		candidates, err := m.reservations.ListReservations(ctx, rl.filter)
		if err != nil {
			m.log.Warn("violation sweep: list failed", zap.String("type", string(rl.typ)), zap.Error(err))
			rep.fail(0, 0, fmt.Errorf("list %s candidates: %w", rl.typ, err))
			continue
		}
		for _, r := range candidates {
			rep.Scanned++
			m.violate(ctx, r, rl, now, rep)
		}
	}

	rep.FinishedAt = m.now()
	if rep.Violated > 0 || rep.Partial() {
		m.log.Info("violation sweep finished",
			zap.Uint64("user_id", scope.userID),
			zap.Uint64("seat_id", scope.seatID),
			zap.Int("scanned", rep.Scanned),
			zap.Int("violated", rep.Violated),
			zap.Int("skipped", rep.Skipped),
			zap.Int("retried", rep.Retried),
			zap.Int("failures", len(rep.Failures)))
	}
	return rep
}

func (m *Monitor) rules(now time.Time, scope sweepScope) []rule {
	notImpacted := false
	base := func(states ...model.ReservationState) model.ReservationFilter {
		return model.ReservationFilter{
			UserID:       scope.userID,
			SeatID:       scope.seatID,
			States:       states,
			CreditImpact: &notImpacted,
			Limit:        m.policy.SweepBatchSize,
		}
	}

	noShowCutoff := now.Add(-m.policy.GracePeriod)
	noShow := m.noShowRule()
	noShow.filter = base(model.StateBooked)
	noShow.filter.StartBefore = &noShowCutoff
	rules := []rule{noShow}

	if m.policy.LeaveTimeout > 0 {
		cutoff := now.Add(-m.policy.LeaveTimeout)
		f := base(model.StateOnLeave)
		f.LeftBefore = &cutoff
		rules = append(rules, rule{
			typ:    model.ViolationUnauthorizedLeave,
			deduct: m.policy.LeaveDeduction,
			filter: f,
			describe: func(r *model.Reservation) string {
				return fmt.Sprintf("away from seat for more than %s", m.policy.LeaveTimeout)
			},
		})
	}
	if m.policy.OverstayGrace > 0 {
		cutoff := now.Add(-m.policy.OverstayGrace)
		f := base(model.StateInUse, model.StateOnLeave)
		f.EndBefore = &cutoff
		rules = append(rules, rule{
			typ:    model.ViolationOverstay,
			deduct: m.policy.OverstayDeduction,
			filter: f,
			describe: func(r *model.Reservation) string {
				return fmt.Sprintf("not checked out within %s of %s", m.policy.OverstayGrace, r.EndTime.Format(time.RFC3339))
			},
		})
	}
	return rules
}

func (m *Monitor) violate(ctx context.Context, r *model.Reservation, rl rule, now time.Time, rep *SweepReport) {
	resID := r.ID
	v := &model.Violation{
		UserID:        r.UserID,
		ReservationID: &resID,
		Type:          rl.typ,
		DeductCredit:  rl.deduct,
		Status:        model.ViolationUnprocessed,
		Description:   rl.describe(r),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	updated, err := m.reservations.ApplyTransition(ctx, violateTransition(r, v, now))
	if err != nil {
		if errors.Is(err, repository.ErrStaleState) || errors.Is(err, repository.ErrNotFound) {
			rep.Skipped++
			m.log.Debug("violation sweep: reservation changed concurrently", zap.Uint64("reservation_id", r.ID))
			return
		}
		m.log.Warn("violation sweep: transition failed", zap.Uint64("reservation_id", r.ID), zap.Error(err))
		rep.fail(r.ID, 0, err)
		return
	}
	rep.Violated++
	rep.events = append(rep.events, violationEvent(updated, r.State, v, now))

	if _, err := m.ledger.ApplyViolation(ctx, v); err != nil {
		m.log.Warn("violation sweep: credit deduction failed, will retry",
			zap.Uint64("violation_id", v.ID), zap.Error(err))
		rep.fail(r.ID, v.ID, err)
		return
	}
	rep.CreditsApplied++
}

// retryPending re-applies deductions of violations whose ledger step
// failed earlier. The ledger key keeps this exactly-once.
func (m *Monitor) retryPending(ctx context.Context, scope sweepScope, rep *SweepReport) {
	pending, err := m.violations.ListViolations(ctx, model.ViolationFilter{
		UserID: scope.userID,
		Status: model.ViolationUnprocessed,
		Limit:  m.policy.SweepBatchSize,
	})
	if err != nil {
		m.log.Warn("violation sweep: list pending failed", zap.Error(err))
		rep.fail(0, 0, fmt.Errorf("list pending violations: %w", err))
		return
	}
	for _, v := range pending {
		rep.Retried++
		if _, err := m.ledger.ApplyViolation(ctx, v); err != nil {
			var resID uint64
			if v.ReservationID != nil {
				resID = *v.ReservationID
			}
			rep.fail(resID, v.ID, err)
			continue
		}
		rep.CreditsApplied++
	}
}

func violationEvent(r *model.Reservation, prev model.ReservationState, v *model.Violation, now time.Time) queue.ReservationEvent {
	ev := newEvent(queue.EventViolated, r, prev, now)
	ev.ViolationType = string(v.Type)
	ev.DeductCredit = v.DeductCredit
	return ev
}
