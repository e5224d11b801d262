package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/study-room-reservation/internal/model"
	"github.com/iliyamo/study-room-reservation/internal/repository"
)

// Ledger is the only writer of users' credit scores.
type Ledger struct {
	credits    CreditStore
	violations ViolationStore
	users      UserDirectory
	policy     Policy
	log        *zap.Logger
	now        func() time.Time
}

// NewLedger wires a ledger over the credit and violation stores.
func NewLedger(credits CreditStore, violations ViolationStore, users UserDirectory, policy Policy, log *zap.Logger, now func() time.Time) *Ledger {
	if log == nil {
		log = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &Ledger{credits: credits, violations: violations, users: users, policy: policy, log: log, now: now}
}

// Adjust applies delta to the user's score, clamped to the configured
// bounds, and returns the new score.
func (l *Ledger) Adjust(ctx context.Context, userID uint64, delta int, reason string) (int, error) {
	e := &model.CreditEntry{UserID: userID, Delta: delta, Reason: reason, CreatedAt: l.now()}
	if _, err := l.credits.AdjustCredit(ctx, e, l.policy.CreditFloor, l.policy.CreditCeiling); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, newError(ErrUserNotFound, "user %d not found", userID)
		}
		return 0, internal("adjust credit", err)
	}
	l.log.Info("credit adjusted",
		zap.Uint64("user_id", userID),
		zap.Int("delta", delta),
		zap.Int("applied", e.Applied),
		zap.Int("balance", e.BalanceAfter),
		zap.String("reason", reason))
	return e.BalanceAfter, nil
}

// ApplyViolation deducts v.DeductCredit exactly once per violation and
// marks it processed. Calling it again for the same violation returns the
// current score without another deduction.
func (l *Ledger) ApplyViolation(ctx context.Context, v *model.Violation) (int, error) {
	if v.DeductCredit <= 0 {
		return 0, newError(ErrInvalidDeduction, "violation %d has deduction %d", v.ID, v.DeductCredit)
	}
	e := &model.CreditEntry{
		UserID:    v.UserID,
		Delta:     -v.DeductCredit,
		Reason:    fmt.Sprintf("violation %s", v.Type),
		Key:       violationKey(v.ID),
		CreatedAt: l.now(),
	}
	applied, err := l.credits.AdjustCredit(ctx, e, l.policy.CreditFloor, l.policy.CreditCeiling)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, newError(ErrUserNotFound, "user %d not found", v.UserID)
		}
		return 0, internal("apply violation credit", err)
	}
	if err := l.violations.MarkViolationProcessed(ctx, v.ID); err != nil && !errors.Is(err, repository.ErrStaleState) {
		return 0, internal("mark violation processed", err)
	}
	v.Status = model.ViolationProcessed

	if !applied {
		l.log.Debug("violation deduction already applied", zap.Uint64("violation_id", v.ID))
		u, err := l.users.GetUser(ctx, v.UserID)
		if err != nil {
			return 0, internal("load user", err)
		}
		return u.CreditScore, nil
	}
	l.log.Info("violation deducted",
		zap.Uint64("violation_id", v.ID),
		zap.Uint64("user_id", v.UserID),
		zap.Int("deduct", v.DeductCredit),
		zap.Int("balance", e.BalanceAfter))
	return e.BalanceAfter, nil
}

// History lists the user's ledger rows, newest first.
func (l *Ledger) History(ctx context.Context, userID uint64, limit int) ([]*model.CreditEntry, error) {
	entries, err := l.credits.ListCreditEntries(ctx, userID, limit)
	if err != nil {
		return nil, internal("list credit entries", err)
	}
	return entries, nil
}

// CreditSummary is a user's score together with recent ledger rows.
type CreditSummary struct {
	UserID      uint64               `json:"user_id"`
	CreditScore int                  `json:"credit_score"`
	Status      string               `json:"status"`
	Entries     []*model.CreditEntry `json:"entries"`
}

// Summary returns the user's current score and the latest limit entries.
func (l *Ledger) Summary(ctx context.Context, userID uint64, limit int) (*CreditSummary, error) {
	u, err := l.users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(ErrUserNotFound, "user %d not found", userID)
		}
		return nil, internal("load user", err)
	}
	entries, err := l.History(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	return &CreditSummary{UserID: u.ID, CreditScore: u.CreditScore, Status: u.Status, Entries: entries}, nil
}

func violationKey(id uint64) string { return fmt.Sprintf("violation:%d", id) }
