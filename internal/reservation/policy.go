package reservation

import (
	"time"

	"github.com/shopspring/decimal"
)

// Policy holds the tunable rules of the reservation lifecycle.
type Policy struct {
	// GracePeriod is how long after the window start a BOOKED
	// reservation may still be checked in before it becomes a no-show.
	GracePeriod     time.Duration
	MaxDuration     time.Duration
	NoShowDeduction int

	// LeaveTimeout and OverstayGrace enable the optional absence rules
	// when positive.
	LeaveTimeout      time.Duration
	LeaveDeduction    int
	OverstayGrace     time.Duration
	OverstayDeduction int

	CreditFloor     int
	CreditCeiling   int
	MinCreditToBook int

	FeePerHour decimal.Decimal
	Location   *time.Location

	SweepOnCreate  bool
	SweepBatchSize int
}

// DefaultPolicy returns the rules the service ships with.
func DefaultPolicy() Policy {
	return Policy{
		GracePeriod:       2 * time.Hour,
		MaxDuration:       12 * time.Hour,
		NoShowDeduction:   1,
		LeaveDeduction:    1,
		OverstayDeduction: 1,
		CreditFloor:       0,
		CreditCeiling:     100,
		MinCreditToBook:   0,
		FeePerHour:        decimal.NewFromInt(1),
		Location:          time.Local,
		SweepOnCreate:     true,
		SweepBatchSize:    200,
	}
}

func (p Policy) location() *time.Location {
	if p.Location == nil {
		return time.Local
	}
	return p.Location
}
