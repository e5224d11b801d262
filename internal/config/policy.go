package config

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/iliyamo/study-room-reservation/internal/reservation"
)

func setPolicyDefaults(v *viper.Viper) {
	def := reservation.DefaultPolicy()
	v.SetDefault("GRACE_PERIOD", def.GracePeriod)
	v.SetDefault("MAX_RESERVATION_DURATION", def.MaxDuration)
	v.SetDefault("NO_SHOW_DEDUCTION", def.NoShowDeduction)
	v.SetDefault("LEAVE_TIMEOUT", time.Duration(0))
	v.SetDefault("LEAVE_DEDUCTION", def.LeaveDeduction)
	v.SetDefault("OVERSTAY_GRACE", time.Duration(0))
	v.SetDefault("OVERSTAY_DEDUCTION", def.OverstayDeduction)
	v.SetDefault("CREDIT_FLOOR", def.CreditFloor)
	v.SetDefault("CREDIT_CEILING", def.CreditCeiling)
	v.SetDefault("MIN_CREDIT_TO_BOOK", def.MinCreditToBook)
	v.SetDefault("FEE_PER_HOUR", def.FeePerHour.String())
	v.SetDefault("APP_TIMEZONE", "Local")
	v.SetDefault("SWEEP_ON_CREATE", def.SweepOnCreate)
	v.SetDefault("SWEEP_BATCH_SIZE", def.SweepBatchSize)
}

// loadPolicy maps the reservation rule variables onto a reservation.Policy.
func loadPolicy(v *viper.Viper) (reservation.Policy, error) {
	p := reservation.Policy{
		GracePeriod:       v.GetDuration("GRACE_PERIOD"),
		MaxDuration:       v.GetDuration("MAX_RESERVATION_DURATION"),
		NoShowDeduction:   v.GetInt("NO_SHOW_DEDUCTION"),
		LeaveTimeout:      v.GetDuration("LEAVE_TIMEOUT"),
		LeaveDeduction:    v.GetInt("LEAVE_DEDUCTION"),
		OverstayGrace:     v.GetDuration("OVERSTAY_GRACE"),
		OverstayDeduction: v.GetInt("OVERSTAY_DEDUCTION"),
		CreditFloor:       v.GetInt("CREDIT_FLOOR"),
		CreditCeiling:     v.GetInt("CREDIT_CEILING"),
		MinCreditToBook:   v.GetInt("MIN_CREDIT_TO_BOOK"),
		SweepOnCreate:     v.GetBool("SWEEP_ON_CREATE"),
		SweepBatchSize:    v.GetInt("SWEEP_BATCH_SIZE"),
	}

	fee, err := decimal.NewFromString(v.GetString("FEE_PER_HOUR"))
	if err != nil {
		return p, fmt.Errorf("invalid FEE_PER_HOUR: %w", err)
	}
	if fee.IsNegative() {
		return p, fmt.Errorf("invalid FEE_PER_HOUR: %s is negative", fee)
	}
	p.FeePerHour = fee

	loc, err := time.LoadLocation(v.GetString("APP_TIMEZONE"))
	if err != nil {
		return p, fmt.Errorf("invalid APP_TIMEZONE: %w", err)
	}
	p.Location = loc

	if p.GracePeriod < 0 || p.LeaveTimeout < 0 || p.OverstayGrace < 0 {
		return p, fmt.Errorf("policy durations must not be negative")
	}
	if p.NoShowDeduction <= 0 || p.LeaveDeduction <= 0 || p.OverstayDeduction <= 0 {
		return p, fmt.Errorf("violation deductions must be positive")
	}
	if p.SweepBatchSize <= 0 {
		p.SweepBatchSize = reservation.DefaultPolicy().SweepBatchSize
	}
	return p, nil
}
