package reservation

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/study-room-reservation/internal/model"
)

// Fee is the usage fee of a reservation: whole booked hours times the
// hourly rate. Partial hours are not charged.
type Fee struct {
	ReservationID uint64          `json:"reservation_id"`
	Hours         int64           `json:"hours"`
	RatePerHour   decimal.Decimal `json:"rate_per_hour"`
	Amount        decimal.Decimal `json:"amount"`
}

// CalculateFee computes the fee for r at the given hourly rate.
func CalculateFee(r *model.Reservation, ratePerHour decimal.Decimal) Fee {
	hours := int64(r.Window().Duration() / time.Hour)
	if hours < 0 {
		hours = 0
	}
	return Fee{
		ReservationID: r.ID,
		Hours:         hours,
		RatePerHour:   ratePerHour,
		Amount:        ratePerHour.Mul(decimal.NewFromInt(hours)).Round(2),
	}
}
