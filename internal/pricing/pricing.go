// Package pricing implements the dynamic price and refund calculations.
// Every function here is pure; callers pass the flight snapshot and the
// current time explicitly.
package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote returns the per-seat price for a flight snapshot taken BEFORE
// the reservation is applied, so the price reflects the scarcity the
// customer saw at decision time.
//
// price = base * (1 + seatSurcharge + timeSurcharge) * demandFactor,
// rounded to 2 decimal places, half away from zero.
func Quote(base float64, seatsRemaining, totalSeats int, demandFactor float64, departure, now time.Time) float64 {
	if totalSeats <= 0 {
		totalSeats = 1
	}

	remaining := float64(seatsRemaining) / float64(totalSeats)
	var seatSurcharge float64
	switch {
	case remaining <= 0.05:
		seatSurcharge = 0.60
	case remaining <= 0.10:
		seatSurcharge = 0.40
	case remaining <= 0.20:
		seatSurcharge = 0.20
	case remaining <= 0.50:
		seatSurcharge = 0.10
	}

	hoursLeft := departure.Sub(now).Hours()
	var timeSurcharge float64
	switch {
	case hoursLeft < 0:
		timeSurcharge = 0
	case hoursLeft < 6:
		timeSurcharge = 0.30
	case hoursLeft < 24:
		timeSurcharge = 0.20
	case hoursLeft < 72:
		timeSurcharge = 0.10
	default:
		timeSurcharge = 0.05
	}

	price := decimal.NewFromFloat(base).
		Mul(decimal.NewFromFloat(1 + seatSurcharge + timeSurcharge)).
		Mul(decimal.NewFromFloat(demandFactor))
	f, _ := price.Round(2).Float64()
	return f
}

// DemandFactorFor derives the demand factor from the share of seats
// still available. Applied by the inventory store after every change.
func DemandFactorFor(seatsRemaining, totalSeats int) float64 {
	if totalSeats <= 0 {
		return 1.0
	}
	remaining := float64(seatsRemaining) / float64(totalSeats)
	switch {
	case remaining <= 0.05:
		return 1.6
	case remaining <= 0.10:
		return 1.4
	case remaining <= 0.20:
		return 1.2
	default:
		return 1.0
	}
}

// Round2 rounds a monetary amount to 2 decimal places, half away from
// zero, matching Quote.
func Round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

// MulRound2 multiplies a unit amount by a count in decimal space before
// rounding, so per-passenger totals do not drift.
func MulRound2(unit float64, count int) float64 {
	f, _ := decimal.NewFromFloat(unit).Mul(decimal.NewFromInt(int64(count))).Round(2).Float64()
	return f
}

// RefundTier names the cancellation policy window that applied.
type RefundTier struct {
	Percent float64
	Policy  string
}

// Refund computes the refund for a cancellation happening at now,
// tiered on the hours remaining until departure. The refund is always a
// share of the price actually paid, never of a re-derived price.
func Refund(pricePaid float64, departure, now time.Time) (float64, RefundTier) {
	hoursLeft := departure.Sub(now).Hours()

	var tier RefundTier
	switch {
	case hoursLeft > 72:
		tier = RefundTier{0.90, "More than 72 hours before departure"}
	case hoursLeft > 48:
		tier = RefundTier{0.80, "48-72 hours before departure"}
	case hoursLeft > 24:
		tier = RefundTier{0.60, "24-48 hours before departure"}
	case hoursLeft > 6:
		tier = RefundTier{0.40, "6-24 hours before departure"}
	case hoursLeft > 0:
		tier = RefundTier{0.20, "Less than 6 hours before departure"}
	default:
		tier = RefundTier{0, "Flight already departed - no refund"}
	}

	f, _ := decimal.NewFromFloat(pricePaid).Mul(decimal.NewFromFloat(tier.Percent)).Round(2).Float64()
	return f, tier
}
