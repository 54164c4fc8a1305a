package payment

import "github.com/shopspring/decimal"

// FeeTier is a daily penalty rate in basis points applied when the
// days late fall within MaxDays. The matched tier's rate applies to
// the whole overdue span, it does not compound across tiers.
type FeeTier struct {
	MaxDays     int
	DailyRateBP int64
}

type FeePolicy []FeeTier

// DefaultFeePolicy escalates the daily rate the longer an installment
// stays unpaid: 0.5%/day for the first week, 1%/day up to a month,
// 1.5%/day beyond that.
func DefaultFeePolicy() FeePolicy {
	return FeePolicy{
		{MaxDays: 7, DailyRateBP: 50},
		{MaxDays: 30, DailyRateBP: 100},
		{MaxDays: 0, DailyRateBP: 150}, // no upper bound
	}
}

// LateFee computes the penalty for an installment that is daysLate
// days past due, rounded to the nearest currency unit.
func (p FeePolicy) LateFee(amount int64, daysLate int) int64 {
	if daysLate <= 0 || amount <= 0 {
		return 0
	}
	var rate int64
	for _, tier := range p {
		rate = tier.DailyRateBP
		if tier.MaxDays == 0 || daysLate <= tier.MaxDays {
			break
		}
	}
	fee := decimal.NewFromInt(amount).
		Mul(decimal.NewFromInt(rate)).
		Mul(decimal.NewFromInt(int64(daysLate))).
		Div(decimal.NewFromInt(10000))
	return fee.Round(0).IntPart()
}
