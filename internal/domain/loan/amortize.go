package loan

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/tinhptlocal/credit-bot/internal/faults"
)

// Installment is one month of an equal-installment schedule, already
// rounded to the smallest currency unit.
type Installment struct {
	Month            int32 `json:"month"`
	Payment          int64 `json:"payment"`
	Principal        int64 `json:"principal"`
	Interest         int64 `json:"interest"`
	RemainingBalance int64 `json:"remaining_balance"`
}

type Schedule struct {
	MonthlyPayment int64         `json:"monthly_payment"`
	TotalAmount    int64         `json:"total_amount"`
	TotalInterest  int64         `json:"total_interest"`
	Installments   []Installment `json:"installments"`
}

// Amortize computes the standard equal-installment (EMI) schedule:
//
//	r = annualRatePct / 12 / 100
//	M = P * r * (1+r)^n / ((1+r)^n - 1)
//
// with the zero-rate case degenerating to an even split. Monetary
// arithmetic uses decimals; float64 is only used for the power term.
// Amounts are rounded half away from zero to whole currency units,
// and the final installment closes out the remaining balance exactly,
// so the principal components sum to P.
func Amortize(principal int64, annualRatePct int32, termMonths int32) (*Schedule, error) {
	if principal <= 0 {
		return nil, faults.New(faults.Validation, "invalid_principal", "principal must be positive")
	}
	if termMonths <= 0 {
		return nil, faults.New(faults.Validation, "invalid_term", "term must be a positive number of months")
	}
	if annualRatePct < 0 {
		return nil, faults.New(faults.Validation, "invalid_rate", "rate must not be negative")
	}

	monthlyRate := decimal.NewFromInt32(annualRatePct).Div(decimal.NewFromInt(1200))

	var monthlyPayment decimal.Decimal
	if monthlyRate.IsZero() {
		monthlyPayment = decimal.NewFromInt(principal).Div(decimal.NewFromInt32(termMonths))
	} else {
		r, _ := monthlyRate.Float64()
		factor := math.Pow(1+r, float64(termMonths))
		monthlyPayment = decimal.NewFromFloat(
			float64(principal) * r * factor / (factor - 1),
		)
	}

	balance := decimal.NewFromInt(principal)
	installments := make([]Installment, 0, termMonths)
	var paidPrincipal, totalAmount, totalInterest int64

	for month := int32(1); month <= termMonths; month++ {
		interest := balance.Mul(monthlyRate)
		interestUnit := interest.Round(0).IntPart()

		var principalUnit int64
		if month == termMonths {
			// Absorb accumulated rounding drift into the last row so
			// the principal components sum to P exactly.
			principalUnit = principal - paidPrincipal
		} else {
			principalPart := monthlyPayment.Sub(interest)
			principalUnit = principalPart.Round(0).IntPart()
			balance = balance.Sub(principalPart)
		}
		paidPrincipal += principalUnit

		installments = append(installments, Installment{
			Month:            month,
			Payment:          principalUnit + interestUnit,
			Principal:        principalUnit,
			Interest:         interestUnit,
			RemainingBalance: principal - paidPrincipal,
		})
		totalAmount += principalUnit + interestUnit
		totalInterest += interestUnit
	}

	return &Schedule{
		MonthlyPayment: monthlyPayment.Round(0).IntPart(),
		TotalAmount:    totalAmount,
		TotalInterest:  totalInterest,
		Installments:   installments,
	}, nil
}
