package loan

import "sort"

// TermTier is the lending policy for one supported term bucket.
type TermTier struct {
	BaseRatePct int32
	MaxAmount   int64
}

// TermPolicy maps supported terms (months) to their tier. Terms not
// present are rejected at request time.
type TermPolicy map[int32]TermTier

func DefaultTermPolicy() TermPolicy {
	return TermPolicy{
		3:  {BaseRatePct: 12, MaxAmount: 300_000},
		6:  {BaseRatePct: 15, MaxAmount: 500_000},
		9:  {BaseRatePct: 18, MaxAmount: 750_000},
		12: {BaseRatePct: 20, MaxAmount: 1_000_000},
	}
}

func (p TermPolicy) Tier(termMonths int32) (TermTier, bool) {
	t, ok := p[termMonths]
	return t, ok
}

// Terms returns the supported buckets in ascending order.
func (p TermPolicy) Terms() []int32 {
	out := make([]int32, 0, len(p))
	for t := range p {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ScoreBracket adjusts the base rate for borrowers at or above
// MinScore. Brackets are evaluated highest score first, so a better
// score never yields a worse rate.
type ScoreBracket struct {
	MinScore int
	Adjust   int32
}

type RatePolicy struct {
	Brackets []ScoreBracket
	// Fallback applies below every bracket.
	Fallback int32
}

func DefaultRatePolicy() RatePolicy {
	return RatePolicy{
		Brackets: []ScoreBracket{
			{MinScore: 80, Adjust: -2},
			{MinScore: 70, Adjust: -1},
			{MinScore: 60, Adjust: 0},
			{MinScore: 50, Adjust: 1},
		},
		Fallback: 2,
	}
}

// FinalRate applies the credit-score adjustment to a tier's base rate,
// clamped at zero.
func (p RatePolicy) FinalRate(baseRatePct int32, creditScore int) int32 {
	adjust := p.Fallback
	for _, b := range p.Brackets {
		if creditScore >= b.MinScore {
			adjust = b.Adjust
			break
		}
	}
	rate := baseRatePct + adjust
	if rate < 0 {
		rate = 0
	}
	return rate
}
