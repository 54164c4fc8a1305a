package loan

import "testing"

func TestFinalRateBrackets(t *testing.T) {
	policy := DefaultRatePolicy()
	cases := []struct {
		score int
		want  int32
	}{
		{100, 10},
		{80, 10},
		{79, 11},
		{70, 11},
		{65, 12},
		{55, 13},
		{49, 14},
		{0, 14},
	}
	for _, tc := range cases {
		if got := policy.FinalRate(12, tc.score); got != tc.want {
			t.Fatalf("score %d: expected rate %d, got %d", tc.score, tc.want, got)
		}
	}
}

func TestFinalRateMonotonicInScore(t *testing.T) {
	policy := DefaultRatePolicy()
	prev := policy.FinalRate(20, 0)
	for score := 1; score <= 100; score++ {
		rate := policy.FinalRate(20, score)
		if rate > prev {
			t.Fatalf("rate increased from %d to %d at score %d", prev, rate, score)
		}
		prev = rate
	}
}

func TestFinalRateClampedAtZero(t *testing.T) {
	policy := DefaultRatePolicy()
	if got := policy.FinalRate(1, 100); got != 0 {
		t.Fatalf("expected rate clamped to 0, got %d", got)
	}
}

func TestTermPolicyTerms(t *testing.T) {
	terms := DefaultTermPolicy().Terms()
	want := []int32{3, 6, 9, 12}
	if len(terms) != len(want) {
		t.Fatalf("expected %d terms, got %d", len(want), len(terms))
	}
	for i, term := range want {
		if terms[i] != term {
			t.Fatalf("expected term %d at position %d, got %d", term, i, terms[i])
		}
	}
}
