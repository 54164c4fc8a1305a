package payment

import "testing"

func TestLateFeeTiers(t *testing.T) {
	policy := DefaultFeePolicy()
	cases := []struct {
		name     string
		amount   int64
		daysLate int
		want     int64
	}{
		{"three days in first tier", 100_000, 3, 1_500},
		{"boundary of first tier", 100_000, 7, 3_500},
		{"second tier", 100_000, 10, 10_000},
		{"boundary of second tier", 100_000, 30, 30_000},
		{"third tier", 100_000, 31, 46_500},
		{"not yet late", 100_000, 0, 0},
		{"zero amount", 0, 10, 0},
	}
	for _, tc := range cases {
		if got := policy.LateFee(tc.amount, tc.daysLate); got != tc.want {
			t.Fatalf("%s: expected fee %d, got %d", tc.name, tc.want, got)
		}
	}
}

func TestLateFeeRounding(t *testing.T) {
	policy := DefaultFeePolicy()
	// 33,333 at 0.5%/day for 1 day is 166.665, rounded to 167.
	if got := policy.LateFee(33_333, 1); got != 167 {
		t.Fatalf("expected 167, got %d", got)
	}
}
