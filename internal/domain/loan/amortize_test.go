package loan

import (
	"testing"

	"github.com/tinhptlocal/credit-bot/internal/faults"
)

func TestAmortizeStandardSchedule(t *testing.T) {
	// 1,000,000 over 3 months at 12%/yr is the canonical worked
	// example: EMI of 340,022.
	sched, err := Amortize(1_000_000, 12, 3)
	if err != nil {
		t.Fatalf("amortize: %v", err)
	}
	if sched.MonthlyPayment != 340_022 {
		t.Fatalf("expected monthly payment 340022, got %d", sched.MonthlyPayment)
	}
	if len(sched.Installments) != 3 {
		t.Fatalf("expected 3 installments, got %d", len(sched.Installments))
	}
	if last := sched.Installments[2]; last.RemainingBalance != 0 {
		t.Fatalf("expected zero balance after last installment, got %d", last.RemainingBalance)
	}

	var principal int64
	for _, inst := range sched.Installments {
		if inst.Payment != inst.Principal+inst.Interest {
			t.Fatalf("installment %d does not split: payment=%d principal=%d interest=%d",
				inst.Month, inst.Payment, inst.Principal, inst.Interest)
		}
		principal += inst.Principal
	}
	if principal != 1_000_000 {
		t.Fatalf("principal components sum to %d, want 1000000", principal)
	}
	if sched.TotalAmount != principal+sched.TotalInterest {
		t.Fatalf("total %d != principal %d + interest %d", sched.TotalAmount, principal, sched.TotalInterest)
	}
}

func TestAmortizeClosesBalanceForAllTiers(t *testing.T) {
	for term, tier := range DefaultTermPolicy() {
		sched, err := Amortize(tier.MaxAmount, tier.BaseRatePct, term)
		if err != nil {
			t.Fatalf("amortize term %d: %v", term, err)
		}
		var principal int64
		for _, inst := range sched.Installments {
			principal += inst.Principal
		}
		if principal != tier.MaxAmount {
			t.Fatalf("term %d: principal sums to %d, want %d", term, principal, tier.MaxAmount)
		}
		if sched.Installments[len(sched.Installments)-1].RemainingBalance != 0 {
			t.Fatalf("term %d: schedule does not close out", term)
		}
	}
}

func TestAmortizeZeroRate(t *testing.T) {
	sched, err := Amortize(90_000, 0, 3)
	if err != nil {
		t.Fatalf("amortize: %v", err)
	}
	if sched.TotalInterest != 0 {
		t.Fatalf("expected zero interest, got %d", sched.TotalInterest)
	}
	for _, inst := range sched.Installments {
		if inst.Payment != 30_000 {
			t.Fatalf("expected even split of 30000, got %d at month %d", inst.Payment, inst.Month)
		}
	}
}

func TestAmortizeRejectsBadInput(t *testing.T) {
	cases := []struct {
		name      string
		principal int64
		rate      int32
		term      int32
	}{
		{"zero principal", 0, 12, 3},
		{"negative principal", -5, 12, 3},
		{"zero term", 100_000, 12, 0},
		{"negative rate", 100_000, -1, 3},
	}
	for _, tc := range cases {
		if _, err := Amortize(tc.principal, tc.rate, tc.term); faults.KindOf(err) != faults.Validation {
			t.Fatalf("%s: expected validation fault, got %v", tc.name, err)
		}
	}
}
