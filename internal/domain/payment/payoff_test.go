package payment_test

import (
	"context"
	"testing"

	loandomain "github.com/tinhptlocal/credit-bot/internal/domain/loan"
	"github.com/tinhptlocal/credit-bot/internal/faults"
)

func TestQuotePayoffAfterOneInstallment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ent := f.seedLoan(t, "u1", 500_000)
	p := f.firstPayment(t, ent.ID)

	if _, err := f.svc.ProcessPayment(ctx, "u1", p.ID, 100_000); err != nil {
		t.Fatalf("pay: %v", err)
	}

	quote, err := f.svc.QuotePayoff(ctx, "u1", ent.ID)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if quote.PaymentsCompleted != 1 || quote.PaymentsRemaining != 2 {
		t.Fatalf("expected 1 completed / 2 remaining, got %d/%d", quote.PaymentsCompleted, quote.PaymentsRemaining)
	}
	if quote.RemainingScheduled != 200_000 {
		t.Fatalf("expected remaining 200000, got %d", quote.RemainingScheduled)
	}
	if quote.Discount != 40_000 {
		t.Fatalf("expected 20%% discount of 40000, got %d", quote.Discount)
	}
	if quote.Total != 160_000 {
		t.Fatalf("expected payoff total 160000, got %d", quote.Total)
	}
	if quote.PrincipalPaid != 70_000 {
		t.Fatalf("expected estimated principal paid 70000, got %d", quote.PrincipalPaid)
	}
}

func TestQuotePayoffIncludesLateFees(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ent := f.seedLoan(t, "u1", 500_000)
	p := f.firstPayment(t, ent.ID)

	if ok, _ := f.store.Payments().MarkOverdue(ctx, p.ID, 1_500); !ok {
		t.Fatalf("mark overdue failed")
	}
	if _, err := f.store.Loans().UpdateStatus(ctx, ent.ID, []loandomain.Status{loandomain.StatusApproved}, loandomain.StatusOverdue); err != nil {
		t.Fatalf("flag loan: %v", err)
	}

	quote, err := f.svc.QuotePayoff(ctx, "u1", ent.ID)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if quote.FeesOutstanding != 1_500 {
		t.Fatalf("expected fees 1500, got %d", quote.FeesOutstanding)
	}
	if quote.RemainingScheduled != 301_500 {
		t.Fatalf("expected remaining 301500, got %d", quote.RemainingScheduled)
	}
}

func TestExecutePayoffSettlesEverything(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ent := f.seedLoan(t, "u1", 500_000)
	p := f.firstPayment(t, ent.ID)

	if _, err := f.svc.ProcessPayment(ctx, "u1", p.ID, 100_000); err != nil {
		t.Fatalf("pay: %v", err)
	}
	quote, err := f.svc.ExecutePayoff(ctx, "u1", ent.ID)
	if err != nil {
		t.Fatalf("payoff: %v", err)
	}
	if quote.Total != 160_000 {
		t.Fatalf("expected payoff charge 160000, got %d", quote.Total)
	}

	user, _ := f.store.Users().GetByPlatformID(ctx, "u1")
	if user.Balance != 500_000-100_000-160_000 {
		t.Fatalf("expected balance 240000, got %d", user.Balance)
	}
	got, _ := f.store.Loans().GetByID(ctx, ent.ID)
	if got.Status != loandomain.StatusRepaid {
		t.Fatalf("expected repaid loan, got %s", got.Status)
	}
	rows, _ := f.store.Payments().ListByLoan(ctx, ent.ID)
	for _, row := range rows {
		if !row.Settled() {
			t.Fatalf("installment %d left open after payoff", row.Sequence)
		}
	}
}

func TestExecutePayoffInsufficientBalanceRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ent := f.seedLoan(t, "u1", 50_000)

	if _, err := f.svc.ExecutePayoff(ctx, "u1", ent.ID); faults.KindOf(err) != faults.InsufficientFunds {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	got, _ := f.store.Loans().GetByID(ctx, ent.ID)
	if got.Status != loandomain.StatusApproved {
		t.Fatalf("expected loan untouched, got %s", got.Status)
	}
	rows, _ := f.store.Payments().ListByLoan(ctx, ent.ID)
	for _, row := range rows {
		if row.Settled() {
			t.Fatalf("installment %d settled despite rollback", row.Sequence)
		}
	}
}

func TestPayoffRequiresActiveLoan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ent := f.seedLoan(t, "u1", 500_000)
	rows, _ := f.store.Payments().ListByLoan(ctx, ent.ID)
	for _, p := range rows {
		if _, err := f.svc.ProcessPayment(ctx, "u1", p.ID, 100_000); err != nil {
			t.Fatalf("pay: %v", err)
		}
	}

	if _, err := f.svc.QuotePayoff(ctx, "u1", ent.ID); faults.CodeOf(err) != "loan_not_active" {
		t.Fatalf("expected loan_not_active for repaid loan, got %v", err)
	}
}
