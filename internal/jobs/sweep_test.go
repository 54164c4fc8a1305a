package jobs_test

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	loandomain "github.com/tinhptlocal/credit-bot/internal/domain/loan"
	paymentdomain "github.com/tinhptlocal/credit-bot/internal/domain/payment"
	"github.com/tinhptlocal/credit-bot/internal/jobs"
	"github.com/tinhptlocal/credit-bot/internal/ledger/ledgertest"
)

type captureNotifier struct {
	sent []string
}

func (n *captureNotifier) NotifyUser(_ context.Context, _ string, text string) error {
	n.sent = append(n.sent, text)
	return nil
}

func (n *captureNotifier) NotifyChannel(_ context.Context, _ string, text string, _ string) error {
	n.sent = append(n.sent, text)
	return nil
}

type fixture struct {
	sweeper  *jobs.Sweeper
	store    *ledgertest.Store
	notifier *captureNotifier
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	now := time.Date(2026, 9, 1, 6, 0, 0, 0, time.UTC)
	store := ledgertest.NewStore(func() time.Time { return now })
	notifier := &captureNotifier{}
	sweeper := jobs.NewSweeper(jobs.SweeperDeps{
		Tx:               store,
		Payments:         store.Payments(),
		Loans:            store.Loans(),
		Users:            store.Users(),
		Notifier:         notifier,
		Logger:           slog.Default(),
		ReminderLeadDays: 7,
		Now:              func() time.Time { return now },
	})
	return &fixture{sweeper: sweeper, store: store, notifier: notifier, now: now}
}

// seedLoan creates an approved loan with one pending installment of
// 100,000 (minimum 30,000) due at the given time.
func (f *fixture) seedLoan(t *testing.T, userID string, due time.Time) (*loandomain.Entity, paymentdomain.Entity) {
	t.Helper()
	ctx := context.Background()
	f.store.SeedUser(userID, userID, 0, 70)
	ent, err := f.store.Loans().Create(ctx, loandomain.CreateInput{
		UserID: userID, Principal: 100_000, AnnualRatePct: 10, TermMonths: 1,
	})
	if err != nil {
		t.Fatalf("create loan: %v", err)
	}
	if _, err := f.store.Loans().Approve(ctx, ent.ID, due.AddDate(0, -1, 0), due); err != nil {
		t.Fatalf("approve loan: %v", err)
	}
	err = f.store.Payments().CreateSchedule(ctx, ent.ID, userID, []loandomain.ScheduleEntry{
		{Sequence: 1, Amount: 100_000, MinimumAmount: 30_000, RatePct: 10, DueDate: due},
	})
	if err != nil {
		t.Fatalf("create schedule: %v", err)
	}
	rows, _ := f.store.Payments().ListByLoan(ctx, ent.ID)
	return ent, rows[0]
}

func TestEscalateOverdueAppliesFeeAndPenalty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ent, p := f.seedLoan(t, "u1", f.now.AddDate(0, 0, -3))

	if err := f.sweeper.EscalateOverdue(ctx); err != nil {
		t.Fatalf("escalate: %v", err)
	}

	got, _ := f.store.Payments().GetByID(ctx, p.ID)
	if got.Status != paymentdomain.StatusOverdue {
		t.Fatalf("expected overdue, got %s", got.Status)
	}
	// 3 days in the first tier: 0.5%/day on 100,000.
	if got.LateFee != 1_500 {
		t.Fatalf("expected late fee 1500, got %d", got.LateFee)
	}

	l, _ := f.store.Loans().GetByID(ctx, ent.ID)
	if l.Status != loandomain.StatusOverdue {
		t.Fatalf("expected overdue loan, got %s", l.Status)
	}
	user, _ := f.store.Users().GetByPlatformID(ctx, "u1")
	if user.CreditScore != 65 {
		t.Fatalf("expected credit score 65 after penalty, got %d", user.CreditScore)
	}
	if len(f.notifier.sent) != 1 || !strings.Contains(f.notifier.sent[0], "overdue") {
		t.Fatalf("expected one overdue notice, got %v", f.notifier.sent)
	}
}

func TestEscalateOverdueRunsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, p := f.seedLoan(t, "u1", f.now.AddDate(0, 0, -3))

	if err := f.sweeper.EscalateOverdue(ctx); err != nil {
		t.Fatalf("escalate: %v", err)
	}
	if err := f.sweeper.EscalateOverdue(ctx); err != nil {
		t.Fatalf("escalate again: %v", err)
	}

	// The second pass finds no pending rows: no double fee, no double
	// penalty.
	got, _ := f.store.Payments().GetByID(ctx, p.ID)
	if got.LateFee != 1_500 {
		t.Fatalf("expected unchanged fee 1500, got %d", got.LateFee)
	}
	user, _ := f.store.Users().GetByPlatformID(ctx, "u1")
	if user.CreditScore != 65 {
		t.Fatalf("expected credit score 65 after repeat pass, got %d", user.CreditScore)
	}
}

func TestCreditScoreFloorsAtZero(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.SeedUser("u1", "u1", 0, 3)
	ent, _ := f.store.Loans().Create(ctx, loandomain.CreateInput{
		UserID: "u1", Principal: 100_000, AnnualRatePct: 10, TermMonths: 1,
	})
	due := f.now.AddDate(0, 0, -2)
	if _, err := f.store.Loans().Approve(ctx, ent.ID, due.AddDate(0, -1, 0), due); err != nil {
		t.Fatalf("approve: %v", err)
	}
	_ = f.store.Payments().CreateSchedule(ctx, ent.ID, "u1", []loandomain.ScheduleEntry{
		{Sequence: 1, Amount: 100_000, MinimumAmount: 30_000, RatePct: 10, DueDate: due},
	})

	if err := f.sweeper.EscalateOverdue(ctx); err != nil {
		t.Fatalf("escalate: %v", err)
	}
	user, _ := f.store.Users().GetByPlatformID(ctx, "u1")
	if user.CreditScore != 0 {
		t.Fatalf("expected credit score floored at 0, got %d", user.CreditScore)
	}
}

func TestRewardOnTimeOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.SeedUser("u1", "u1", 0, 90)
	ent, _ := f.store.Loans().Create(ctx, loandomain.CreateInput{
		UserID: "u1", Principal: 100_000, AnnualRatePct: 10, TermMonths: 1,
	})
	due := f.now.Add(2 * time.Hour)
	if _, err := f.store.Loans().Approve(ctx, ent.ID, due.AddDate(0, -1, 0), due); err != nil {
		t.Fatalf("approve: %v", err)
	}
	_ = f.store.Payments().CreateSchedule(ctx, ent.ID, "u1", []loandomain.ScheduleEntry{
		{Sequence: 1, Amount: 100_000, MinimumAmount: 30_000, RatePct: 10, DueDate: due},
	})
	rows, _ := f.store.Payments().ListByLoan(ctx, ent.ID)
	if ok, _ := f.store.Payments().Settle(ctx, rows[0].ID, paymentdomain.StatusPaid, f.now, "PAY-1"); !ok {
		t.Fatalf("settle failed")
	}

	if err := f.sweeper.RewardOnTime(ctx); err != nil {
		t.Fatalf("reward: %v", err)
	}
	user, _ := f.store.Users().GetByPlatformID(ctx, "u1")
	if user.CreditScore != 91 {
		t.Fatalf("expected credit score 91 after reward, got %d", user.CreditScore)
	}

	if err := f.sweeper.RewardOnTime(ctx); err != nil {
		t.Fatalf("reward again: %v", err)
	}
	user, _ = f.store.Users().GetByPlatformID(ctx, "u1")
	if user.CreditScore != 91 {
		t.Fatalf("expected no double reward, got %d", user.CreditScore)
	}
}

func TestRemindUpcomingExactLeadDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedLoan(t, "u1", f.now.AddDate(0, 0, 7)) // reminded
	f.seedLoan(t, "u2", f.now.AddDate(0, 0, 6)) // not yet
	f.seedLoan(t, "u3", f.now.AddDate(0, 0, 8)) // not yet

	if err := f.sweeper.RemindUpcoming(ctx); err != nil {
		t.Fatalf("remind: %v", err)
	}
	if len(f.notifier.sent) != 1 {
		t.Fatalf("expected exactly one reminder, got %d", len(f.notifier.sent))
	}
	if !strings.Contains(f.notifier.sent[0], "Reminder") {
		t.Fatalf("unexpected notice: %s", f.notifier.sent[0])
	}
}
