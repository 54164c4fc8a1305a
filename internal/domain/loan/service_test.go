package loan_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/tinhptlocal/credit-bot/internal/auth"
	"github.com/tinhptlocal/credit-bot/internal/cache"
	"github.com/tinhptlocal/credit-bot/internal/domain/loan"
	"github.com/tinhptlocal/credit-bot/internal/domain/transaction"
	"github.com/tinhptlocal/credit-bot/internal/domain/treasury"
	"github.com/tinhptlocal/credit-bot/internal/faults"
	"github.com/tinhptlocal/credit-bot/internal/ledger/ledgertest"
)

type clock struct {
	t time.Time
}

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

type captureNotifier struct {
	user    []string
	channel []string
}

func (n *captureNotifier) NotifyUser(_ context.Context, _ string, text string) error {
	n.user = append(n.user, text)
	return nil
}

func (n *captureNotifier) NotifyChannel(_ context.Context, _ string, text string, _ string) error {
	n.channel = append(n.channel, text)
	return nil
}

type fixture struct {
	svc      *loan.Service
	store    *ledgertest.Store
	clock    *clock
	notifier *captureNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clk := &clock{t: time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)}
	store := ledgertest.NewStore(clk.now)
	notifier := &captureNotifier{}
	treasurySvc := treasury.NewService(store.Users(), store.Transactions(), "treasury", clk.now)

	svc := loan.NewService(loan.Deps{
		Tx:           store,
		Users:        store.Users(),
		Loans:        store.Loans(),
		Schedule:     store.Payments(),
		Treasury:     treasurySvc,
		Offers:       cache.NewWithClock[loan.Offer](10*time.Minute, clk.now),
		Admins:       auth.NewDirectory([]string{"admin"}),
		Notifier:     notifier,
		Logger:       slog.Default(),
		DefaultScore: 100,
		AdminChannel: "ops",
		Now:          clk.now,
	})
	return &fixture{svc: svc, store: store, clock: clk, notifier: notifier}
}

func TestRequestLoanValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.RequestLoan(ctx, "u1", "alice", 100_000, 5); faults.CodeOf(err) != "invalid_term" {
		t.Fatalf("expected invalid_term, got %v", err)
	}
	if _, err := f.svc.RequestLoan(ctx, "u1", "alice", 400_000, 3); faults.CodeOf(err) != "amount_exceeds_limit" {
		t.Fatalf("expected amount_exceeds_limit, got %v", err)
	}
	if _, err := f.svc.RequestLoan(ctx, "u1", "alice", 0, 3); faults.CodeOf(err) != "invalid_amount" {
		t.Fatalf("expected invalid_amount, got %v", err)
	}
}

func TestRequestLoanPricesWithCreditScore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Default score of 100 lands in the top bracket: 12% base - 2.
	offer, err := f.svc.RequestLoan(ctx, "u1", "alice", 300_000, 3)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if offer.AnnualRatePct != 10 {
		t.Fatalf("expected rate 10, got %d", offer.AnnualRatePct)
	}
	if offer.Token == "" {
		t.Fatalf("expected offer token")
	}

	f.store.SeedUser("u2", "bob", 0, 45)
	offer2, err := f.svc.RequestLoan(ctx, "u2", "bob", 300_000, 3)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if offer2.AnnualRatePct != 14 {
		t.Fatalf("expected rate 14 for score 45, got %d", offer2.AnnualRatePct)
	}
}

func TestConfirmExpiredOffer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	offer, err := f.svc.RequestLoan(ctx, "u1", "alice", 100_000, 3)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	f.clock.advance(11 * time.Minute)
	if _, err := f.svc.ConfirmLoan(ctx, "u1", offer.Token); faults.CodeOf(err) != "offer_expired" {
		t.Fatalf("expected offer_expired, got %v", err)
	}
}

func TestConfirmOfferOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	offer, err := f.svc.RequestLoan(ctx, "u1", "alice", 100_000, 3)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if _, err := f.svc.ConfirmLoan(ctx, "u2", offer.Token); faults.CodeOf(err) != "offer_expired" {
		t.Fatalf("expected offer_expired for foreign token, got %v", err)
	}
}

// failFirstCreateLoans fails the first Create and then delegates,
// standing in for a transient store error during confirmation.
type failFirstCreateLoans struct {
	loan.Repository
	failed bool
}

func (r *failFirstCreateLoans) Create(ctx context.Context, in loan.CreateInput) (*loan.Entity, error) {
	if !r.failed {
		r.failed = true
		return nil, errors.New("connection reset")
	}
	return r.Repository.Create(ctx, in)
}

func TestConfirmOfferSurvivesCreateFailure(t *testing.T) {
	clk := &clock{t: time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)}
	store := ledgertest.NewStore(clk.now)
	loans := &failFirstCreateLoans{Repository: store.Loans()}
	svc := loan.NewService(loan.Deps{
		Tx:           store,
		Users:        store.Users(),
		Loans:        loans,
		Schedule:     store.Payments(),
		Treasury:     treasury.NewService(store.Users(), store.Transactions(), "treasury", clk.now),
		Offers:       cache.NewWithClock[loan.Offer](10*time.Minute, clk.now),
		Admins:       auth.NewDirectory([]string{"admin"}),
		Notifier:     &captureNotifier{},
		Logger:       slog.Default(),
		DefaultScore: 100,
		Now:          clk.now,
	})
	ctx := context.Background()

	offer, err := svc.RequestLoan(ctx, "u1", "alice", 100_000, 3)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if _, err := svc.ConfirmLoan(ctx, "u1", offer.Token); err == nil {
		t.Fatal("expected first confirm to fail")
	}
	// The offer must still be live so the user can simply retry.
	ent, err := svc.ConfirmLoan(ctx, "u1", offer.Token)
	if err != nil {
		t.Fatalf("retry confirm: %v", err)
	}
	if ent.Status != loan.StatusPending {
		t.Fatalf("expected pending loan on retry, got %s", ent.Status)
	}
	// The token is spent once the loan persists.
	if _, err := svc.ConfirmLoan(ctx, "u1", offer.Token); faults.CodeOf(err) != "offer_expired" {
		t.Fatalf("expected offer_expired on reuse, got %v", err)
	}
}

func TestLoanLifecycleApproval(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	offer, err := f.svc.RequestLoan(ctx, "u1", "alice", 300_000, 3)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	ent, err := f.svc.ConfirmLoan(ctx, "u1", offer.Token)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if ent.Status != loan.StatusPending {
		t.Fatalf("expected pending loan, got %s", ent.Status)
	}
	if len(f.notifier.channel) != 1 {
		t.Fatalf("expected one admin channel notice, got %d", len(f.notifier.channel))
	}

	approved, err := f.svc.ApproveLoan(ctx, "admin", ent.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != loan.StatusApproved {
		t.Fatalf("expected approved, got %s", approved.Status)
	}

	// Principal disbursed to the borrower.
	user, err := f.store.Users().GetByPlatformID(ctx, "u1")
	if err != nil || user == nil {
		t.Fatalf("load user: %v", err)
	}
	if user.Balance != 300_000 {
		t.Fatalf("expected balance 300000 after disbursement, got %d", user.Balance)
	}
	if got := f.store.Transactions().CountByType(transaction.TypePrincipal); got != 1 {
		t.Fatalf("expected one principal transaction, got %d", got)
	}

	// Full schedule with 30% minimums.
	rows, err := f.store.Payments().ListByLoan(ctx, ent.ID)
	if err != nil {
		t.Fatalf("list schedule: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 installments, got %d", len(rows))
	}
	for _, p := range rows {
		if p.MinimumAmount != p.Amount*30/100 {
			t.Fatalf("installment %d: minimum %d is not 30%% of %d", p.Sequence, p.MinimumAmount, p.Amount)
		}
		if !p.DueDate.After(approved.StartDate) {
			t.Fatalf("installment %d due before loan start", p.Sequence)
		}
	}
}

func TestApproveRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	offer, _ := f.svc.RequestLoan(ctx, "u1", "alice", 100_000, 3)
	ent, _ := f.svc.ConfirmLoan(ctx, "u1", offer.Token)

	if _, err := f.svc.ApproveLoan(ctx, "u1", ent.ID); faults.KindOf(err) != faults.Unauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestSecondActiveLoanBlocked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	offer, _ := f.svc.RequestLoan(ctx, "u1", "alice", 100_000, 3)
	ent, _ := f.svc.ConfirmLoan(ctx, "u1", offer.Token)
	if _, err := f.svc.ApproveLoan(ctx, "admin", ent.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}

	if _, err := f.svc.RequestLoan(ctx, "u1", "alice", 100_000, 3); faults.CodeOf(err) != "active_loan_exists" {
		t.Fatalf("expected active_loan_exists, got %v", err)
	}
}

func TestApprovalGuardAgainstRacingPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Two pending loans slipped in before any decision; approving the
	// second after the first must fail, and its schedule must not be
	// written.
	offer1, _ := f.svc.RequestLoan(ctx, "u1", "alice", 100_000, 3)
	ent1, _ := f.svc.ConfirmLoan(ctx, "u1", offer1.Token)
	ent2, err := f.store.Loans().Create(ctx, loan.CreateInput{
		UserID: "u1", Principal: 50_000, AnnualRatePct: 10, TermMonths: 3,
	})
	if err != nil {
		t.Fatalf("create second pending: %v", err)
	}

	if _, err := f.svc.ApproveLoan(ctx, "admin", ent1.ID); err != nil {
		t.Fatalf("approve first: %v", err)
	}
	if _, err := f.svc.ApproveLoan(ctx, "admin", ent2.ID); faults.KindOf(err) != faults.Conflict {
		t.Fatalf("expected conflict approving second loan, got %v", err)
	}
	rows, _ := f.store.Payments().ListByLoan(ctx, ent2.ID)
	if len(rows) != 0 {
		t.Fatalf("expected no schedule for rejected approval, got %d rows", len(rows))
	}
}

func TestRejectLoanIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	offer, _ := f.svc.RequestLoan(ctx, "u1", "alice", 100_000, 3)
	ent, _ := f.svc.ConfirmLoan(ctx, "u1", offer.Token)

	if err := f.svc.RejectLoan(ctx, "admin", ent.ID, "policy"); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if err := f.svc.RejectLoan(ctx, "admin", ent.ID, "policy"); err != nil {
		t.Fatalf("expected repeat rejection to be a no-op, got %v", err)
	}

	got, _ := f.store.Loans().GetByID(ctx, ent.ID)
	if got.Status != loan.StatusRejected {
		t.Fatalf("expected rejected, got %s", got.Status)
	}

	// A repaid loan is terminal too; rejecting it stays a no-op.
	repaid, err := f.store.Loans().Create(ctx, loan.CreateInput{
		UserID: "u1", Principal: 50_000, AnnualRatePct: 10, TermMonths: 3,
		Status: loan.StatusRepaid,
	})
	if err != nil {
		t.Fatalf("create repaid loan: %v", err)
	}
	if err := f.svc.RejectLoan(ctx, "admin", repaid.ID, "policy"); err != nil {
		t.Fatalf("expected rejecting repaid loan to be a no-op, got %v", err)
	}
	after, _ := f.store.Loans().GetByID(ctx, repaid.ID)
	if after.Status != loan.StatusRepaid {
		t.Fatalf("expected repaid loan untouched, got %s", after.Status)
	}
}

func TestCancelPendingLoan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	offer, _ := f.svc.RequestLoan(ctx, "u1", "alice", 100_000, 3)
	ent, _ := f.svc.ConfirmLoan(ctx, "u1", offer.Token)

	if err := f.svc.CancelLoan(ctx, "u2", ent.ID); faults.KindOf(err) != faults.NotFound {
		t.Fatalf("expected not found for foreign cancel, got %v", err)
	}
	if err := f.svc.CancelLoan(ctx, "u1", ent.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	ent2, _ := f.store.Loans().GetByID(ctx, ent.ID)
	if ent2.Status != loan.StatusRejected {
		t.Fatalf("expected cancelled loan to be rejected, got %s", ent2.Status)
	}
	if err := f.svc.CancelLoan(ctx, "u1", ent.ID); faults.KindOf(err) != faults.Conflict {
		t.Fatalf("expected conflict cancelling decided loan, got %v", err)
	}
}
