package loan

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tinhptlocal/credit-bot/internal/cache"
	"github.com/tinhptlocal/credit-bot/internal/domain/account"
	"github.com/tinhptlocal/credit-bot/internal/faults"
	"github.com/tinhptlocal/credit-bot/internal/ledger"
	"github.com/tinhptlocal/credit-bot/internal/notify"
)

// ScheduleWriter persists the repayment schedule for a newly approved
// loan. Implemented by the payment repository.
type ScheduleWriter interface {
	CreateSchedule(ctx context.Context, loanID int64, userID string, entries []ScheduleEntry) error
}

// Disburser moves the approved principal from the treasury to the
// borrower and records the movement.
type Disburser interface {
	Disburse(ctx context.Context, userID string, amount int64, loanID int64) error
}

type AdminChecker interface {
	IsAdmin(ctx context.Context, userID string) (bool, error)
}

// Offer is a priced quote held in memory until the borrower confirms
// it or it expires.
type Offer struct {
	Token          string    `json:"token"`
	UserID         string    `json:"user_id"`
	Principal      int64     `json:"principal"`
	TermMonths     int32     `json:"term_months"`
	AnnualRatePct  int32     `json:"annual_rate_pct"`
	MonthlyPayment int64     `json:"monthly_payment"`
	TotalAmount    int64     `json:"total_amount"`
	TotalInterest  int64     `json:"total_interest"`
	CreatedAt      time.Time `json:"created_at"`
}

type Deps struct {
	Tx           ledger.TxRunner
	Users        account.Repository
	Loans        Repository
	Schedule     ScheduleWriter
	Treasury     Disburser
	Offers       *cache.TTL[Offer]
	Admins       AdminChecker
	Notifier     notify.Notifier
	Logger       *slog.Logger
	Terms        TermPolicy
	Rates        RatePolicy
	MinimumRatio int32 // percentage of each installment accepted as a minimum payment
	DefaultScore int
	AdminChannel string
	Now          func() time.Time
}

type Service struct {
	d Deps
}

func NewService(d Deps) *Service {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Terms == nil {
		d.Terms = DefaultTermPolicy()
	}
	if d.Rates.Brackets == nil {
		d.Rates = DefaultRatePolicy()
	}
	if d.MinimumRatio <= 0 {
		d.MinimumRatio = 30
	}
	return &Service{d: d}
}

// RequestLoan prices a loan for the user and returns a confirmable
// offer. Nothing is persisted until the offer is confirmed.
func (s *Service) RequestLoan(ctx context.Context, userID, username string, principal int64, termMonths int32) (*Offer, error) {
	if principal <= 0 {
		return nil, faults.New(faults.Validation, "invalid_amount", "loan amount must be positive")
	}
	tier, ok := s.d.Terms.Tier(termMonths)
	if !ok {
		return nil, faults.New(faults.Validation, "invalid_term", "unsupported loan term").
			With("supported_terms", s.d.Terms.Terms())
	}
	if principal > tier.MaxAmount {
		return nil, faults.New(faults.Validation, "amount_exceeds_limit", "loan amount exceeds the limit for this term").
			With("max_amount", tier.MaxAmount)
	}

	user, err := s.ensureUser(ctx, userID, username)
	if err != nil {
		return nil, err
	}

	active, err := s.d.Loans.HasActive(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("check active loans: %w", err)
	}
	if active {
		return nil, faults.New(faults.Conflict, "active_loan_exists", "an active loan must be repaid before requesting another")
	}

	rate := s.d.Rates.FinalRate(tier.BaseRatePct, user.CreditScore)
	schedule, err := Amortize(principal, rate, termMonths)
	if err != nil {
		return nil, err
	}

	offer := Offer{
		Token:          uuid.NewString(),
		UserID:         userID,
		Principal:      principal,
		TermMonths:     termMonths,
		AnnualRatePct:  rate,
		MonthlyPayment: schedule.MonthlyPayment,
		TotalAmount:    schedule.TotalAmount,
		TotalInterest:  schedule.TotalInterest,
		CreatedAt:      s.d.Now(),
	}
	s.d.Offers.Put(offer.Token, offer)
	return &offer, nil
}

// ConfirmLoan turns a live offer into a pending loan awaiting admin
// approval.
func (s *Service) ConfirmLoan(ctx context.Context, userID, token string) (*Entity, error) {
	offer, ok := s.d.Offers.Get(token)
	if !ok || offer.UserID != userID {
		return nil, faults.New(faults.Validation, "offer_expired", "loan offer has expired, request a new one")
	}

	active, err := s.d.Loans.HasActive(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("check active loans: %w", err)
	}
	if active {
		s.d.Offers.Delete(token)
		return nil, faults.New(faults.Conflict, "active_loan_exists", "an active loan must be repaid before requesting another")
	}

	ent, err := s.d.Loans.Create(ctx, CreateInput{
		UserID:        userID,
		Principal:     offer.Principal,
		AnnualRatePct: offer.AnnualRatePct,
		TermMonths:    offer.TermMonths,
	})
	if err != nil {
		// The offer stays live so the user can retry the confirm
		// after a transient store error.
		return nil, fmt.Errorf("create loan: %w", err)
	}
	s.d.Offers.Delete(token)

	if s.d.AdminChannel != "" {
		msg := fmt.Sprintf("Loan #%d requested by %s: %d over %d months at %d%%/yr. Awaiting approval.",
			ent.ID, userID, ent.Principal, ent.TermMonths, ent.AnnualRatePct)
		if err := s.d.Notifier.NotifyChannel(ctx, s.d.AdminChannel, msg, ""); err != nil {
			s.d.Logger.Warn("admin channel notification failed", "loan_id", ent.ID, "error", err)
		}
	}
	return ent, nil
}

// CancelLoan withdraws a pending request. Only the borrower can cancel
// and only before a decision is made.
func (s *Service) CancelLoan(ctx context.Context, userID string, loanID int64) error {
	ent, err := s.ownedLoan(ctx, userID, loanID)
	if err != nil {
		return err
	}
	if ent.Status != StatusPending {
		return faults.New(faults.Conflict, "loan_not_pending", "only pending loans can be cancelled").
			With("status", string(ent.Status))
	}
	ok, err := s.d.Loans.UpdateStatus(ctx, loanID, []Status{StatusPending}, StatusRejected)
	if err != nil {
		return fmt.Errorf("cancel loan: %w", err)
	}
	if !ok {
		return faults.New(faults.Conflict, "loan_not_pending", "loan was decided concurrently")
	}
	return nil
}

// ApproveLoan moves a pending loan to approved, writes its repayment
// schedule and disburses the principal, all in one transaction.
func (s *Service) ApproveLoan(ctx context.Context, adminID string, loanID int64) (*Entity, error) {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}

	var approved *Entity
	err := s.d.Tx.InTx(ctx, func(ctx context.Context) error {
		ent, err := s.d.Loans.GetByID(ctx, loanID)
		if err != nil {
			return fmt.Errorf("load loan: %w", err)
		}
		if ent == nil {
			return faults.New(faults.NotFound, "loan_not_found", "loan not found")
		}
		if ent.Status != StatusPending {
			return faults.New(faults.Conflict, "loan_not_pending", "loan has already been decided").
				With("status", string(ent.Status))
		}

		start := s.d.Now()
		end := start.AddDate(0, int(ent.TermMonths), 0)
		approved, err = s.d.Loans.Approve(ctx, loanID, start, end)
		if err != nil {
			return err
		}

		schedule, err := Amortize(ent.Principal, ent.AnnualRatePct, ent.TermMonths)
		if err != nil {
			return err
		}
		entries := make([]ScheduleEntry, 0, len(schedule.Installments))
		for _, inst := range schedule.Installments {
			entries = append(entries, ScheduleEntry{
				Sequence:      inst.Month,
				Amount:        inst.Payment,
				MinimumAmount: inst.Payment * int64(s.d.MinimumRatio) / 100,
				RatePct:       ent.AnnualRatePct,
				DueDate:       start.AddDate(0, int(inst.Month), 0),
			})
		}
		if err := s.d.Schedule.CreateSchedule(ctx, loanID, ent.UserID, entries); err != nil {
			return fmt.Errorf("create schedule: %w", err)
		}
		if err := s.d.Treasury.Disburse(ctx, ent.UserID, ent.Principal, loanID); err != nil {
			return fmt.Errorf("disburse principal: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	msg := fmt.Sprintf("Your loan #%d for %d has been approved. First payment of %d is due %s.",
		approved.ID, approved.Principal, firstInstallment(approved), approved.StartDate.AddDate(0, 1, 0).Format("2006-01-02"))
	if err := s.d.Notifier.NotifyUser(ctx, approved.UserID, msg); err != nil {
		s.d.Logger.Warn("approval notification failed", "loan_id", approved.ID, "error", err)
	}
	return approved, nil
}

// RejectLoan declines a pending loan. Rejecting a loan that already
// reached a terminal status is a no-op.
func (s *Service) RejectLoan(ctx context.Context, adminID string, loanID int64, reason string) error {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return err
	}
	ent, err := s.d.Loans.GetByID(ctx, loanID)
	if err != nil {
		return fmt.Errorf("load loan: %w", err)
	}
	if ent == nil {
		return faults.New(faults.NotFound, "loan_not_found", "loan not found")
	}
	if ent.Status == StatusRejected || ent.Status == StatusRepaid {
		return nil
	}
	ok, err := s.d.Loans.UpdateStatus(ctx, loanID, []Status{StatusPending}, StatusRejected)
	if err != nil {
		return fmt.Errorf("reject loan: %w", err)
	}
	if !ok {
		return faults.New(faults.Conflict, "loan_not_pending", "loan has already been decided").
			With("status", string(ent.Status))
	}

	msg := fmt.Sprintf("Your loan request #%d was declined.", loanID)
	if reason != "" {
		msg += " Reason: " + reason
	}
	if err := s.d.Notifier.NotifyUser(ctx, ent.UserID, msg); err != nil {
		s.d.Logger.Warn("rejection notification failed", "loan_id", loanID, "error", err)
	}
	return nil
}

func (s *Service) GetLoan(ctx context.Context, userID string, loanID int64) (*Entity, error) {
	return s.ownedLoan(ctx, userID, loanID)
}

func (s *Service) LoansByUser(ctx context.Context, userID string) ([]Entity, error) {
	return s.d.Loans.ListByUser(ctx, userID)
}

func (s *Service) PendingLoans(ctx context.Context, adminID string) ([]Entity, error) {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	return s.d.Loans.ListByStatus(ctx, StatusPending)
}

func (s *Service) ActiveLoans(ctx context.Context, adminID string) ([]Entity, error) {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	approved, err := s.d.Loans.ListByStatus(ctx, StatusApproved)
	if err != nil {
		return nil, err
	}
	overdue, err := s.d.Loans.ListByStatus(ctx, StatusOverdue)
	if err != nil {
		return nil, err
	}
	return append(approved, overdue...), nil
}

func (s *Service) ownedLoan(ctx context.Context, userID string, loanID int64) (*Entity, error) {
	ent, err := s.d.Loans.GetByID(ctx, loanID)
	if err != nil {
		return nil, fmt.Errorf("load loan: %w", err)
	}
	if ent == nil || ent.UserID != userID {
		return nil, faults.New(faults.NotFound, "loan_not_found", "loan not found")
	}
	return ent, nil
}

func (s *Service) ensureUser(ctx context.Context, userID, username string) (*account.Entity, error) {
	user, err := s.d.Users.GetByPlatformID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user != nil {
		return user, nil
	}
	user, err = s.d.Users.Create(ctx, account.CreateInput{
		PlatformID:  userID,
		Username:    username,
		CreditScore: s.d.DefaultScore,
	})
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func (s *Service) requireAdmin(ctx context.Context, userID string) error {
	ok, err := s.d.Admins.IsAdmin(ctx, userID)
	if err != nil {
		return fmt.Errorf("check admin: %w", err)
	}
	if !ok {
		return faults.New(faults.Unauthorized, "admin_required", "this action requires an administrator")
	}
	return nil
}

func firstInstallment(ent *Entity) int64 {
	schedule, err := Amortize(ent.Principal, ent.AnnualRatePct, ent.TermMonths)
	if err != nil || len(schedule.Installments) == 0 {
		return 0
	}
	return schedule.Installments[0].Payment
}
