package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tinhptlocal/credit-bot/internal/domain/loan"
	"github.com/tinhptlocal/credit-bot/internal/domain/transaction"
	"github.com/tinhptlocal/credit-bot/internal/faults"
	"github.com/tinhptlocal/credit-bot/internal/ledger"
	"github.com/tinhptlocal/credit-bot/internal/notify"
)

// Collector moves funds from the borrower to the treasury and records
// the movement. Implemented by the treasury service.
type Collector interface {
	Collect(ctx context.Context, userID string, amount int64, typ transaction.Type, loanID int64, paymentID *int64) (string, error)
}

// errSettled aborts the settlement transaction when another request
// settled the installment first.
var errSettled = errors.New("payment settled concurrently")

// Receipt summarizes the outcome of a payment submission.
type Receipt struct {
	PaymentID      int64  `json:"payment_id"`
	LoanID         int64  `json:"loan_id"`
	TransactionID  string `json:"transaction_id,omitempty"`
	Amount         int64  `json:"amount"`
	Status         Status `json:"status"`
	LoanRepaid     bool   `json:"loan_repaid"`
	AlreadySettled bool   `json:"already_settled"`
}

type Deps struct {
	Tx       ledger.TxRunner
	Payments Repository
	Loans    loan.Repository
	Treasury Collector
	Fees     FeePolicy
	Notifier notify.Notifier
	Logger   *slog.Logger
	Now      func() time.Time
}

type Service struct {
	d Deps
}

func NewService(d Deps) *Service {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Fees == nil {
		d.Fees = DefaultFeePolicy()
	}
	return &Service{d: d}
}

// ProcessPayment settles an installment with the given amount. Paying
// the full outstanding amount marks it paid; paying at least the
// minimum marks it minimum-paid. Re-submitting a settled installment
// is a no-op reported through the receipt, never an error, so retried
// chat commands cannot double-charge.
func (s *Service) ProcessPayment(ctx context.Context, userID string, paymentID int64, amount int64) (*Receipt, error) {
	if amount <= 0 {
		return nil, faults.New(faults.Validation, "invalid_amount", "payment amount must be positive")
	}

	p, err := s.ownedPayment(ctx, userID, paymentID)
	if err != nil {
		return nil, err
	}
	if p.Settled() {
		return &Receipt{
			PaymentID:      p.ID,
			LoanID:         p.LoanID,
			Status:         p.Status,
			AlreadySettled: true,
		}, nil
	}
	if amount < p.MinimumAmount {
		return nil, faults.New(faults.Validation, "insufficient_minimum", "amount is below the minimum payment").
			With("minimum_amount", p.MinimumAmount).
			With("full_amount", p.Outstanding())
	}

	target := StatusMinimumPaid
	if amount >= p.Outstanding() {
		target = StatusPaid
	}

	receipt := &Receipt{PaymentID: p.ID, LoanID: p.LoanID, Amount: amount, Status: target}
	err = s.d.Tx.InTx(ctx, func(ctx context.Context) error {
		txID, err := s.d.Treasury.Collect(ctx, userID, amount, transaction.TypePayment, p.LoanID, &p.ID)
		if err != nil {
			return err
		}
		ok, err := s.d.Payments.Settle(ctx, p.ID, target, s.d.Now(), txID)
		if err != nil {
			return fmt.Errorf("settle payment: %w", err)
		}
		if !ok {
			return errSettled
		}
		receipt.TransactionID = txID

		if target == StatusPaid {
			open, err := s.d.Payments.CountOpenByLoan(ctx, p.LoanID)
			if err != nil {
				return fmt.Errorf("count open payments: %w", err)
			}
			if open == 0 {
				done, err := s.d.Loans.UpdateStatus(ctx, p.LoanID, loan.ActiveStatuses, loan.StatusRepaid)
				if err != nil {
					return fmt.Errorf("close loan: %w", err)
				}
				receipt.LoanRepaid = done
			}
		}
		return nil
	})
	if errors.Is(err, errSettled) {
		return &Receipt{PaymentID: p.ID, LoanID: p.LoanID, Status: p.Status, AlreadySettled: true}, nil
	}
	if err != nil {
		return nil, err
	}

	msg := fmt.Sprintf("Payment of %d received for installment #%d of loan #%d.", amount, p.Sequence, p.LoanID)
	if receipt.LoanRepaid {
		msg += " Your loan is fully repaid, congratulations!"
	}
	if err := s.d.Notifier.NotifyUser(ctx, userID, msg); err != nil {
		s.d.Logger.Warn("payment notification failed", "payment_id", p.ID, "error", err)
	}
	return receipt, nil
}

// OpenPayments lists the user's unsettled installments in due order.
func (s *Service) OpenPayments(ctx context.Context, userID string) ([]Entity, error) {
	return s.d.Payments.ListOpenByUser(ctx, userID)
}

// UpcomingPayments lists unsettled installments due within the window.
func (s *Service) UpcomingPayments(ctx context.Context, userID string, within time.Duration) ([]Entity, error) {
	open, err := s.d.Payments.ListOpenByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	cutoff := s.d.Now().Add(within)
	upcoming := open[:0]
	for _, p := range open {
		if !p.DueDate.After(cutoff) {
			upcoming = append(upcoming, p)
		}
	}
	return upcoming, nil
}

// History lists the user's most recent installments, settled or not.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]Entity, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.d.Payments.ListByUser(ctx, userID, limit)
}

// ScheduleByLoan returns the full installment schedule of a loan the
// user owns.
func (s *Service) ScheduleByLoan(ctx context.Context, userID string, loanID int64) ([]Entity, error) {
	l, err := s.d.Loans.GetByID(ctx, loanID)
	if err != nil {
		return nil, fmt.Errorf("load loan: %w", err)
	}
	if l == nil || l.UserID != userID {
		return nil, faults.New(faults.NotFound, "loan_not_found", "loan not found")
	}
	return s.d.Payments.ListByLoan(ctx, loanID)
}

func (s *Service) ownedPayment(ctx context.Context, userID string, paymentID int64) (*Entity, error) {
	p, err := s.d.Payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("load payment: %w", err)
	}
	if p == nil || p.UserID != userID {
		return nil, faults.New(faults.NotFound, "payment_not_found", "payment not found")
	}
	return p, nil
}
