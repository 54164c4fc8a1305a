package payment

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/tinhptlocal/credit-bot/internal/domain/loan"
	"github.com/tinhptlocal/credit-bot/internal/domain/transaction"
	"github.com/tinhptlocal/credit-bot/internal/faults"
)

// payoffDiscountPct is the share of the remaining scheduled amount
// forgiven when a borrower settles the whole loan early.
const payoffDiscountPct = 20

// principalShareOfPayment estimates how much of a blended installment
// was principal when breaking down what has been repaid so far.
const principalShareOfPayment = 70

// PayoffQuote prices settling a loan in full right now.
type PayoffQuote struct {
	LoanID             int64 `json:"loan_id"`
	PaymentsCompleted  int   `json:"payments_completed"`
	PaymentsRemaining  int   `json:"payments_remaining"`
	PrincipalPaid      int64 `json:"principal_paid"`
	PrincipalRemaining int64 `json:"principal_remaining"`
	FeesOutstanding    int64 `json:"fees_outstanding"`
	RemainingScheduled int64 `json:"remaining_scheduled"`
	Discount           int64 `json:"discount"`
	Total              int64 `json:"total"`
}

// QuotePayoff computes the early-settlement price for an active loan:
// the remaining scheduled amounts plus accrued fees, less the early
// payoff discount.
func (s *Service) QuotePayoff(ctx context.Context, userID string, loanID int64) (*PayoffQuote, error) {
	l, err := s.activeOwnedLoan(ctx, userID, loanID)
	if err != nil {
		return nil, err
	}
	payments, err := s.d.Payments.ListByLoan(ctx, l.ID)
	if err != nil {
		return nil, fmt.Errorf("load schedule: %w", err)
	}
	if len(payments) == 0 {
		return nil, faults.New(faults.Conflict, "no_schedule", "loan has no repayment schedule")
	}
	return buildQuote(l, payments), nil
}

// ExecutePayoff settles every remaining installment of an active loan
// with one discounted debit. The quote is recomputed inside the
// transaction so a concurrent installment payment cannot make the
// charge stale.
func (s *Service) ExecutePayoff(ctx context.Context, userID string, loanID int64) (*PayoffQuote, error) {
	var quote *PayoffQuote
	err := s.d.Tx.InTx(ctx, func(ctx context.Context) error {
		l, err := s.activeOwnedLoan(ctx, userID, loanID)
		if err != nil {
			return err
		}
		payments, err := s.d.Payments.ListByLoan(ctx, l.ID)
		if err != nil {
			return fmt.Errorf("load schedule: %w", err)
		}
		if len(payments) == 0 {
			return faults.New(faults.Conflict, "no_schedule", "loan has no repayment schedule")
		}
		quote = buildQuote(l, payments)
		if quote.PaymentsRemaining == 0 {
			return faults.New(faults.Conflict, "loan_settled", "loan has no open installments")
		}

		txID, err := s.d.Treasury.Collect(ctx, userID, quote.Total, transaction.TypePayment, l.ID, nil)
		if err != nil {
			return err
		}
		paidAt := s.d.Now()
		for _, p := range payments {
			if p.Settled() {
				continue
			}
			ok, err := s.d.Payments.Settle(ctx, p.ID, StatusPaid, paidAt, txID)
			if err != nil {
				return fmt.Errorf("settle payment %d: %w", p.ID, err)
			}
			if !ok {
				return faults.New(faults.Conflict, "payment_settled", "an installment was paid concurrently, request a fresh quote")
			}
		}
		ok, err := s.d.Loans.UpdateStatus(ctx, l.ID, loan.ActiveStatuses, loan.StatusRepaid)
		if err != nil {
			return fmt.Errorf("close loan: %w", err)
		}
		if !ok {
			return faults.New(faults.Conflict, "loan_settled", "loan was closed concurrently")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	msg := fmt.Sprintf("Loan #%d paid off early for %d (discount %d). All done!", quote.LoanID, quote.Total, quote.Discount)
	if err := s.d.Notifier.NotifyUser(ctx, userID, msg); err != nil {
		s.d.Logger.Warn("payoff notification failed", "loan_id", quote.LoanID, "error", err)
	}
	return quote, nil
}

func (s *Service) activeOwnedLoan(ctx context.Context, userID string, loanID int64) (*loan.Entity, error) {
	l, err := s.d.Loans.GetByID(ctx, loanID)
	if err != nil {
		return nil, fmt.Errorf("load loan: %w", err)
	}
	if l == nil || l.UserID != userID {
		return nil, faults.New(faults.NotFound, "loan_not_found", "loan not found")
	}
	if l.Status != loan.StatusApproved && l.Status != loan.StatusOverdue {
		return nil, faults.New(faults.Conflict, "loan_not_active", "only active loans can be paid off").
			With("status", string(l.Status))
	}
	return l, nil
}

func buildQuote(l *loan.Entity, payments []Entity) *PayoffQuote {
	q := &PayoffQuote{LoanID: l.ID}
	var paidAmount int64
	for _, p := range payments {
		if p.Settled() {
			q.PaymentsCompleted++
			paidAmount += p.Amount
			continue
		}
		q.PaymentsRemaining++
		q.RemainingScheduled += p.Outstanding()
		q.FeesOutstanding += p.LateFee
	}
	q.PrincipalPaid = pct(paidAmount, principalShareOfPayment)
	q.PrincipalRemaining = l.Principal - q.PrincipalPaid
	if q.PrincipalRemaining < 0 {
		q.PrincipalRemaining = 0
	}
	q.Discount = pct(q.RemainingScheduled, payoffDiscountPct)
	q.Total = q.RemainingScheduled - q.Discount
	if q.Total < 0 {
		q.Total = 0
	}
	return q
}

func pct(amount int64, share int64) int64 {
	return decimal.NewFromInt(amount).
		Mul(decimal.NewFromInt(share)).
		Div(decimal.NewFromInt(100)).
		Round(0).IntPart()
}
