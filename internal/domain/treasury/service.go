// Package treasury moves funds between user balances and the bot's
// own account. Every movement debits one side, credits the other and
// records a transaction inside the caller's database transaction, so
// balances and history can never drift apart.
package treasury

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tinhptlocal/credit-bot/internal/domain/account"
	"github.com/tinhptlocal/credit-bot/internal/domain/transaction"
	"github.com/tinhptlocal/credit-bot/internal/faults"
)

type Service struct {
	users      account.Repository
	txs        transaction.Repository
	treasuryID string
	now        func() time.Time
}

func NewService(users account.Repository, txs transaction.Repository, treasuryID string, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{users: users, txs: txs, treasuryID: treasuryID, now: now}
}

// Collect moves amount from the user to the treasury and returns the
// recorded transaction reference. It fails with an insufficient-funds
// fault when the user's balance does not cover the amount.
func (s *Service) Collect(ctx context.Context, userID string, amount int64, typ transaction.Type, loanID int64, paymentID *int64) (string, error) {
	if amount <= 0 {
		return "", faults.New(faults.Validation, "invalid_amount", "amount must be positive")
	}
	ok, err := s.users.Debit(ctx, userID, amount)
	if err != nil {
		return "", fmt.Errorf("debit user: %w", err)
	}
	if !ok {
		return "", faults.New(faults.InsufficientFunds, "insufficient_balance", "balance does not cover the amount").
			With("amount", amount)
	}
	if err := s.ensureTreasury(ctx); err != nil {
		return "", err
	}
	if err := s.users.Credit(ctx, s.treasuryID, amount); err != nil {
		return "", fmt.Errorf("credit treasury: %w", err)
	}
	return s.record(ctx, userID, -amount, typ, &loanID, paymentID)
}

// Disburse moves amount from the treasury to the user. The treasury
// balance is allowed to go negative; it is the system's own float.
func (s *Service) Disburse(ctx context.Context, userID string, amount int64, loanID int64) error {
	if amount <= 0 {
		return faults.New(faults.Validation, "invalid_amount", "amount must be positive")
	}
	if err := s.ensureTreasury(ctx); err != nil {
		return err
	}
	if err := s.users.Credit(ctx, s.treasuryID, -amount); err != nil {
		return fmt.Errorf("debit treasury: %w", err)
	}
	if err := s.users.Credit(ctx, userID, amount); err != nil {
		return fmt.Errorf("credit user: %w", err)
	}
	_, err := s.record(ctx, userID, amount, transaction.TypePrincipal, &loanID, nil)
	return err
}

func (s *Service) record(ctx context.Context, userID string, amount int64, typ transaction.Type, loanID, paymentID *int64) (string, error) {
	ref := reference(typ)
	_, err := s.txs.Insert(ctx, transaction.Entity{
		TransactionID: ref,
		Type:          typ,
		Status:        transaction.StatusCompleted,
		Amount:        amount,
		UserID:        userID,
		LoanID:        loanID,
		PaymentID:     paymentID,
		CreatedAt:     s.now(),
	})
	if err != nil {
		return "", fmt.Errorf("record transaction: %w", err)
	}
	return ref, nil
}

func (s *Service) ensureTreasury(ctx context.Context) error {
	t, err := s.users.GetByPlatformID(ctx, s.treasuryID)
	if err != nil {
		return fmt.Errorf("load treasury: %w", err)
	}
	if t != nil {
		return nil
	}
	_, err = s.users.Create(ctx, account.CreateInput{
		PlatformID: s.treasuryID,
		Username:   s.treasuryID,
	})
	if err != nil {
		return fmt.Errorf("create treasury: %w", err)
	}
	return nil
}

func reference(typ transaction.Type) string {
	prefix := strings.ToUpper(string(typ))
	if len(prefix) > 3 {
		prefix = prefix[:3]
	}
	return prefix + "-" + uuid.NewString()
}
