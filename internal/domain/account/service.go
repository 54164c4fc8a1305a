package account

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tinhptlocal/credit-bot/internal/cache"
	"github.com/tinhptlocal/credit-bot/internal/domain/transaction"
	"github.com/tinhptlocal/credit-bot/internal/faults"
	"github.com/tinhptlocal/credit-bot/internal/ledger"
)

type AdminChecker interface {
	IsAdmin(ctx context.Context, userID string) (bool, error)
}

type Deps struct {
	Tx           ledger.TxRunner
	Users        Repository
	Txs          transaction.Repository
	Admins       AdminChecker
	Dedup        *cache.TTL[struct{}]
	Logger       *slog.Logger
	DefaultScore int
	Now          func() time.Time
}

type Service struct {
	d Deps
}

func NewService(d Deps) *Service {
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Service{d: d}
}

// EnsureUser returns the user's account, creating it with the default
// credit score on first contact.
func (s *Service) EnsureUser(ctx context.Context, userID, username string) (*Entity, error) {
	user, err := s.d.Users.GetByPlatformID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user != nil {
		return user, nil
	}
	user, err = s.d.Users.Create(ctx, CreateInput{
		PlatformID:  userID,
		Username:    username,
		CreditScore: s.d.DefaultScore,
	})
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// ApplyTokenReceipt credits a deposit reported by the platform. The
// external transaction id deduplicates delivery: a replay within the
// dedup window is dropped in memory, and a replay after it is dropped
// by the unique transaction record. Either way the balance moves at
// most once.
func (s *Service) ApplyTokenReceipt(ctx context.Context, userID, username, externalTxID string, amount int64) error {
	if amount <= 0 {
		return faults.New(faults.Validation, "invalid_amount", "receipt amount must be positive")
	}
	if externalTxID == "" {
		return faults.New(faults.Validation, "missing_transaction_id", "receipt is missing its transaction id")
	}
	if stored := s.d.Dedup.PutIfAbsent(externalTxID, struct{}{}); !stored {
		s.d.Logger.Debug("duplicate token receipt dropped", "transaction_id", externalTxID)
		return nil
	}

	err := s.d.Tx.InTx(ctx, func(ctx context.Context) error {
		inserted, err := s.d.Txs.Insert(ctx, transaction.Entity{
			TransactionID: externalTxID,
			Type:          transaction.TypeOther,
			Status:        transaction.StatusCompleted,
			Amount:        amount,
			UserID:        userID,
			CreatedAt:     s.d.Now(),
		})
		if err != nil {
			return fmt.Errorf("record receipt: %w", err)
		}
		if !inserted {
			s.d.Logger.Debug("token receipt already recorded", "transaction_id", externalTxID)
			return nil
		}
		if _, err := s.EnsureUser(ctx, userID, username); err != nil {
			return err
		}
		if err := s.d.Users.Credit(ctx, userID, amount); err != nil {
			return fmt.Errorf("credit user: %w", err)
		}
		return nil
	})
	if err != nil {
		// Release the dedup claim so the platform's redelivery can
		// apply the receipt after a transient failure.
		s.d.Dedup.Delete(externalTxID)
		return err
	}
	return nil
}

// Balance returns the user's account, creating it if needed so a
// first-time balance check does not error.
func (s *Service) Balance(ctx context.Context, userID, username string) (*Entity, error) {
	return s.EnsureUser(ctx, userID, username)
}

// AdjustCreditScore applies an admin-ordered delta, clamped to the
// valid score range, and returns the new score.
func (s *Service) AdjustCreditScore(ctx context.Context, adminID, userID string, delta int) (int, error) {
	ok, err := s.d.Admins.IsAdmin(ctx, adminID)
	if err != nil {
		return 0, fmt.Errorf("check admin: %w", err)
	}
	if !ok {
		return 0, faults.New(faults.Unauthorized, "admin_required", "this action requires an administrator")
	}
	user, err := s.d.Users.GetByPlatformID(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return 0, faults.New(faults.NotFound, "user_not_found", "user not found")
	}
	score, err := s.d.Users.AdjustCreditScore(ctx, userID, delta, MinCreditScore, MaxCreditScore)
	if err != nil {
		return 0, fmt.Errorf("adjust credit score: %w", err)
	}
	return score, nil
}

// Transactions lists the user's recent money movements.
func (s *Service) Transactions(ctx context.Context, userID string, limit int32) ([]transaction.Entity, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.d.Txs.ListByUser(ctx, userID, limit)
}
