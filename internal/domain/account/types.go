package account

import (
	"context"
	"time"
)

const (
	MinCreditScore = 0
	MaxCreditScore = 100
)

// Entity is a platform user holding a token balance. Balance is in the
// smallest currency unit and never goes below zero through the ledger;
// the treasury account is the one exception.
type Entity struct {
	ID          int64
	PlatformID  string
	Username    string
	Balance     int64
	CreditScore int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type CreateInput struct {
	PlatformID  string
	Username    string
	Balance     int64
	CreditScore int
}

type Repository interface {
	GetByPlatformID(ctx context.Context, platformID string) (*Entity, error)
	Create(ctx context.Context, in CreateInput) (*Entity, error)
	// Credit adds amount to the balance unconditionally.
	Credit(ctx context.Context, platformID string, amount int64) error
	// Debit subtracts amount only when the balance covers it; it
	// reports false, with no error, when it does not.
	Debit(ctx context.Context, platformID string, amount int64) (bool, error)
	// AdjustCreditScore applies delta clamped to [min,max] and returns
	// the new score.
	AdjustCreditScore(ctx context.Context, platformID string, delta, min, max int) (int, error)
	SetCreditScore(ctx context.Context, platformID string, score int) error
	Count(ctx context.Context) (int64, error)
}
