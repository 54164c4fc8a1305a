package payment

import (
	"context"
	"time"

	"github.com/tinhptlocal/credit-bot/internal/domain/loan"
)

type Status string

const (
	StatusPending     Status = "pending"
	StatusPaid        Status = "paid"
	StatusOverdue     Status = "overdue"
	StatusMinimumPaid Status = "minimum_paid"
)

// Entity is one scheduled installment. Amount is the full installment,
// MinimumAmount the smallest accepted partial, LateFee the accrued
// penalty once overdue. TransactionID links the settling movement and
// RewardedAt marks that the on-time reward already ran for this row.
type Entity struct {
	ID            int64
	LoanID        int64
	UserID        string
	Sequence      int32
	Amount        int64
	MinimumAmount int64
	LateFee       int64
	RatePct       int32
	DueDate       time.Time
	PaidDate      *time.Time
	Status        Status
	TransactionID string
	RewardedAt    *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Outstanding is the installment amount plus any accrued late fee.
func (e *Entity) Outstanding() int64 {
	return e.Amount + e.LateFee
}

// Settled reports whether the installment needs no further payment.
func (e *Entity) Settled() bool {
	return e.Status == StatusPaid || e.Status == StatusMinimumPaid
}

type Repository interface {
	// CreateSchedule persists the full installment schedule for an
	// approved loan.
	CreateSchedule(ctx context.Context, loanID int64, userID string, entries []loan.ScheduleEntry) error
	GetByID(ctx context.Context, id int64) (*Entity, error)
	ListByLoan(ctx context.Context, loanID int64) ([]Entity, error)
	// ListOpenByUser returns the user's unsettled installments in due
	// order.
	ListOpenByUser(ctx context.Context, userID string) ([]Entity, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]Entity, error)
	// ListDueOn returns installments in the given status whose due
	// date falls on the given day.
	ListDueOn(ctx context.Context, status Status, due time.Time) ([]Entity, error)
	// ListOverdueCandidates returns pending installments due strictly
	// before the cutoff.
	ListOverdueCandidates(ctx context.Context, before time.Time) ([]Entity, error)
	// ListPaidOnUnrewarded returns installments paid on the given day
	// that have not yet received the on-time reward.
	ListPaidOnUnrewarded(ctx context.Context, paidOn time.Time) ([]Entity, error)
	CountOpenByLoan(ctx context.Context, loanID int64) (int64, error)
	// Settle moves an unsettled installment to the given terminal
	// status and stamps the paid date and transaction reference. It
	// reports false when the installment was settled concurrently.
	Settle(ctx context.Context, id int64, to Status, paidDate time.Time, transactionID string) (bool, error)
	// MarkOverdue moves pending→overdue and records the late fee; it
	// reports false when the row was not pending.
	MarkOverdue(ctx context.Context, id int64, lateFee int64) (bool, error)
	// MarkRewarded stamps RewardedAt; it reports false when the row
	// was already rewarded.
	MarkRewarded(ctx context.Context, id int64, at time.Time) (bool, error)
	Count(ctx context.Context) (int64, error)
}
