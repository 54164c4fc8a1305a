package loan

import (
	"context"
	"time"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRepaid   Status = "repaid"
	StatusOverdue  Status = "overdue"
	StatusDue      Status = "due"
	StatusRejected Status = "rejected"
)

// ActiveStatuses are the statuses that block a user from taking a new
// loan: an approved loan, or one that slipped into arrears.
var ActiveStatuses = []Status{StatusApproved, StatusOverdue}

// Entity is one loan. Principal is in the smallest currency unit and
// AnnualRatePct is the credit-adjusted rate snapshotted at request
// time. Loans are never hard-deleted; terminal statuses retire them.
type Entity struct {
	ID            int64
	UserID        string
	Principal     int64
	AnnualRatePct int32
	TermMonths    int32
	Status        Status
	StartDate     time.Time
	EndDate       time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type CreateInput struct {
	UserID        string
	Principal     int64
	AnnualRatePct int32
	TermMonths    int32
	Status        Status
}

// ScheduleEntry is one installment row to be persisted when a loan is
// approved. Declared here so schedule generation does not depend on
// the payment package.
type ScheduleEntry struct {
	Sequence      int32
	Amount        int64
	MinimumAmount int64
	RatePct       int32
	DueDate       time.Time
}

type Repository interface {
	Create(ctx context.Context, in CreateInput) (*Entity, error)
	GetByID(ctx context.Context, id int64) (*Entity, error)
	ListByUser(ctx context.Context, userID string) ([]Entity, error)
	ListByStatus(ctx context.Context, status Status) ([]Entity, error)
	// HasActive reports whether the user holds a loan in any of
	// ActiveStatuses.
	HasActive(ctx context.Context, userID string) (bool, error)
	// Approve transitions pending→approved and stamps the term
	// window. It fails with a conflict when the loan is not pending
	// or the user already holds an active loan; the check is atomic
	// with the transition so two racing approvals cannot both pass.
	Approve(ctx context.Context, loanID int64, start, end time.Time) (*Entity, error)
	// UpdateStatus applies a status-gated transition and reports
	// whether the gate matched.
	UpdateStatus(ctx context.Context, loanID int64, from []Status, to Status) (bool, error)
	Count(ctx context.Context) (int64, error)
	CountByStatus(ctx context.Context, status Status) (int64, error)
	SumPrincipalByStatus(ctx context.Context, status Status) (int64, error)
}
