package transaction

import (
	"context"
	"time"
)

type Type string

const (
	TypePayment   Type = "payment"
	TypeRefund    Type = "refund"
	TypeFee       Type = "fee"
	TypeInterest  Type = "interest"
	TypePrincipal Type = "principal"
	TypeOther     Type = "other"
)

const StatusCompleted = "completed"

// Entity is an immutable audit record of one money movement. The
// TransactionID is globally unique and doubles as the idempotency key
// for externally reported transfers.
type Entity struct {
	ID            int64
	TransactionID string
	Type          Type
	Status        string
	Amount        int64
	UserID        string
	LoanID        *int64
	PaymentID     *int64
	CreatedAt     time.Time
}

type Repository interface {
	// Insert persists the record. It reports false, with no error,
	// when a record with the same TransactionID already exists.
	Insert(ctx context.Context, e Entity) (bool, error)
	ListByUser(ctx context.Context, userID string, limit int32) ([]Entity, error)
	ListByLoan(ctx context.Context, loanID int64) ([]Entity, error)
	Count(ctx context.Context) (int64, error)
}
