package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/tinhptlocal/credit-bot/internal/domain/transaction"
)

type TransactionRepo struct {
	store *Store
}

func NewTransactionRepo(store *Store) *TransactionRepo {
	return &TransactionRepo{store: store}
}

const transactionColumns = `id, transaction_id, type, status, amount, user_id, loan_id, payment_id, created_at`

// Insert records the movement. The unique index on transaction_id
// makes redelivered external transfers a durable no-op.
func (r *TransactionRepo) Insert(ctx context.Context, e transaction.Entity) (bool, error) {
	tag, err := r.store.q(ctx).Exec(ctx, `
		INSERT INTO transactions (transaction_id, type, status, amount, user_id, loan_id, payment_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (transaction_id) DO NOTHING`,
		e.TransactionID, e.Type, e.Status, e.Amount, e.UserID, e.LoanID, e.PaymentID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *TransactionRepo) ListByUser(ctx context.Context, userID string, limit int32) ([]transaction.Entity, error) {
	rows, err := r.store.q(ctx).Query(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTransactions(rows)
}

func (r *TransactionRepo) ListByLoan(ctx context.Context, loanID int64) ([]transaction.Entity, error) {
	rows, err := r.store.q(ctx).Query(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE loan_id = $1
		 ORDER BY created_at`, loanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTransactions(rows)
}

func (r *TransactionRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.store.q(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&n)
	return n, err
}

func scanTransactions(rows pgx.Rows) ([]transaction.Entity, error) {
	var out []transaction.Entity
	for rows.Next() {
		var t transaction.Entity
		if err := rows.Scan(&t.ID, &t.TransactionID, &t.Type, &t.Status, &t.Amount,
			&t.UserID, &t.LoanID, &t.PaymentID, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
