package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/tinhptlocal/credit-bot/internal/domain/loan"
	"github.com/tinhptlocal/credit-bot/internal/domain/payment"
)

type PaymentRepo struct {
	store *Store
}

func NewPaymentRepo(store *Store) *PaymentRepo {
	return &PaymentRepo{store: store}
}

const paymentColumns = `id, loan_id, user_id, sequence, amount, minimum_amount, late_fee,
	rate_pct, due_date, paid_date, status, COALESCE(transaction_id, ''), rewarded_at,
	created_at, updated_at`

var openStatuses = []string{string(payment.StatusPending), string(payment.StatusOverdue)}

func (r *PaymentRepo) CreateSchedule(ctx context.Context, loanID int64, userID string, entries []loan.ScheduleEntry) error {
	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(`
			INSERT INTO payments (loan_id, user_id, sequence, amount, minimum_amount, rate_pct, due_date, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			loanID, userID, e.Sequence, e.Amount, e.MinimumAmount, e.RatePct, e.DueDate, payment.StatusPending)
	}
	q := r.store.q(ctx)
	switch q := q.(type) {
	case pgx.Tx:
		return q.SendBatch(ctx, batch).Close()
	default:
		// Outside a transaction fall back to row-at-a-time inserts.
		for _, e := range entries {
			_, err := q.Exec(ctx, `
				INSERT INTO payments (loan_id, user_id, sequence, amount, minimum_amount, rate_pct, due_date, status)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				loanID, userID, e.Sequence, e.Amount, e.MinimumAmount, e.RatePct, e.DueDate, payment.StatusPending)
			if err != nil {
				return err
			}
		}
		return nil
	}
}

func (r *PaymentRepo) GetByID(ctx context.Context, id int64) (*payment.Entity, error) {
	row := r.store.q(ctx).QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
	return scanPayment(row)
}

func (r *PaymentRepo) ListByLoan(ctx context.Context, loanID int64) ([]payment.Entity, error) {
	rows, err := r.store.q(ctx).Query(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE loan_id = $1 ORDER BY sequence`, loanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPayments(rows)
}

func (r *PaymentRepo) ListOpenByUser(ctx context.Context, userID string) ([]payment.Entity, error) {
	rows, err := r.store.q(ctx).Query(ctx,
		`SELECT `+paymentColumns+` FROM payments
		 WHERE user_id = $1 AND status = ANY($2)
		 ORDER BY due_date`, userID, openStatuses)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPayments(rows)
}

func (r *PaymentRepo) ListByUser(ctx context.Context, userID string, limit int) ([]payment.Entity, error) {
	rows, err := r.store.q(ctx).Query(ctx,
		`SELECT `+paymentColumns+` FROM payments
		 WHERE user_id = $1
		 ORDER BY due_date DESC
		 LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPayments(rows)
}

func (r *PaymentRepo) ListDueOn(ctx context.Context, status payment.Status, due time.Time) ([]payment.Entity, error) {
	rows, err := r.store.q(ctx).Query(ctx,
		`SELECT `+paymentColumns+` FROM payments
		 WHERE status = $1 AND due_date::date = $2::date
		 ORDER BY due_date`, status, due)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPayments(rows)
}

func (r *PaymentRepo) ListOverdueCandidates(ctx context.Context, before time.Time) ([]payment.Entity, error) {
	rows, err := r.store.q(ctx).Query(ctx,
		`SELECT `+paymentColumns+` FROM payments
		 WHERE status = $1 AND due_date < $2
		 ORDER BY due_date`, payment.StatusPending, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPayments(rows)
}

func (r *PaymentRepo) ListPaidOnUnrewarded(ctx context.Context, paidOn time.Time) ([]payment.Entity, error) {
	rows, err := r.store.q(ctx).Query(ctx,
		`SELECT `+paymentColumns+` FROM payments
		 WHERE status = $1 AND rewarded_at IS NULL
		   AND paid_date::date = $2::date AND paid_date::date <= due_date::date
		 ORDER BY paid_date`, payment.StatusPaid, paidOn)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPayments(rows)
}

func (r *PaymentRepo) CountOpenByLoan(ctx context.Context, loanID int64) (int64, error) {
	var n int64
	err := r.store.q(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM payments WHERE loan_id = $1 AND status = ANY($2)`,
		loanID, openStatuses).Scan(&n)
	return n, err
}

func (r *PaymentRepo) Settle(ctx context.Context, id int64, to payment.Status, paidDate time.Time, transactionID string) (bool, error) {
	tag, err := r.store.q(ctx).Exec(ctx, `
		UPDATE payments
		SET status = $2, paid_date = $3, transaction_id = $4, updated_at = now()
		WHERE id = $1 AND status = ANY($5)`,
		id, to, paidDate, transactionID, openStatuses)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PaymentRepo) MarkOverdue(ctx context.Context, id int64, lateFee int64) (bool, error) {
	tag, err := r.store.q(ctx).Exec(ctx, `
		UPDATE payments
		SET status = $2, late_fee = $3, updated_at = now()
		WHERE id = $1 AND status = $4`,
		id, payment.StatusOverdue, lateFee, payment.StatusPending)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PaymentRepo) MarkRewarded(ctx context.Context, id int64, at time.Time) (bool, error) {
	tag, err := r.store.q(ctx).Exec(ctx, `
		UPDATE payments SET rewarded_at = $2, updated_at = now()
		WHERE id = $1 AND rewarded_at IS NULL`, id, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PaymentRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.store.q(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM payments`).Scan(&n)
	return n, err
}

func scanPayment(row interface{ Scan(...any) error }) (*payment.Entity, error) {
	var p payment.Entity
	err := row.Scan(&p.ID, &p.LoanID, &p.UserID, &p.Sequence, &p.Amount, &p.MinimumAmount, &p.LateFee,
		&p.RatePct, &p.DueDate, &p.PaidDate, &p.Status, &p.TransactionID, &p.RewardedAt,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if noRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func scanPayments(rows pgx.Rows) ([]payment.Entity, error) {
	var out []payment.Entity
	for rows.Next() {
		var p payment.Entity
		if err := rows.Scan(&p.ID, &p.LoanID, &p.UserID, &p.Sequence, &p.Amount, &p.MinimumAmount, &p.LateFee,
			&p.RatePct, &p.DueDate, &p.PaidDate, &p.Status, &p.TransactionID, &p.RewardedAt,
			&p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
