package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/tinhptlocal/credit-bot/internal/domain/loan"
	"github.com/tinhptlocal/credit-bot/internal/faults"
)

type LoanRepo struct {
	store *Store
}

func NewLoanRepo(store *Store) *LoanRepo {
	return &LoanRepo{store: store}
}

const loanColumns = `id, user_id, principal, annual_rate_pct, term_months, status,
	COALESCE(start_date, 'epoch'::timestamptz), COALESCE(end_date, 'epoch'::timestamptz),
	created_at, updated_at`

func (r *LoanRepo) Create(ctx context.Context, in loan.CreateInput) (*loan.Entity, error) {
	status := in.Status
	if status == "" {
		status = loan.StatusPending
	}
	row := r.store.q(ctx).QueryRow(ctx, `
		INSERT INTO loans (user_id, principal, annual_rate_pct, term_months, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+loanColumns,
		in.UserID, in.Principal, in.AnnualRatePct, in.TermMonths, status)
	return scanLoan(row)
}

func (r *LoanRepo) GetByID(ctx context.Context, id int64) (*loan.Entity, error) {
	row := r.store.q(ctx).QueryRow(ctx,
		`SELECT `+loanColumns+` FROM loans WHERE id = $1`, id)
	return scanLoan(row)
}

func (r *LoanRepo) ListByUser(ctx context.Context, userID string) ([]loan.Entity, error) {
	rows, err := r.store.q(ctx).Query(ctx,
		`SELECT `+loanColumns+` FROM loans WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLoans(rows)
}

func (r *LoanRepo) ListByStatus(ctx context.Context, status loan.Status) ([]loan.Entity, error) {
	rows, err := r.store.q(ctx).Query(ctx,
		`SELECT `+loanColumns+` FROM loans WHERE status = $1 ORDER BY created_at`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLoans(rows)
}

func (r *LoanRepo) HasActive(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := r.store.q(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM loans
			WHERE user_id = $1 AND status = ANY($2)
		)`, userID, statusStrings(loan.ActiveStatuses)).Scan(&exists)
	return exists, err
}

// Approve flips pending→approved only when the borrower holds no other
// active loan. The guard lives in the same statement as the update, so
// two racing approvals for one user cannot both succeed; the partial
// unique index on active loans backs it up.
func (r *LoanRepo) Approve(ctx context.Context, loanID int64, start, end time.Time) (*loan.Entity, error) {
	row := r.store.q(ctx).QueryRow(ctx, `
		UPDATE loans l
		SET status = $4, start_date = $2, end_date = $3, updated_at = now()
		WHERE l.id = $1 AND l.status = $5
		  AND NOT EXISTS (
			SELECT 1 FROM loans o
			WHERE o.user_id = l.user_id AND o.id <> l.id AND o.status = ANY($6)
		  )
		RETURNING `+loanColumns,
		loanID, start, end, loan.StatusApproved, loan.StatusPending, statusStrings(loan.ActiveStatuses))
	ent, err := scanLoan(row)
	if err != nil {
		return nil, err
	}
	if ent == nil {
		return nil, faults.New(faults.Conflict, "loan_not_approvable", "loan is not pending or the borrower already holds an active loan")
	}
	return ent, nil
}

func (r *LoanRepo) UpdateStatus(ctx context.Context, loanID int64, from []loan.Status, to loan.Status) (bool, error) {
	tag, err := r.store.q(ctx).Exec(ctx, `
		UPDATE loans SET status = $2, updated_at = now()
		WHERE id = $1 AND status = ANY($3)`,
		loanID, to, statusStrings(from))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *LoanRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.store.q(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM loans`).Scan(&n)
	return n, err
}

func (r *LoanRepo) CountByStatus(ctx context.Context, status loan.Status) (int64, error) {
	var n int64
	err := r.store.q(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM loans WHERE status = $1`, status).Scan(&n)
	return n, err
}

func (r *LoanRepo) SumPrincipalByStatus(ctx context.Context, status loan.Status) (int64, error) {
	var total int64
	err := r.store.q(ctx).QueryRow(ctx,
		`SELECT COALESCE(SUM(principal), 0) FROM loans WHERE status = $1`, status).Scan(&total)
	return total, err
}

func statusStrings(statuses []loan.Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func scanLoan(row interface{ Scan(...any) error }) (*loan.Entity, error) {
	var l loan.Entity
	err := row.Scan(&l.ID, &l.UserID, &l.Principal, &l.AnnualRatePct, &l.TermMonths, &l.Status,
		&l.StartDate, &l.EndDate, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if noRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return &l, nil
}

func scanLoans(rows pgx.Rows) ([]loan.Entity, error) {
	var out []loan.Entity
	for rows.Next() {
		var l loan.Entity
		if err := rows.Scan(&l.ID, &l.UserID, &l.Principal, &l.AnnualRatePct, &l.TermMonths, &l.Status,
			&l.StartDate, &l.EndDate, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
