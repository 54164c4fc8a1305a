package postgres

import (
	"context"
	"fmt"

	"github.com/tinhptlocal/credit-bot/internal/domain/account"
)

type UserRepo struct {
	store *Store
}

func NewUserRepo(store *Store) *UserRepo {
	return &UserRepo{store: store}
}

const userColumns = `id, platform_id, username, balance, credit_score, created_at, updated_at`

func (r *UserRepo) GetByPlatformID(ctx context.Context, platformID string) (*account.Entity, error) {
	row := r.store.q(ctx).QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE platform_id = $1`, platformID)
	return scanUser(row)
}

func (r *UserRepo) Create(ctx context.Context, in account.CreateInput) (*account.Entity, error) {
	row := r.store.q(ctx).QueryRow(ctx, `
		INSERT INTO users (platform_id, username, balance, credit_score)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (platform_id) DO UPDATE SET username = EXCLUDED.username
		RETURNING `+userColumns,
		in.PlatformID, in.Username, in.Balance, in.CreditScore)
	return scanUser(row)
}

func (r *UserRepo) Credit(ctx context.Context, platformID string, amount int64) error {
	tag, err := r.store.q(ctx).Exec(ctx, `
		UPDATE users SET balance = balance + $2, updated_at = now()
		WHERE platform_id = $1`, platformID, amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("credit: user %s not found", platformID)
	}
	return nil
}

func (r *UserRepo) Debit(ctx context.Context, platformID string, amount int64) (bool, error) {
	tag, err := r.store.q(ctx).Exec(ctx, `
		UPDATE users SET balance = balance - $2, updated_at = now()
		WHERE platform_id = $1 AND balance >= $2`, platformID, amount)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *UserRepo) AdjustCreditScore(ctx context.Context, platformID string, delta, min, max int) (int, error) {
	var score int
	err := r.store.q(ctx).QueryRow(ctx, `
		UPDATE users
		SET credit_score = LEAST($4, GREATEST($3, credit_score + $2)), updated_at = now()
		WHERE platform_id = $1
		RETURNING credit_score`, platformID, delta, min, max).Scan(&score)
	if err != nil {
		if noRows(err) {
			return 0, fmt.Errorf("adjust credit score: user %s not found", platformID)
		}
		return 0, err
	}
	return score, nil
}

func (r *UserRepo) SetCreditScore(ctx context.Context, platformID string, score int) error {
	tag, err := r.store.q(ctx).Exec(ctx, `
		UPDATE users SET credit_score = $2, updated_at = now()
		WHERE platform_id = $1`, platformID, score)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("set credit score: user %s not found", platformID)
	}
	return nil
}

func (r *UserRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.store.q(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

func scanUser(row interface{ Scan(...any) error }) (*account.Entity, error) {
	var u account.Entity
	err := row.Scan(&u.ID, &u.PlatformID, &u.Username, &u.Balance, &u.CreditScore, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if noRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}
