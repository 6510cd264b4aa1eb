package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"jobmatchly/internal/domain"
	"jobmatchly/internal/domain/model"
	"jobmatchly/internal/domain/ports/repository"
)

var _ repository.UserRepository = (*userRepo)(nil)

type userRepo struct{ pool *pgxpool.Pool }

func NewUserRepo(pool *pgxpool.Pool) *userRepo {
	return &userRepo{pool: pool}
}

// Save inserts a user or updates its profile. The balance is written on insert
// only; later changes go through AddCredits/SpendCredits.
func (r *userRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	const q = `
INSERT INTO users (id, email, name, credits, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (id) DO UPDATE SET email=$2, name=$3, updated_at=$6;`
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	_, err := execSQL(ctx, r.pool, tx, q, u.ID, u.Email, u.Name, u.Credits, u.CreatedAt, u.UpdatedAt)
	return mapExecErr(err)
}

const userColumns = `id, email, name, credits, created_at, updated_at`

func (r *userRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	q := forUpdate(`SELECT `+userColumns+` FROM users WHERE id=$1`, tx)
	return r.findOne(ctx, tx, q, id)
}

func (r *userRepo) FindByEmail(ctx context.Context, tx repository.Tx, email string) (*model.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE lower(email)=lower($1) LIMIT 1`
	return r.findOne(ctx, tx, q, email)
}

func (r *userRepo) findOne(ctx context.Context, tx repository.Tx, q string, arg any) (*model.User, error) {
	row, err := pickRow(ctx, r.pool, tx, q, arg)
	if err != nil {
		return nil, err
	}
	var u model.User
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Credits, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, mapScanErr(err, domain.ErrUserNotFound)
	}
	return &u, nil
}

func (r *userRepo) AddCredits(ctx context.Context, tx repository.Tx, id string, delta int64) (int64, error) {
	const q = `UPDATE users SET credits = credits + $2, updated_at = NOW() WHERE id=$1 RETURNING credits;`
	row, err := pickRow(ctx, r.pool, tx, q, id, delta)
	if err != nil {
		return 0, err
	}
	var balance int64
	if err := row.Scan(&balance); err != nil {
		return 0, mapScanErr(err, domain.ErrUserNotFound)
	}
	return balance, nil
}

// SpendCredits is one conditional UPDATE; two concurrent spends can never both
// pass the credits >= amount guard on the same balance.
func (r *userRepo) SpendCredits(ctx context.Context, tx repository.Tx, id string, amount int64) (int64, bool, error) {
	const q = `UPDATE users SET credits = credits - $2, updated_at = NOW() WHERE id=$1 AND credits >= $2 RETURNING credits;`
	row, err := pickRow(ctx, r.pool, tx, q, id, amount)
	if err != nil {
		return 0, false, err
	}
	var balance int64
	err = row.Scan(&balance)
	switch {
	case err == nil:
		return balance, true, nil
	case errors.Is(err, pgx.ErrNoRows):
		// Either the user is missing or the balance was too low.
		u, ferr := r.FindByID(ctx, tx, id)
		if ferr != nil {
			return 0, false, ferr
		}
		return u.Credits, false, nil
	default:
		return 0, false, mapScanErr(err, domain.ErrUserNotFound)
	}
}
