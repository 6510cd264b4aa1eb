package repository

import (
	"context"

	"jobmatchly/internal/domain/model"
)

// -----------------------------
// Users
// -----------------------------

type UserRepository interface {
	Save(ctx context.Context, tx Tx, u *model.User) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.User, error)
	FindByEmail(ctx context.Context, tx Tx, email string) (*model.User, error)

	// AddCredits applies an unconditional delta and returns the new balance.
	AddCredits(ctx context.Context, tx Tx, id string, delta int64) (int64, error)
	// SpendCredits decrements only when the balance covers amount, as a single
	// conditional update. ok=false means the balance was insufficient.
	SpendCredits(ctx context.Context, tx Tx, id string, amount int64) (balance int64, ok bool, err error)
}
