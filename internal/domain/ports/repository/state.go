package repository

import (
	"context"

	"jobmatchly/internal/domain/model"
)

// WizardStateRepository persists onboarding wizard progress per user.
type WizardStateRepository interface {
	Save(ctx context.Context, state *model.WizardState) error
	// Load returns (nil, nil) when nothing is stored.
	Load(ctx context.Context, userID string) (*model.WizardState, error)
	Clear(ctx context.Context, userID string) error
}
