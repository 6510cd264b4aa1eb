package usecase

import (
	"context"
	"time"

	"jobmatchly/internal/domain"
	"jobmatchly/internal/domain/model"
	"jobmatchly/internal/domain/ports/repository"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ WizardUseCase = (*wizardUC)(nil)

// WizardUseCase keeps the onboarding wizard's progress per user so a
// reload resumes where the user left off.
type WizardUseCase interface {
	Load(ctx context.Context, userID string) (*model.WizardState, error)
	Save(ctx context.Context, state *model.WizardState) error
	Reset(ctx context.Context, userID string) error
}

// MaxWizardStep is the last step of the onboarding flow.
const MaxWizardStep = 4

type wizardUC struct {
	users  repository.UserRepository
	states repository.WizardStateRepository
	log    *zerolog.Logger
}

func NewWizardUseCase(users repository.UserRepository, states repository.WizardStateRepository, logger *zerolog.Logger) *wizardUC {
	return &wizardUC{users: users, states: states, log: logger}
}

func (u *wizardUC) Load(ctx context.Context, userID string) (*model.WizardState, error) {
	if _, err := u.users.FindByID(ctx, repository.NoTX, userID); err != nil {
		return nil, err
	}
	st, err := u.states.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return &model.WizardState{UserID: userID}, nil
	}
	return st, nil
}

func (u *wizardUC) Save(ctx context.Context, state *model.WizardState) error {
	if state == nil || state.UserID == "" || state.Step < 0 || state.Step > MaxWizardStep {
		return domain.ErrInvalidArgument
	}
	if _, err := u.users.FindByID(ctx, repository.NoTX, state.UserID); err != nil {
		return err
	}
	state.UpdatedAt = time.Now().UTC()
	if err := u.states.Save(ctx, state); err != nil {
		u.log.Error().Err(err).Str("user_id", state.UserID).Msg("Failed to save wizard state")
		return err
	}
	return nil
}

func (u *wizardUC) Reset(ctx context.Context, userID string) error {
	return u.states.Clear(ctx, userID)
}
