package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"jobmatchly/internal/domain"
	"jobmatchly/internal/domain/model"
	"jobmatchly/internal/domain/ports/repository"
)

var _ repository.WizardStateRepository = (*WizardStateRepo)(nil)

// WizardStateRepo stores one JSON blob per user. Every Save refreshes the TTL.
type WizardStateRepo struct {
	client *Client
	ttl    time.Duration
}

func NewWizardStateRepo(client *Client, ttl time.Duration) *WizardStateRepo {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &WizardStateRepo{client: client, ttl: ttl}
}

func wizardKey(userID string) string {
	return fmt.Sprintf("wizard_state:%s", userID)
}

func (s *WizardStateRepo) Save(ctx context.Context, state *model.WizardState) error {
	if state == nil || state.UserID == "" {
		return domain.ErrInvalidArgument
	}
	state.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, wizardKey(state.UserID), data, s.ttl)
}

func (s *WizardStateRepo) Load(ctx context.Context, userID string) (*model.WizardState, error) {
	data, ok, err := s.client.Get(ctx, wizardKey(userID))
	if err != nil || !ok {
		return nil, err
	}
	var state model.WizardState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, fmt.Errorf("decode wizard state: %w", err)
	}
	return &state, nil
}

func (s *WizardStateRepo) Clear(ctx context.Context, userID string) error {
	return s.client.Del(ctx, wizardKey(userID))
}
