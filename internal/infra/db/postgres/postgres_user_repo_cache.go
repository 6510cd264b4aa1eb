package postgres

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"jobmatchly/internal/domain/model"
	"jobmatchly/internal/domain/ports/repository"
	"jobmatchly/internal/infra/metrics"
)

var _ repository.UserRepository = (*userRepoCacheDecorator)(nil)

// Cache is the slice of the Redis client the decorator needs.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// userRepoCacheDecorator serves FindByID/FindByEmail from Redis outside of
// transactions. Reads inside a tx always hit Postgres so row locks and
// balances stay exact. Cached balances may lag; callers that need the live
// balance go through the undecorated repo.
type userRepoCacheDecorator struct {
	inner repository.UserRepository
	cache Cache
	ttl   time.Duration
}

func NewUserRepoCacheDecorator(inner repository.UserRepository, cache Cache, ttl time.Duration) repository.UserRepository {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &userRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl}
}

func userIDKey(id string) string { return "user:id:" + id }

func userEmailKey(email string) string {
	return "user:email:" + strings.ToLower(strings.TrimSpace(email))
}

// For write operations, we must invalidate all possible keys for that user.
func (d *userRepoCacheDecorator) invalidate(ctx context.Context, u *model.User) {
	keys := []string{userIDKey(u.ID)}
	if u.Email != "" {
		keys = append(keys, userEmailKey(u.Email))
	}
	_ = d.cache.Del(ctx, keys...)
}

func (d *userRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	if err := d.inner.Save(ctx, tx, u); err != nil {
		return err
	}
	d.invalidate(ctx, u)
	return nil
}

func (d *userRepoCacheDecorator) lookup(ctx context.Context, key string) (*model.User, bool) {
	val, ok, err := d.cache.Get(ctx, key)
	if err != nil {
		metrics.IncCacheRequest("user", "error")
		return nil, false
	}
	if !ok {
		metrics.IncCacheRequest("user", "miss")
		return nil, false
	}
	var user model.User
	if json.Unmarshal([]byte(val), &user) != nil {
		metrics.IncCacheRequest("user", "miss")
		return nil, false
	}
	metrics.IncCacheRequest("user", "hit")
	return &user, true
}

func (d *userRepoCacheDecorator) store(ctx context.Context, u *model.User) {
	b, err := json.Marshal(u)
	if err != nil {
		return
	}
	// Warm both keys so either lookup hits next time.
	_ = d.cache.Set(ctx, userIDKey(u.ID), b, d.ttl)
	_ = d.cache.Set(ctx, userEmailKey(u.Email), b, d.ttl)
}

func (d *userRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	if tx != nil {
		metrics.IncCacheRequest("user", "bypass")
		return d.inner.FindByID(ctx, tx, id)
	}
	if u, ok := d.lookup(ctx, userIDKey(id)); ok {
		return u, nil
	}
	u, err := d.inner.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	d.store(ctx, u)
	return u, nil
}

func (d *userRepoCacheDecorator) FindByEmail(ctx context.Context, tx repository.Tx, email string) (*model.User, error) {
	if tx != nil {
		metrics.IncCacheRequest("user", "bypass")
		return d.inner.FindByEmail(ctx, tx, email)
	}
	if u, ok := d.lookup(ctx, userEmailKey(email)); ok {
		return u, nil
	}
	u, err := d.inner.FindByEmail(ctx, tx, email)
	if err != nil {
		return nil, err
	}
	d.store(ctx, u)
	return u, nil
}

func (d *userRepoCacheDecorator) AddCredits(ctx context.Context, tx repository.Tx, id string, delta int64) (int64, error) {
	bal, err := d.inner.AddCredits(ctx, tx, id, delta)
	if err == nil {
		_ = d.cache.Del(ctx, userIDKey(id))
	}
	return bal, err
}

func (d *userRepoCacheDecorator) SpendCredits(ctx context.Context, tx repository.Tx, id string, amount int64) (int64, bool, error) {
	bal, ok, err := d.inner.SpendCredits(ctx, tx, id, amount)
	if err == nil && ok {
		_ = d.cache.Del(ctx, userIDKey(id))
	}
	return bal, ok, err
}
