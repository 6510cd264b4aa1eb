//go:build !integration

package postgres

import (
	"context"
	"sync"
	"time"

	"jobmatchly/internal/domain/model"
	"jobmatchly/internal/domain/ports/repository"
)

// --- Mocks for Cache Decorator Tests ---

// mockInnerUserRepo mocks the database repository that the User decorator wraps.
type mockInnerUserRepo struct {
	SaveFunc        func(ctx context.Context, tx repository.Tx, u *model.User) error
	FindByIDFunc    func(ctx context.Context, tx repository.Tx, id string) (*model.User, error)
	FindByEmailFunc func(ctx context.Context, tx repository.Tx, email string) (*model.User, error)
	AddCreditsFunc  func(ctx context.Context, tx repository.Tx, id string, delta int64) (int64, error)
	SpendFunc       func(ctx context.Context, tx repository.Tx, id string, amount int64) (int64, bool, error)
}

func (m *mockInnerUserRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	return m.SaveFunc(ctx, tx, u)
}
func (m *mockInnerUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	return m.FindByIDFunc(ctx, tx, id)
}
func (m *mockInnerUserRepo) FindByEmail(ctx context.Context, tx repository.Tx, email string) (*model.User, error) {
	return m.FindByEmailFunc(ctx, tx, email)
}
func (m *mockInnerUserRepo) AddCredits(ctx context.Context, tx repository.Tx, id string, delta int64) (int64, error) {
	return m.AddCreditsFunc(ctx, tx, id, delta)
}
func (m *mockInnerUserRepo) SpendCredits(ctx context.Context, tx repository.Tx, id string, amount int64) (int64, bool, error) {
	return m.SpendFunc(ctx, tx, id, amount)
}

// memCache is an in-memory Cache that records deletions.
type memCache struct {
	mu      sync.Mutex
	data    map[string]string
	deleted []string
	getErr  error
}

var _ Cache = (*memCache)(nil)

func newMemCache() *memCache { return &memCache{data: make(map[string]string)} }

func (c *memCache) Get(ctx context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return "", false, c.getErr
	}
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *memCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		c.data[key] = string(v)
	case string:
		c.data[key] = v
	}
	return nil
}

func (c *memCache) Del(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
		c.deleted = append(c.deleted, k)
	}
	return nil
}

func (c *memCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}
