//go:build !integration

package postgres

import (
	"context"
	"errors"
	"testing"

	"jobmatchly/internal/domain"
	"jobmatchly/internal/domain/model"
	"jobmatchly/internal/domain/ports/repository"
)

func TestUserRepoCacheDecorator(t *testing.T) {
	ctx := context.Background()
	user := &model.User{ID: "user-123", Email: "ada@example.com", Name: "Ada", Credits: 4}

	t.Run("FindByID should fetch from DB and warm both keys on miss", func(t *testing.T) {
		calls := 0
		cache := newMemCache()
		inner := &mockInnerUserRepo{
			FindByIDFunc: func(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
				calls++
				return user, nil
			},
		}
		d := NewUserRepoCacheDecorator(inner, cache, 0)

		got, err := d.FindByID(ctx, nil, "user-123")
		if err != nil || got.ID != "user-123" {
			t.Fatalf("unexpected result: %+v %v", got, err)
		}
		if !cache.has("user:id:user-123") || !cache.has("user:email:ada@example.com") {
			t.Error("expected both cache keys to be set")
		}

		got, err = d.FindByID(ctx, nil, "user-123")
		if err != nil || got.Credits != 4 {
			t.Fatalf("cached read failed: %+v %v", got, err)
		}
		if calls != 1 {
			t.Errorf("inner repository should be called once, got %d", calls)
		}
	})

	t.Run("FindByEmail hits the key warmed by FindByID", func(t *testing.T) {
		cache := newMemCache()
		inner := &mockInnerUserRepo{
			FindByIDFunc: func(ctx context.Context, tx repository.Tx, id string) (*model.User, error) { return user, nil },
			FindByEmailFunc: func(ctx context.Context, tx repository.Tx, email string) (*model.User, error) {
				t.Fatal("inner FindByEmail should not be called")
				return nil, nil
			},
		}
		d := NewUserRepoCacheDecorator(inner, cache, 0)
		_, _ = d.FindByID(ctx, nil, "user-123")

		got, err := d.FindByEmail(ctx, nil, " ADA@example.com ")
		if err != nil || got.ID != "user-123" {
			t.Fatalf("unexpected result: %+v %v", got, err)
		}
	})

	t.Run("reads inside a transaction bypass the cache", func(t *testing.T) {
		calls := 0
		cache := newMemCache()
		inner := &mockInnerUserRepo{
			FindByIDFunc: func(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
				calls++
				return user, nil
			},
		}
		d := NewUserRepoCacheDecorator(inner, cache, 0)
		tx := struct{}{}
		_, _ = d.FindByID(ctx, tx, "user-123")
		_, _ = d.FindByID(ctx, tx, "user-123")
		if calls != 2 {
			t.Errorf("expected 2 inner calls, got %d", calls)
		}
		if cache.has("user:id:user-123") {
			t.Error("tx reads must not populate the cache")
		}
	})

	t.Run("not found is not cached", func(t *testing.T) {
		cache := newMemCache()
		inner := &mockInnerUserRepo{
			FindByIDFunc: func(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
				return nil, domain.ErrUserNotFound
			},
		}
		d := NewUserRepoCacheDecorator(inner, cache, 0)
		if _, err := d.FindByID(ctx, nil, "ghost"); !errors.Is(err, domain.ErrUserNotFound) {
			t.Fatalf("expected ErrUserNotFound, got %v", err)
		}
		if cache.has("user:id:ghost") {
			t.Error("misses must not be cached")
		}
	})

	t.Run("cache errors fall through to the DB", func(t *testing.T) {
		cache := newMemCache()
		cache.getErr = errors.New("redis down")
		inner := &mockInnerUserRepo{
			FindByIDFunc: func(ctx context.Context, tx repository.Tx, id string) (*model.User, error) { return user, nil },
		}
		d := NewUserRepoCacheDecorator(inner, cache, 0)
		if got, err := d.FindByID(ctx, nil, "user-123"); err != nil || got == nil {
			t.Fatalf("expected DB result, got %+v %v", got, err)
		}
	})

	t.Run("balance changes invalidate the id key", func(t *testing.T) {
		cache := newMemCache()
		inner := &mockInnerUserRepo{
			FindByIDFunc:   func(ctx context.Context, tx repository.Tx, id string) (*model.User, error) { return user, nil },
			AddCreditsFunc: func(ctx context.Context, tx repository.Tx, id string, delta int64) (int64, error) { return 9, nil },
			SpendFunc: func(ctx context.Context, tx repository.Tx, id string, amount int64) (int64, bool, error) {
				return 9, false, nil
			},
		}
		d := NewUserRepoCacheDecorator(inner, cache, 0)

		_, _ = d.FindByID(ctx, nil, "user-123")
		if _, ok, _ := d.SpendCredits(ctx, nil, "user-123", 20); ok {
			t.Fatal("spend should be refused")
		}
		if !cache.has("user:id:user-123") {
			t.Error("a refused spend changes nothing and keeps the entry")
		}
		if _, err := d.AddCredits(ctx, nil, "user-123", 5); err != nil {
			t.Fatalf("AddCredits: %v", err)
		}
		if cache.has("user:id:user-123") {
			t.Error("AddCredits should invalidate the id key")
		}
	})

	t.Run("Save invalidates both keys", func(t *testing.T) {
		cache := newMemCache()
		inner := &mockInnerUserRepo{
			SaveFunc: func(ctx context.Context, tx repository.Tx, u *model.User) error { return nil },
		}
		d := NewUserRepoCacheDecorator(inner, cache, 0)
		if err := d.Save(ctx, nil, user); err != nil {
			t.Fatalf("Save: %v", err)
		}
		if len(cache.deleted) != 2 {
			t.Errorf("expected 2 invalidated keys, got %v", cache.deleted)
		}
	})
}
