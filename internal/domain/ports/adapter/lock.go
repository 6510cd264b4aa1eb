package adapter

import (
	"context"
	"time"
)

// Locker is a best-effort distributed mutex keyed by string.
type Locker interface {
	// TryLock returns a token on success and domain.ErrLocked when held elsewhere.
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

// RateLimiter is a fixed-window counter.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
