package repository

import (
	"context"
	"time"
)

// Locker serializes accept attempts on the single active-session slot.
// The store's conditional update stays authoritative; the lock only
// keeps concurrent admin devices from hammering the same row.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}
