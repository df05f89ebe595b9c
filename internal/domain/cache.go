package domain

import (
	"context"
	"errors"
	"time"
)

// ErrLockHeld is returned when a distributed lock is owned by someone else.
var ErrLockHeld = errors.New("lock held")

// SnapshotCache holds the most recent ranked snapshot so API readers do not
// trigger venue fetches.
type SnapshotCache interface {
	SetLatest(ctx context.Context, snap Snapshot) error
	Latest(ctx context.Context) (Snapshot, error)
	// Get returns a recent snapshot by id, or ErrNotFound once it has
	// expired from the cache.
	Get(ctx context.Context, id string) (Snapshot, error)
}

// BookCache keeps public order book reads for a short time.
type BookCache interface {
	GetBook(ctx context.Context, tokenID string) (OrderbookSnapshot, error)
	SetBook(ctx context.Context, snap OrderbookSnapshot, ttl time.Duration) error
}

// RateLimiter provides distributed rate limiting. Allow counts the request
// when it is allowed.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager hands out distributed locks. The returned unlock func is safe
// to call more than once.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}
