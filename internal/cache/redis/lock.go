package redis

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

// releaseLua deletes the lock only while it still holds our token, so a scan
// that overran its TTL cannot release the next leader's lock.
const releaseLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

const releaseTimeout = 5 * time.Second

// LockManager elects the scanning replica. The lock value names its holder
// as "<host>/<uuid>" so a replica that loses the race can log who is
// scanning.
type LockManager struct {
	rdb     *redis.Client
	release *redis.Script
	host    string
}

// NewLockManager creates a LockManager backed by the given Client.
func NewLockManager(c *Client) *LockManager {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return &LockManager{
		rdb:     c.Underlying(),
		release: redis.NewScript(releaseLua),
		host:    host,
	}
}

func lockKey(key string) string {
	return keyPrefix + "lock:" + key
}

func ownerToken(host string) string {
	return host + "/" + uuid.NewString()
}

// heldError wraps domain.ErrLockHeld with the current holder when known.
func heldError(key, holder string) error {
	if holder == "" {
		return fmt.Errorf("redis: lock %s: %w", key, domain.ErrLockHeld)
	}
	return fmt.Errorf("redis: lock %s: %w by %s", key, domain.ErrLockHeld, holder)
}

// Acquire takes the lock for ttl. When another replica holds it, the error
// wraps domain.ErrLockHeld and names the holder. The returned unlock func
// may be called more than once.
func (lm *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := ownerToken(lm.host)
	lk := lockKey(key)

	ok, err := lm.rdb.SetNX(ctx, lk, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire lock %s: %w", key, err)
	}
	if !ok {
		// Best effort: the holder may release between SETNX and GET.
		holder, _ := lm.rdb.Get(ctx, lk).Result()
		return nil, heldError(key, holder)
	}

	var once sync.Once
	unlock := func() {
		once.Do(func() {
			// The caller's context may already be cancelled.
			releaseCtx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
			defer cancel()
			_ = lm.release.Run(releaseCtx, lm.rdb, []string{lk}, token).Err()
		})
	}
	return unlock, nil
}

var _ domain.LockManager = (*LockManager)(nil)
