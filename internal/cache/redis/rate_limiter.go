package redis

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

//go:embed scripts/sliding_window.lua
var slidingWindowLua string

// RateLimiter counts requests per key in a sliding window kept in a Redis
// sorted set, so every API replica shares one budget. The server applies it
// to the trade routes, keyed by scope and client address.
type RateLimiter struct {
	rdb    *redis.Client
	script *redis.Script
	now    func() time.Time
}

// NewRateLimiter creates a RateLimiter backed by the given Client.
func NewRateLimiter(c *Client) *RateLimiter {
	return &RateLimiter{
		rdb:    c.Underlying(),
		script: redis.NewScript(slidingWindowLua),
		now:    time.Now,
	}
}

func rateLimitKey(key string) string {
	return keyPrefix + "ratelimit:" + key
}

// windowArgs builds the script arguments. The member is unique so two hits
// in the same microsecond count twice.
func windowArgs(now time.Time, window time.Duration, limit int, member string) []any {
	return []any{now.UnixMicro(), window.Microseconds(), limit, member}
}

// decodeWindowResult reads the script's {allowed, count} reply.
func decodeWindowResult(res []int64) (allowed bool, count int64, err error) {
	if len(res) != 2 {
		return false, 0, fmt.Errorf("unexpected reply length %d", len(res))
	}
	return res[0] == 1, res[1], nil
}

// Allow reports whether one more request for key fits in the window and
// counts it when it does. A non-positive limit or window disables limiting.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 || window <= 0 {
		return true, nil
	}

	res, err := rl.script.Run(ctx, rl.rdb, []string{rateLimitKey(key)},
		windowArgs(rl.now(), window, limit, uuid.NewString())...,
	).Int64Slice()
	if err != nil {
		return false, fmt.Errorf("redis: rate limit %s: %w", key, err)
	}
	allowed, _, err := decodeWindowResult(res)
	if err != nil {
		return false, fmt.Errorf("redis: rate limit %s: %w", key, err)
	}
	return allowed, nil
}

var _ domain.RateLimiter = (*RateLimiter)(nil)
