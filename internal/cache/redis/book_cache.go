package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

// BookCache implements domain.BookCache with one JSON value per token.
//
// Key schema:
//
//	crossarb:book:{tokenID} - JSON OrderbookSnapshot
type BookCache struct {
	rdb *redis.Client
}

// NewBookCache creates a BookCache backed by the given Client.
func NewBookCache(c *Client) *BookCache {
	return &BookCache{rdb: c.Underlying()}
}

func bookKey(tokenID string) string { return keyPrefix + "book:" + tokenID }

// SetBook stores snap under its asset id for ttl.
func (bc *BookCache) SetBook(ctx context.Context, snap domain.OrderbookSnapshot, ttl time.Duration) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("redis: marshal book %s: %w", snap.AssetID, err)
	}
	if err := bc.rdb.Set(ctx, bookKey(snap.AssetID), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set book %s: %w", snap.AssetID, err)
	}
	return nil
}

// GetBook returns the cached book for tokenID, or domain.ErrNotFound.
func (bc *BookCache) GetBook(ctx context.Context, tokenID string) (domain.OrderbookSnapshot, error) {
	data, err := bc.rdb.Get(ctx, bookKey(tokenID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.OrderbookSnapshot{}, domain.ErrNotFound
		}
		return domain.OrderbookSnapshot{}, fmt.Errorf("redis: get book %s: %w", tokenID, err)
	}
	var snap domain.OrderbookSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.OrderbookSnapshot{}, fmt.Errorf("redis: unmarshal book %s: %w", tokenID, err)
	}
	return snap, nil
}

var _ domain.BookCache = (*BookCache)(nil)
