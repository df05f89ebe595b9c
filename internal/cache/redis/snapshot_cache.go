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

// DefaultSnapshotTTL keeps a snapshot readable for a few missed scans.
const DefaultSnapshotTTL = 10 * time.Minute

// SnapshotCache implements domain.SnapshotCache.
//
// Key schema:
//
//	crossarb:snapshot:latest - JSON of the newest snapshot
//	crossarb:snapshot:{id}   - JSON of a specific snapshot, same TTL
type SnapshotCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewSnapshotCache creates a SnapshotCache. A non-positive ttl uses
// DefaultSnapshotTTL.
func NewSnapshotCache(c *Client, ttl time.Duration) *SnapshotCache {
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}
	return &SnapshotCache{rdb: c.Underlying(), ttl: ttl}
}

func snapshotLatestKey() string      { return keyPrefix + "snapshot:latest" }
func snapshotKey(id string) string { return keyPrefix + "snapshot:" + id }

// SetLatest stores snap as the latest snapshot and under its own id.
func (sc *SnapshotCache) SetLatest(ctx context.Context, snap domain.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("redis: marshal snapshot %s: %w", snap.ID, err)
	}

	pipe := sc.rdb.TxPipeline()
	pipe.Set(ctx, snapshotLatestKey(), data, sc.ttl)
	if snap.ID != "" {
		pipe.Set(ctx, snapshotKey(snap.ID), data, sc.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set snapshot %s: %w", snap.ID, err)
	}
	return nil
}

// Latest returns the newest snapshot, or domain.ErrNotFound.
func (sc *SnapshotCache) Latest(ctx context.Context) (domain.Snapshot, error) {
	return sc.get(ctx, snapshotLatestKey())
}

// Get returns the snapshot with the given id, or domain.ErrNotFound.
func (sc *SnapshotCache) Get(ctx context.Context, id string) (domain.Snapshot, error) {
	return sc.get(ctx, snapshotKey(id))
}

func (sc *SnapshotCache) get(ctx context.Context, key string) (domain.Snapshot, error) {
	data, err := sc.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Snapshot{}, domain.ErrNotFound
		}
		return domain.Snapshot{}, fmt.Errorf("redis: get %s: %w", key, err)
	}

	var snap domain.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.Snapshot{}, fmt.Errorf("redis: unmarshal %s: %w", key, err)
	}
	return snap, nil
}

var _ domain.SnapshotCache = (*SnapshotCache)(nil)
