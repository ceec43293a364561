// Package redis provides Redis-based adapters for the campaignsync system.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sendfleet/campaignsync/internal/domain/model"
	apperrors "github.com/sendfleet/campaignsync/internal/errors"
)

const defaultPrefix = "snapshot:"

// SnapshotCache stores the last server-confirmed snapshot per family with a
// TTL, so a restarted client can warm-start with a stale view before the
// first resync.
type SnapshotCache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewSnapshotCache creates a Redis-backed snapshot cache. A zero ttl keeps
// snapshots until overwritten.
func NewSnapshotCache(client redis.UniversalClient, ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{
		client: client,
		prefix: defaultPrefix,
		ttl:    ttl,
	}
}

// Store overwrites the cached snapshot for the family.
func (c *SnapshotCache) Store(ctx context.Context, family model.JobFamily, records []*model.JobRecord) error {
	if !family.Valid() {
		return apperrors.Validationf("invalid family %q", family)
	}
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := c.client.Set(ctx, c.key(family), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Load returns the cached snapshot for the family, or a NotFound error when
// none is cached.
func (c *SnapshotCache) Load(ctx context.Context, family model.JobFamily) ([]*model.JobRecord, error) {
	if !family.Valid() {
		return nil, apperrors.Validationf("invalid family %q", family)
	}
	data, err := c.client.Get(ctx, c.key(family)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.NotFoundf("no cached snapshot for %s", family)
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}
	var records []*model.JobRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return records, nil
}

func (c *SnapshotCache) key(family model.JobFamily) string {
	return c.prefix + string(family)
}
