package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/persona-core/internal/core/domain"
	"github.com/custodia-labs/persona-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.HitCache = (*HitCache)(nil)

const hitCachePrefix = "persona:hits:"

// HitCache implements driven.HitCache using Redis strings with TTL
type HitCache struct {
	client redis.UniversalClient
}

// NewHitCache creates a new Redis-backed HitCache
func NewHitCache(client redis.UniversalClient) *HitCache {
	return &HitCache{client: client}
}

// Get returns cached hits; ok is false on a miss
func (c *HitCache) Get(ctx context.Context, key string) ([]domain.SearchHit, bool, error) {
	data, err := c.client.Get(ctx, hitCachePrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get cached hits: %w", err)
	}

	var hits []domain.SearchHit
	if err := json.Unmarshal(data, &hits); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal cached hits: %w", err)
	}
	if hits == nil {
		hits = []domain.SearchHit{}
	}
	return hits, true, nil
}

// Set stores hits for ttl
func (c *HitCache) Set(ctx context.Context, key string, hits []domain.SearchHit, ttl time.Duration) error {
	if hits == nil {
		hits = []domain.SearchHit{}
	}
	data, err := json.Marshal(hits)
	if err != nil {
		return fmt.Errorf("failed to marshal hits: %w", err)
	}
	if err := c.client.Set(ctx, hitCachePrefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("set cached hits: %w", err)
	}
	return nil
}
