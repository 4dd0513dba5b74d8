package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/persona-core/internal/core/domain"
)

// HitCache caches normalized search hits per query
type HitCache interface {
	// Get returns cached hits and whether the key was present
	Get(ctx context.Context, key string) ([]domain.SearchHit, bool, error)

	// Set stores hits under key for ttl
	Set(ctx context.Context, key string, hits []domain.SearchHit, ttl time.Duration) error
}
