package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/persona-core/internal/core/domain"
	"github.com/custodia-labs/persona-core/internal/core/ports/driven"
)

var _ driven.HitCache = (*MockHitCache)(nil)

// MockHitCache is an in-memory HitCache without expiry
type MockHitCache struct {
	mu      sync.Mutex
	entries map[string][]domain.SearchHit

	GetErr error
	SetErr error
}

// NewMockHitCache creates a new MockHitCache
func NewMockHitCache() *MockHitCache {
	return &MockHitCache{entries: make(map[string][]domain.SearchHit)}
}

func (m *MockHitCache) Get(ctx context.Context, key string) ([]domain.SearchHit, bool, error) {
	if m.GetErr != nil {
		return nil, false, m.GetErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	hits, ok := m.entries[key]
	return hits, ok, nil
}

func (m *MockHitCache) Set(ctx context.Context, key string, hits []domain.SearchHit, ttl time.Duration) error {
	if m.SetErr != nil {
		return m.SetErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = hits
	return nil
}

// Len returns the number of cached keys
func (m *MockHitCache) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
