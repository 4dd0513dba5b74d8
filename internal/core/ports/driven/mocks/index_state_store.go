package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/persona-core/internal/core/domain"
	"github.com/custodia-labs/persona-core/internal/core/ports/driven"
)

var _ driven.IndexStateStore = (*MockIndexStateStore)(nil)

// MockIndexStateStore is a mock implementation of IndexStateStore for testing
type MockIndexStateStore struct {
	mu     sync.RWMutex
	states map[string]*domain.IndexState

	SaveErr error
}

// NewMockIndexStateStore creates a new MockIndexStateStore
func NewMockIndexStateStore() *MockIndexStateStore {
	return &MockIndexStateStore{
		states: make(map[string]*domain.IndexState),
	}
}

func (m *MockIndexStateStore) Get(ctx context.Context, name string) (*domain.IndexState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.states[name]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *state
	return &cp, nil
}

func (m *MockIndexStateStore) Save(ctx context.Context, state *domain.IndexState) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *state
	m.states[state.Name] = &cp
	return nil
}

func (m *MockIndexStateStore) List(ctx context.Context) ([]*domain.IndexState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.IndexState, 0, len(m.states))
	for _, s := range m.states {
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
