package driven

import (
	"context"

	"github.com/custodia-labs/persona-core/internal/core/domain"
)

// IndexStateStore records which indexes this deployment provisioned
type IndexStateStore interface {
	// Get returns the recorded state, or domain.ErrNotFound
	Get(ctx context.Context, name string) (*domain.IndexState, error)

	// Save inserts or replaces the state for state.Name
	Save(ctx context.Context, state *domain.IndexState) error

	// List returns all recorded states, newest first
	List(ctx context.Context) ([]*domain.IndexState, error)
}
