package driving

import (
	"context"

	"github.com/custodia-labs/persona-core/internal/core/domain"
)

// IndexService provisions the semantic index of historical posts
type IndexService interface {
	// EnsureIndex returns the existing index or creates and populates it from corpus
	EnsureIndex(ctx context.Context, corpus []domain.PostRecord, spec domain.IndexSpec) (*domain.ProvisionResult, error)

	// Status returns the recorded provisioning state of an index
	Status(ctx context.Context, name string) (*domain.IndexState, error)
}
