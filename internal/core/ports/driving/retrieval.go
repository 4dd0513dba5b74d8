package driving

import (
	"context"

	"github.com/custodia-labs/persona-core/internal/core/domain"
)

// RetrievalService runs semantic queries against the posts index
type RetrievalService interface {
	// Search never fails: service errors and malformed responses yield an empty slice
	Search(ctx context.Context, handle *domain.IndexHandle, query domain.SearchQuery) []domain.SearchHit
}
