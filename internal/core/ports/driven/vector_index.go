package driven

import (
	"context"

	"github.com/custodia-labs/persona-core/internal/core/domain"
)

// VectorIndex is a hosted semantic index with integrated embeddings (Pinecone)
type VectorIndex interface {
	// DescribeIndex returns the index description, or domain.ErrNotFound if it does not exist
	DescribeIndex(ctx context.Context, name string) (*domain.IndexDescription, error)

	// CreateIndexForModel creates an index bound to the IndexSpec's embedding model.
	// The IndexSpec's TextField is mapped to the model input.
	CreateIndexForModel(ctx context.Context, spec domain.IndexSpec) (*domain.IndexDescription, error)

	// UpsertRecords writes records into a namespace; text goes into textField
	UpsertRecords(ctx context.Context, handle *domain.IndexHandle, namespace, textField string, records []domain.PostRecord) error

	// Search runs a semantic query and returns the raw service response
	Search(ctx context.Context, handle *domain.IndexHandle, query domain.SearchQuery, fields []string) (*RawSearchResponse, error)

	// NamespaceRecordCount returns how many records the namespace currently serves
	NamespaceRecordCount(ctx context.Context, handle *domain.IndexHandle, namespace string) (int, error)

	// HealthCheck verifies the index service is reachable
	HealthCheck(ctx context.Context) error
}

// RawSearchResponse mirrors the service search payload. Result is nil when the
// service omits it.
type RawSearchResponse struct {
	Result *RawSearchResult `json:"result"`
}

// RawSearchResult holds raw hits
type RawSearchResult struct {
	Hits []RawHit `json:"hits"`
}

// RawHit is one hit as returned by the service
type RawHit struct {
	ID     string         `json:"_id"`
	Score  float64        `json:"_score"`
	Fields map[string]any `json:"fields"`
}
