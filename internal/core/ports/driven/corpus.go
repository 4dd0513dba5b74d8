package driven

import (
	"context"

	"github.com/custodia-labs/persona-core/internal/core/domain"
)

// CorpusSource loads the tabular dataset of historical posts
type CorpusSource interface {
	// Load reads the whole table. Consumed once at process start.
	Load(ctx context.Context) (*domain.Table, error)

	// Describe returns a human-readable location for logs
	Describe() string
}
