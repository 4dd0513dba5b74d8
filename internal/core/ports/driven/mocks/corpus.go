package mocks

import (
	"context"

	"github.com/custodia-labs/persona-core/internal/core/domain"
	"github.com/custodia-labs/persona-core/internal/core/ports/driven"
)

var _ driven.CorpusSource = (*MockCorpusSource)(nil)

// MockCorpusSource serves a fixed table
type MockCorpusSource struct {
	Table *domain.Table
	Err   error
}

func (m *MockCorpusSource) Load(ctx context.Context) (*domain.Table, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Table, nil
}

func (m *MockCorpusSource) Describe() string {
	return "mock corpus"
}
