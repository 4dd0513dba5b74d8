package mocks

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/custodia-labs/persona-core/internal/core/domain"
	"github.com/custodia-labs/persona-core/internal/core/ports/driven"
)

var _ driven.VectorIndex = (*MockVectorIndex)(nil)

type mockIndex struct {
	desc       domain.IndexDescription
	textField  string
	namespaces map[string][]domain.PostRecord
	describes  int
}

// MockVectorIndex is an in-memory VectorIndex scoring records by query token overlap
type MockVectorIndex struct {
	mu      sync.Mutex
	indexes map[string]*mockIndex

	creates       int
	upsertBatches []int
	searches      []domain.SearchQuery

	// NotReadyDescribes makes a new index report not-ready for this many describes
	NotReadyDescribes int

	// Behaviour hooks (optional)
	CreateErr error
	UpsertErr error
	SearchFn  func(query domain.SearchQuery) (*driven.RawSearchResponse, error)
	CountFn   func(namespace string, actual int) (int, error)
	HealthErr error
}

// NewMockVectorIndex creates an empty MockVectorIndex
func NewMockVectorIndex() *MockVectorIndex {
	return &MockVectorIndex{
		indexes: make(map[string]*mockIndex),
	}
}

func (m *MockVectorIndex) DescribeIndex(ctx context.Context, name string) (*domain.IndexDescription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx, ok := m.indexes[name]
	if !ok {
		return nil, fmt.Errorf("index %s: %w", name, domain.ErrNotFound)
	}
	idx.describes++
	desc := idx.desc
	desc.Ready = idx.describes > m.NotReadyDescribes
	if desc.Ready {
		desc.State = "Ready"
	}
	return &desc, nil
}

func (m *MockVectorIndex) CreateIndexForModel(ctx context.Context, spec domain.IndexSpec) (*domain.IndexDescription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.creates++
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	if _, exists := m.indexes[spec.Name]; exists {
		return nil, fmt.Errorf("index %s already exists", spec.Name)
	}

	idx := &mockIndex{
		desc: domain.IndexDescription{
			Name:           spec.Name,
			Host:           spec.Name + ".svc.mock.pinecone.io",
			State:          "Initializing",
			EmbeddingModel: spec.EmbeddingModel,
		},
		textField:  spec.TextField,
		namespaces: make(map[string][]domain.PostRecord),
	}
	m.indexes[spec.Name] = idx
	desc := idx.desc
	return &desc, nil
}

func (m *MockVectorIndex) UpsertRecords(ctx context.Context, handle *domain.IndexHandle, namespace, textField string, records []domain.PostRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.UpsertErr != nil {
		return m.UpsertErr
	}
	idx, ok := m.indexes[handle.Name]
	if !ok {
		return fmt.Errorf("index %s: %w", handle.Name, domain.ErrNotFound)
	}
	m.upsertBatches = append(m.upsertBatches, len(records))
	idx.textField = textField
	idx.namespaces[namespace] = append(idx.namespaces[namespace], records...)
	return nil
}

func (m *MockVectorIndex) Search(ctx context.Context, handle *domain.IndexHandle, query domain.SearchQuery, fields []string) (*driven.RawSearchResponse, error) {
	m.mu.Lock()
	m.searches = append(m.searches, query)
	m.mu.Unlock()

	if m.SearchFn != nil {
		return m.SearchFn(query)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	idx, ok := m.indexes[handle.Name]
	if !ok {
		return nil, fmt.Errorf("index %s: %w", handle.Name, domain.ErrNotFound)
	}

	terms := tokens(query.Text)
	hits := []driven.RawHit{}
	if len(terms) == 0 {
		return &driven.RawSearchResponse{Result: &driven.RawSearchResult{Hits: hits}}, nil
	}
	for _, rec := range idx.namespaces[query.Namespace] {
		words := make(map[string]bool)
		for _, w := range tokens(rec.Text) {
			words[w] = true
		}
		matched := 0
		for _, term := range terms {
			if words[term] {
				matched++
			}
		}
		if matched == 0 {
			continue
		}
		hits = append(hits, driven.RawHit{
			ID:     rec.ID,
			Score:  float64(matched) / float64(len(terms)),
			Fields: map[string]any{idx.textField: rec.Text},
		})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if query.TopK > 0 && len(hits) > query.TopK {
		hits = hits[:query.TopK]
	}
	return &driven.RawSearchResponse{Result: &driven.RawSearchResult{Hits: hits}}, nil
}

func (m *MockVectorIndex) NamespaceRecordCount(ctx context.Context, handle *domain.IndexHandle, namespace string) (int, error) {
	m.mu.Lock()
	idx, ok := m.indexes[handle.Name]
	actual := 0
	if ok {
		actual = len(idx.namespaces[namespace])
	}
	m.mu.Unlock()

	if !ok {
		return 0, fmt.Errorf("index %s: %w", handle.Name, domain.ErrNotFound)
	}
	if m.CountFn != nil {
		return m.CountFn(namespace, actual)
	}
	return actual, nil
}

func (m *MockVectorIndex) HealthCheck(ctx context.Context) error {
	return m.HealthErr
}

// Helper methods for testing

// SeedIndex registers an existing, ready index with records
func (m *MockVectorIndex) SeedIndex(name, namespace, textField string, records []domain.PostRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.indexes[name] = &mockIndex{
		desc: domain.IndexDescription{
			Name:  name,
			Host:  name + ".svc.mock.pinecone.io",
			Ready: true,
			State: "Ready",
		},
		textField:  textField,
		namespaces: map[string][]domain.PostRecord{namespace: records},
		describes:  m.NotReadyDescribes,
	}
}

// CreateCount returns how many CreateIndexForModel calls were made
func (m *MockVectorIndex) CreateCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creates
}

// UpsertBatches returns the size of every upsert call in order
func (m *MockVectorIndex) UpsertBatches() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int, len(m.upsertBatches))
	copy(out, m.upsertBatches)
	return out
}

// Records returns the records stored in a namespace
func (m *MockVectorIndex) Records(name, namespace string) []domain.PostRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, ok := m.indexes[name]
	if !ok {
		return nil
	}
	return append([]domain.PostRecord(nil), idx.namespaces[namespace]...)
}

// Searches returns every query received
func (m *MockVectorIndex) Searches() []domain.SearchQuery {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.SearchQuery(nil), m.searches...)
}

// tokens lowercases text and splits it into letter/digit runs
func tokens(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
