package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/custodia-labs/persona-core/internal/core/domain"
	"github.com/custodia-labs/persona-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.IndexStateStore = (*IndexStateStore)(nil)

// IndexStateStore implements driven.IndexStateStore using PostgreSQL
type IndexStateStore struct {
	db *DB
}

// NewIndexStateStore creates a new IndexStateStore
func NewIndexStateStore(db *DB) *IndexStateStore {
	return &IndexStateStore{db: db}
}

const indexStateColumns = `name, namespace, embedding_model, host, records_total, records_uploaded, upload_mode, created_at`

// Save creates or updates the state of an index
func (s *IndexStateStore) Save(ctx context.Context, state *domain.IndexState) error {
	query := `
		INSERT INTO index_states (` + indexStateColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (name) DO UPDATE SET
			namespace = EXCLUDED.namespace,
			embedding_model = EXCLUDED.embedding_model,
			host = EXCLUDED.host,
			records_total = EXCLUDED.records_total,
			records_uploaded = EXCLUDED.records_uploaded,
			upload_mode = EXCLUDED.upload_mode,
			created_at = EXCLUDED.created_at
	`

	_, err := s.db.ExecContext(ctx, query,
		state.Name,
		state.Namespace,
		state.EmbeddingModel,
		state.Host,
		state.RecordsTotal,
		state.RecordsUploaded,
		string(state.UploadMode),
		state.CreatedAt,
	)
	return err
}

// Get retrieves the state of an index, or domain.ErrNotFound
func (s *IndexStateStore) Get(ctx context.Context, name string) (*domain.IndexState, error) {
	query := `SELECT ` + indexStateColumns + ` FROM index_states WHERE name = $1`

	state, err := scanIndexState(s.db.QueryRowContext(ctx, query, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return state, nil
}

// List retrieves all recorded indexes, newest first
func (s *IndexStateStore) List(ctx context.Context) ([]*domain.IndexState, error) {
	query := `SELECT ` + indexStateColumns + ` FROM index_states ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var states []*domain.IndexState
	for rows.Next() {
		state, err := scanIndexState(rows)
		if err != nil {
			return nil, err
		}
		states = append(states, state)
	}
	return states, rows.Err()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanIndexState(row rowScanner) (*domain.IndexState, error) {
	var state domain.IndexState
	var uploadMode string

	err := row.Scan(
		&state.Name,
		&state.Namespace,
		&state.EmbeddingModel,
		&state.Host,
		&state.RecordsTotal,
		&state.RecordsUploaded,
		&uploadMode,
		&state.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	state.UploadMode = domain.UploadMode(uploadMode)
	return &state, nil
}
