package services

import (
	"context"
	"fmt"
	"strconv"

	"github.com/custodia-labs/persona-core/internal/core/domain"
	"github.com/custodia-labs/persona-core/internal/core/ports/driven"
)

// PrepareRecords turns a loaded table into post records, one per row in row order.
// The record ID comes from opts.IDColumn when the table has it, otherwise from the
// zero-based row position. No filtering or normalisation is applied to the text.
func PrepareRecords(table *domain.Table, opts domain.CorpusOptions) ([]domain.PostRecord, error) {
	if table == nil {
		return []domain.PostRecord{}, nil
	}

	textCol := table.ColumnIndex(opts.TextColumn)
	if textCol < 0 {
		return nil, fmt.Errorf("%w: %q", domain.ErrColumnNotFound, opts.TextColumn)
	}

	idCol := -1
	if opts.IDColumn != "" {
		idCol = table.ColumnIndex(opts.IDColumn)
	}

	records := make([]domain.PostRecord, 0, len(table.Rows))
	seen := make(map[string]int, len(table.Rows))
	for i, row := range table.Rows {
		id := strconv.Itoa(i)
		if idCol >= 0 {
			id = cell(row, idCol)
		}
		if prev, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: %q at rows %d and %d", domain.ErrDuplicateID, id, prev, i)
		}
		seen[id] = i

		records = append(records, domain.PostRecord{
			ID:   id,
			Text: cell(row, textCol),
		})
	}

	return records, nil
}

// LoadCorpus reads the source table and prepares records from it
func LoadCorpus(ctx context.Context, source driven.CorpusSource, opts domain.CorpusOptions) ([]domain.PostRecord, error) {
	table, err := source.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load corpus from %s: %w", source.Describe(), err)
	}
	return PrepareRecords(table, opts)
}

// cell tolerates short rows
func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}
