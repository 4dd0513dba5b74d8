// Package corpus loads the historical post table from local files.
package corpus

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/persona-core/internal/core/ports/driven"
)

// DefaultSQLiteTable is read when a SQLite corpus is given without a table name
const DefaultSQLiteTable = "posts"

// NewSource picks a loader from the file extension.
// .csv files are read as CSV; .db, .sqlite and .sqlite3 files as SQLite.
func NewSource(path, table string) (driven.CorpusSource, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return NewCSVSource(path), nil
	case ".db", ".sqlite", ".sqlite3":
		if table == "" {
			table = DefaultSQLiteTable
		}
		return NewSQLiteSource(path, table)
	default:
		return nil, fmt.Errorf("unsupported corpus file %q: expected .csv, .db, .sqlite or .sqlite3", path)
	}
}
