package corpus

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/persona-core/internal/core/domain"
	"github.com/custodia-labs/persona-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.CorpusSource = (*SQLiteSource)(nil)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLiteSource reads every row of one table in a SQLite database
type SQLiteSource struct {
	path  string
	table string
}

// NewSQLiteSource creates a SQLite corpus source.
// The table name is interpolated into the query, so it must be a plain identifier.
func NewSQLiteSource(path, table string) (*SQLiteSource, error) {
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("%w: invalid table name %q", domain.ErrInvalidInput, table)
	}
	return &SQLiteSource{path: path, table: table}, nil
}

// Load reads the table in rowid order. NULL cells become empty strings.
func (s *SQLiteSource) Load(ctx context.Context) (*domain.Table, error) {
	db, err := sql.Open("sqlite", "file:"+s.path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, "SELECT * FROM "+s.table+" ORDER BY rowid")
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", s.table, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	table := &domain.Table{Columns: columns}
	values := make([]any, len(columns))
	dest := make([]any, len(columns))
	for i := range values {
		dest[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", s.table, err)
		}
		row := make([]string, len(columns))
		for i, v := range values {
			row[i] = cellString(v)
		}
		table.Rows = append(table.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return table, nil
}

// Describe returns the database path and table
func (s *SQLiteSource) Describe() string {
	return "sqlite:" + s.path + "#" + s.table
}

func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}
