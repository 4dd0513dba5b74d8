package corpus

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/custodia-labs/persona-core/internal/core/domain"
	"github.com/custodia-labs/persona-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.CorpusSource = (*CSVSource)(nil)

// CSVSource reads a CSV file whose first row names the columns
type CSVSource struct {
	path string
}

// NewCSVSource creates a CSV corpus source
func NewCSVSource(path string) *CSVSource {
	return &CSVSource{path: path}
}

// Load reads every row. Short rows are padded so each has len(Columns) cells.
func (s *CSVSource) Load(ctx context.Context) (*domain.Table, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open corpus: %w", err)
	}
	defer f.Close()

	return readCSV(ctx, f)
}

// Describe returns the file path
func (s *CSVSource) Describe() string {
	return "csv:" + s.path
}

func readCSV(ctx context.Context, r io.Reader) (*domain.Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return &domain.Table{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	// Spreadsheet exports often carry a BOM on the first column name
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	table := &domain.Table{Columns: header}
	for n := 1; ; n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv record %d: %w", n, err)
		}
		table.Rows = append(table.Rows, fitRow(record, len(header)))
	}
	return table, nil
}

func fitRow(record []string, width int) []string {
	if len(record) == width {
		return record
	}
	row := make([]string, width)
	copy(row, record)
	return row
}
