package domain

// PostRecord is one retrievable historical post
type PostRecord struct {
	ID   string `json:"id"`   // Stable, derived from the source row
	Text string `json:"text"` // Post body
}

// Table is a loaded tabular dataset. Every row has len(Columns) cells.
type Table struct {
	Columns []string
	Rows    [][]string
}

// ColumnIndex returns the position of the named column, or -1 if absent
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Len returns the number of data rows
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// CorpusOptions selects the columns used to build post records
type CorpusOptions struct {
	TextColumn string `yaml:"text_column" json:"text_column"`
	IDColumn   string `yaml:"id_column" json:"id_column"` // Falls back to row position when absent from the table
}

// DefaultCorpusOptions matches the public tweet dataset layout
func DefaultCorpusOptions() CorpusOptions {
	return CorpusOptions{
		TextColumn: "Tweet-text",
		IDColumn:   "index",
	}
}
