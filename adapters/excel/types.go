package excel

import (
	"strings"

	"abstkit/internal/errors"
)

// Row represents a row of raw spreadsheet data as header → cell pairs
type Row map[string]string

// Table represents a complete sheet or CSV file
type Table struct {
	Source  string // file the table was read from
	Headers []string
	Rows    []Row
}

// NewTable creates an empty table with the given headers
func NewTable(source string, headers ...string) *Table {
	return &Table{Source: source, Headers: append([]string(nil), headers...)}
}

// HasColumn reports whether the header exists
func (t *Table) HasColumn(name string) bool {
	for _, h := range t.Headers {
		if h == name {
			return true
		}
	}
	return false
}

// RequireColumns fails with MissingColumn for the first absent header
func (t *Table) RequireColumns(columns ...string) error {
	for _, col := range columns {
		if !t.HasColumn(col) {
			return errors.MissingColumn(t.Source, col)
		}
	}
	return nil
}

// Column returns every cell of a column, missing cells as ""
func (t *Table) Column(name string) []string {
	values := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		values[i] = row[name]
	}
	return values
}

// NonEmpty returns the non-blank cells of a column in row order
func (t *Table) NonEmpty(name string) []string {
	var values []string
	for _, row := range t.Rows {
		if v := row[name]; strings.TrimSpace(v) != "" {
			values = append(values, v)
		}
	}
	return values
}

// Append adds a row built from values in header order
func (t *Table) Append(values ...string) {
	row := make(Row, len(t.Headers))
	for i, h := range t.Headers {
		if i < len(values) {
			row[h] = values[i]
		}
	}
	t.Rows = append(t.Rows, row)
}

// AddColumn appends a header if it is not present yet
func (t *Table) AddColumn(name string) {
	if !t.HasColumn(name) {
		t.Headers = append(t.Headers, name)
	}
}

// InsertColumnsAfter places new columns right after an existing one. Names
// already present are left where they are; an unknown anchor appends.
func (t *Table) InsertColumnsAfter(after string, names ...string) {
	var added []string
	for _, n := range names {
		if !t.HasColumn(n) {
			added = append(added, n)
		}
	}
	if len(added) == 0 {
		return
	}
	pos := len(t.Headers)
	for i, h := range t.Headers {
		if h == after {
			pos = i + 1
			break
		}
	}
	headers := make([]string, 0, len(t.Headers)+len(added))
	headers = append(headers, t.Headers[:pos]...)
	headers = append(headers, added...)
	t.Headers = append(headers, t.Headers[pos:]...)
}

// Values returns a row's cells in header order
func (t *Table) Values(row Row) []string {
	values := make([]string, len(t.Headers))
	for i, h := range t.Headers {
		values[i] = row[h]
	}
	return values
}

// Records returns all rows in header order, without the header
func (t *Table) Records() [][]string {
	records := make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		records[i] = t.Values(row)
	}
	return records
}
