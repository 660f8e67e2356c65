package tabular

import (
	"strings"

	"abstkit/adapters/excel"
)

// ValueRule matches rows whose column value is one of Values
type ValueRule struct {
	Column string
	Values []string
}

func (r ValueRule) matches(row excel.Row) bool {
	v := strings.TrimSpace(row[r.Column])
	for _, want := range r.Values {
		if v == want {
			return true
		}
	}
	return false
}

// ContainsRule matches rows whose column contains Substring; blank never matches
type ContainsRule struct {
	Column    string
	Substring string
}

// FilterOptions describes an explode-then-filter pass over a table
type FilterOptions struct {
	ExplodeColumn string // split on Separator into one row per part
	Separator     string
	Exclude       []ValueRule
	Include       []ValueRule
	Contains      []ContainsRule
}

// ExpressionFilter is the symptom-dictionary filter: one row per 正規形,
// no -1/ERR placeholders, a graded 正規形_flag and an R in TREE
func ExpressionFilter() FilterOptions {
	placeholders := []string{"-1", "ERR"}
	return FilterOptions{
		ExplodeColumn: "正規形",
		Separator:     ";",
		Exclude: []ValueRule{
			{Column: "出現形", Values: placeholders},
			{Column: "正規形", Values: placeholders},
		},
		Include:  []ValueRule{{Column: "正規形_flag", Values: []string{"S", "A", "B", "C"}}},
		Contains: []ContainsRule{{Column: "TREE", Substring: "R"}},
	}
}

// Filter applies opts and returns a new table with the same headers
func Filter(t *excel.Table, opts FilterOptions) (*excel.Table, error) {
	var cols []string
	if opts.ExplodeColumn != "" {
		cols = append(cols, opts.ExplodeColumn)
	}
	for _, r := range opts.Exclude {
		cols = append(cols, r.Column)
	}
	for _, r := range opts.Include {
		cols = append(cols, r.Column)
	}
	for _, r := range opts.Contains {
		cols = append(cols, r.Column)
	}
	if err := t.RequireColumns(cols...); err != nil {
		return nil, err
	}

	out := excel.NewTable(t.Source, t.Headers...)
	for _, row := range Explode(t, opts.ExplodeColumn, opts.Separator).Rows {
		if keep(row, opts) {
			out.Rows = append(out.Rows, row)
		}
	}
	return out, nil
}

func keep(row excel.Row, opts FilterOptions) bool {
	for _, r := range opts.Exclude {
		if r.matches(row) {
			return false
		}
	}
	for _, r := range opts.Include {
		if !r.matches(row) {
			return false
		}
	}
	for _, r := range opts.Contains {
		v := row[r.Column]
		if strings.TrimSpace(v) == "" || !strings.Contains(v, r.Substring) {
			return false
		}
	}
	return true
}

// Explode repeats each row once per sep-separated part of column, trimmed
func Explode(t *excel.Table, column, sep string) *excel.Table {
	if column == "" || sep == "" {
		return t
	}
	out := excel.NewTable(t.Source, t.Headers...)
	for _, row := range t.Rows {
		for _, part := range strings.Split(row[column], sep) {
			copied := make(excel.Row, len(row))
			for k, v := range row {
				copied[k] = v
			}
			copied[column] = strings.TrimSpace(part)
			out.Rows = append(out.Rows, copied)
		}
	}
	return out
}
