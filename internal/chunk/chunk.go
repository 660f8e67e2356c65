package chunk

import (
	"sort"
	"strings"

	"abstkit/adapters/excel"
	"abstkit/ports"
)

// Chunk is a run of values that fits one request
type Chunk struct {
	Items  []string
	Tokens int
}

// Text joins the items one per line
func (c Chunk) Text() string {
	return strings.Join(c.Items, "\n")
}

// Pack groups values in order, starting a new chunk whenever the next value
// would push the running token count past max. A value larger than max gets
// a chunk of its own.
func Pack(values []string, counter ports.TokenCounter, max int) []Chunk {
	var chunks []Chunk
	var current Chunk
	for _, v := range values {
		n := counter.Count(v)
		if len(current.Items) > 0 && current.Tokens+n > max {
			chunks = append(chunks, current)
			current = Chunk{}
		}
		current.Items = append(current.Items, v)
		current.Tokens += n
	}
	if len(current.Items) > 0 {
		chunks = append(chunks, current)
	}
	return chunks
}

// UniqueNonBlank drops blank values and later duplicates, keeping first-seen order
func UniqueNonBlank(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// CombineColumns joins the non-blank target cells of each row with a space and
// returns the distinct results sorted
func CombineColumns(t *excel.Table, columns []string) ([]string, error) {
	if err := t.RequireColumns(columns...); err != nil {
		return nil, err
	}
	set := make(map[string]struct{})
	for _, row := range t.Rows {
		var parts []string
		for _, col := range columns {
			if v := strings.TrimSpace(row[col]); v != "" {
				parts = append(parts, v)
			}
		}
		if len(parts) > 0 {
			set[strings.Join(parts, " ")] = struct{}{}
		}
	}
	combined := make([]string, 0, len(set))
	for v := range set {
		combined = append(combined, v)
	}
	sort.Strings(combined)
	return combined, nil
}
