package tabular

import (
	"fmt"
	"path/filepath"
	"strings"

	"abstkit/adapters/excel"
)

var safeNameReplacer = strings.NewReplacer("/", "_", "（", "(", "）", ")")

// SafeName makes a group value usable in a file name
func SafeName(v string) string {
	return safeNameReplacer.Replace(v)
}

// FlattenNewlines replaces CR and LF inside every cell with a space
func FlattenNewlines(t *excel.Table) {
	r := strings.NewReplacer("\r", " ", "\n", " ")
	for _, row := range t.Rows {
		for k, v := range row {
			row[k] = r.Replace(v)
		}
	}
}

// Group splits rows by the value of column, preserving first-seen group order
func Group(t *excel.Table, column string) ([]string, map[string]*excel.Table, error) {
	if err := t.RequireColumns(column); err != nil {
		return nil, nil, err
	}
	var keys []string
	groups := make(map[string]*excel.Table)
	for _, row := range t.Rows {
		key := row[column]
		g, ok := groups[key]
		if !ok {
			g = excel.NewTable(t.Source, t.Headers...)
			groups[key] = g
			keys = append(keys, key)
		}
		g.Rows = append(g.Rows, row)
	}
	return keys, groups, nil
}

// Split writes one CSV per value of column as {prefix}_{safe}.csv and returns
// the written paths. Rows with a blank group value are dropped.
func Split(t *excel.Table, column, outDir, prefix string) ([]string, error) {
	FlattenNewlines(t)
	keys, groups, err := Group(t, column)
	if err != nil {
		return nil, err
	}

	var written []string
	for _, key := range keys {
		if strings.TrimSpace(key) == "" {
			continue
		}
		path := filepath.Join(outDir, fmt.Sprintf("%s_%s.csv", prefix, SafeName(key)))
		if err := excel.WriteTable(path, groups[key]); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}
