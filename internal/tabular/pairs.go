package tabular

import (
	"fmt"
	"strings"

	"abstkit/adapters/excel"
	"abstkit/internal/errors"
)

// SplitSentences splits on 。 and re-appends it to each non-blank part
func SplitSentences(text string) []string {
	var out []string
	for _, s := range strings.Split(text, "。") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s+"。")
		}
	}
	return out
}

// ResolveColumn finds a header ignoring case and surrounding space
func ResolveColumn(t *excel.Table, name string) (string, error) {
	want := strings.TrimSpace(name)
	for _, h := range t.Headers {
		if strings.EqualFold(strings.TrimSpace(h), want) {
			return h, nil
		}
	}
	return "", errors.MissingColumn(t.Source, name)
}

// PairSentences aligns the sentences of two text columns row by row. Each
// output row is {id}-{n}; the shorter side is padded with blanks.
func PairSentences(t *excel.Table, idCol, leftCol, rightCol string) (*excel.Table, error) {
	cols := make([]string, 3)
	for i, name := range []string{idCol, leftCol, rightCol} {
		h, err := ResolveColumn(t, name)
		if err != nil {
			return nil, err
		}
		cols[i] = h
	}
	id, left, right := cols[0], cols[1], cols[2]

	out := excel.NewTable(t.Source, id, left, right)
	for _, row := range t.Rows {
		ls := SplitSentences(row[left])
		rs := SplitSentences(row[right])
		n := len(ls)
		if len(rs) > n {
			n = len(rs)
		}
		for i := 0; i < n; i++ {
			out.Append(fmt.Sprintf("%s-%d", strings.TrimSpace(row[id]), i+1), at(ls, i), at(rs, i))
		}
	}
	return out, nil
}

func at(s []string, i int) string {
	if i < len(s) {
		return s[i]
	}
	return ""
}
