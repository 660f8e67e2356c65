package tabular

import (
	"abstkit/adapters/excel"
	"abstkit/internal/errors"
)

// JoinType selects which unmatched rows survive a join
type JoinType string

const (
	InnerJoin JoinType = "inner"
	LeftJoin  JoinType = "left"
	OuterJoin JoinType = "outer"
)

// ParseJoinType maps a flag value; empty means inner
func ParseJoinType(s string) (JoinType, error) {
	switch JoinType(s) {
	case "", InnerJoin:
		return InnerJoin, nil
	case LeftJoin, OuterJoin:
		return JoinType(s), nil
	}
	return "", errors.InvalidInput("unknown join type " + s)
}

// Join merges two tables on key. Non-key columns present on both sides get
// _x and _y suffixes. Left rows keep their order, each followed by its right
// matches in right order; outer joins then append unmatched right rows.
func Join(left, right *excel.Table, key string, how JoinType) (*excel.Table, error) {
	if err := left.RequireColumns(key); err != nil {
		return nil, err
	}
	if err := right.RequireColumns(key); err != nil {
		return nil, err
	}

	leftNames, rightNames, headers := joinHeaders(left.Headers, right.Headers, key)
	out := excel.NewTable(left.Source, headers...)

	byKey := make(map[string][]int)
	for i, row := range right.Rows {
		byKey[row[key]] = append(byKey[row[key]], i)
	}
	matched := make([]bool, len(right.Rows))

	for _, l := range left.Rows {
		matches := byKey[l[key]]
		if len(matches) == 0 {
			if how == LeftJoin || how == OuterJoin {
				out.Rows = append(out.Rows, combine(l, nil, leftNames, rightNames))
			}
			continue
		}
		for _, i := range matches {
			matched[i] = true
			out.Rows = append(out.Rows, combine(l, right.Rows[i], leftNames, rightNames))
		}
	}

	if how == OuterJoin {
		for i, r := range right.Rows {
			if !matched[i] {
				row := combine(nil, r, leftNames, rightNames)
				row[key] = r[key]
				out.Rows = append(out.Rows, row)
			}
		}
	}
	return out, nil
}

func joinHeaders(left, right []string, key string) (map[string]string, map[string]string, []string) {
	inLeft := make(map[string]bool, len(left))
	for _, h := range left {
		inLeft[h] = true
	}
	inRight := make(map[string]bool, len(right))
	for _, h := range right {
		inRight[h] = true
	}

	leftNames := make(map[string]string)
	rightNames := make(map[string]string)
	var headers []string
	for _, h := range left {
		name := h
		if h != key && inRight[h] {
			name = h + "_x"
		}
		leftNames[h] = name
		headers = append(headers, name)
	}
	for _, h := range right {
		if h == key {
			continue
		}
		name := h
		if inLeft[h] {
			name = h + "_y"
		}
		rightNames[h] = name
		headers = append(headers, name)
	}
	return leftNames, rightNames, headers
}

func combine(l, r excel.Row, leftNames, rightNames map[string]string) excel.Row {
	row := make(excel.Row, len(leftNames)+len(rightNames))
	for h, name := range leftNames {
		row[name] = l[h]
	}
	for h, name := range rightNames {
		row[name] = r[h]
	}
	return row
}

// Concat stacks tables vertically; the header is the union of columns in
// first-seen order
func Concat(tables []*excel.Table) *excel.Table {
	out := excel.NewTable("")
	for _, t := range tables {
		for _, h := range t.Headers {
			out.AddColumn(h)
		}
		out.Rows = append(out.Rows, t.Rows...)
	}
	return out
}
