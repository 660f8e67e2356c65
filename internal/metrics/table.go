package metrics

import (
	"strconv"
	"strings"

	"abstkit/adapters/excel"
)

// Default column names of a scoring sheet
const (
	ReferenceColumn = "人手修正"
	IDColumn        = "ID"
)

// Tokenizer splits text into the tokens the metrics compare
type Tokenizer func(string) []string

// candidates are every column other than the reference and ID
func candidates(t *excel.Table) []string {
	var cols []string
	for _, h := range t.Headers {
		if h != ReferenceColumn && h != IDColumn {
			cols = append(cols, h)
		}
	}
	return cols
}

func scoredRows(t *excel.Table) []excel.Row {
	var rows []excel.Row
	for _, row := range t.Rows {
		if strings.TrimSpace(row[ReferenceColumn]) != "" {
			rows = append(rows, row)
		}
	}
	return rows
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// BLEUTable scores every candidate column against 人手修正. Rows without a
// reference are dropped and blank candidates leave a blank cell.
func BLEUTable(t *excel.Table, tokenize Tokenizer) (*excel.Table, error) {
	if err := t.RequireColumns(ReferenceColumn, IDColumn); err != nil {
		return nil, err
	}
	cols := candidates(t)
	headers := []string{IDColumn}
	for _, c := range cols {
		headers = append(headers, "BLEUScore_"+c)
	}

	out := excel.NewTable(t.Source, headers...)
	for _, row := range scoredRows(t) {
		ref := [][]string{tokenize(row[ReferenceColumn])}
		rec := excel.Row{IDColumn: row[IDColumn]}
		for _, c := range cols {
			if strings.TrimSpace(row[c]) == "" {
				continue
			}
			rec["BLEUScore_"+c] = formatScore(SentenceBLEU(ref, tokenize(row[c])))
		}
		out.Rows = append(out.Rows, rec)
	}
	return out, nil
}

// RougeTable writes ROUGE1, ROUGE2 and ROUGEL precision, recall and F1 per
// candidate column, under the same row rules as BLEUTable
func RougeTable(t *excel.Table, tokenize Tokenizer) (*excel.Table, error) {
	if err := t.RequireColumns(ReferenceColumn, IDColumn); err != nil {
		return nil, err
	}
	kinds := []string{"ROUGE1", "ROUGE2", "ROUGEL"}
	cols := candidates(t)
	headers := []string{IDColumn}
	for _, c := range cols {
		for _, k := range kinds {
			headers = append(headers, k+"_P_"+c, k+"_R_"+c, k+"_F1_"+c)
		}
	}

	out := excel.NewTable(t.Source, headers...)
	for _, row := range scoredRows(t) {
		ref := tokenize(row[ReferenceColumn])
		rec := excel.Row{IDColumn: row[IDColumn]}
		for _, c := range cols {
			if strings.TrimSpace(row[c]) == "" {
				continue
			}
			cand := tokenize(row[c])
			scores := []Score{RougeN(ref, cand, 1), RougeN(ref, cand, 2), RougeL(ref, cand)}
			for i, k := range kinds {
				rec[k+"_P_"+c] = formatScore(scores[i].Precision)
				rec[k+"_R_"+c] = formatScore(scores[i].Recall)
				rec[k+"_F1_"+c] = formatScore(scores[i].F1)
			}
		}
		out.Rows = append(out.Rows, rec)
	}
	return out, nil
}
