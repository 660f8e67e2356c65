package app

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"abstkit/adapters/excel"
	"abstkit/internal"
	"abstkit/internal/errors"
	"abstkit/internal/termfreq"
)

// LabelCountHeaders is the header row of a label count CSV
var LabelCountHeaders = []string{"分類ラベル", "件数"}

// FileLabelCounts are the label counts of one classification CSV
type FileLabelCounts struct {
	File    string
	Entries []termfreq.Entry
}

// LabelSummary holds per-file and overall label counts
type LabelSummary struct {
	Files []FileLabelCounts
	Total []termfreq.Entry
}

// CellLabels splits a 分類ラベル cell on "," and drops blanks and repeats
func CellLabels(cell string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, l := range strings.Split(cell, ",") {
		l = strings.TrimSpace(l)
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return out
}

// CountLabels counts how many cells carry each label
func CountLabels(cells []string) []termfreq.Entry {
	var all []string
	for _, c := range cells {
		all = append(all, CellLabels(c)...)
	}
	return termfreq.Count(all)
}

// CountLabelFiles counts labels in every CSV of dir whose name contains
// keyword, in name order. Files without a 分類ラベル column are skipped.
func CountLabelFiles(dir, keyword string) (*LabelSummary, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", dir)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".csv") && strings.Contains(e.Name(), keyword) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	if len(names) == 0 {
		return nil, errors.NotFound("CSV files containing " + keyword)
	}

	summary := &LabelSummary{}
	var all []string
	for _, name := range names {
		t, err := excel.ReadTable(filepath.Join(dir, name))
		if err != nil {
			internal.DefaultLogger.Warn("[Labels] skipping %s: %v", name, err)
			continue
		}
		if !t.HasColumn(ClassifyHeaders[1]) {
			internal.DefaultLogger.Warn("[Labels] %s has no %s column, skipping", name, ClassifyHeaders[1])
			continue
		}
		cells := t.Column(ClassifyHeaders[1])
		summary.Files = append(summary.Files, FileLabelCounts{File: name, Entries: CountLabels(cells)})
		for _, c := range cells {
			all = append(all, CellLabels(c)...)
		}
	}
	summary.Total = termfreq.Count(all)
	return summary, nil
}

func labelRows(entries []termfreq.Entry) [][]string {
	rows := make([][]string, len(entries))
	for i, e := range entries {
		rows[i] = []string{e.Term, strconv.Itoa(e.Count)}
	}
	return rows
}

// Matrix is one row per file and one column per label in overall order
func (s *LabelSummary) Matrix() ([]string, [][]string) {
	headers := []string{"ファイル名"}
	for _, e := range s.Total {
		headers = append(headers, e.Term)
	}
	rows := make([][]string, len(s.Files))
	for i, f := range s.Files {
		counts := make(map[string]int, len(f.Entries))
		for _, e := range f.Entries {
			counts[e.Term] = e.Count
		}
		row := []string{f.File}
		for _, e := range s.Total {
			row = append(row, strconv.Itoa(counts[e.Term]))
		}
		rows[i] = row
	}
	return headers, rows
}

// LabelCountFileName is {base}_分類ラベル集計.csv
func LabelCountFileName(file string) string {
	return strings.TrimSuffix(file, filepath.Ext(file)) + "_分類ラベル集計.csv"
}

// LabelChartFileName is {base}_分類ラベルグラフ.png
func LabelChartFileName(file string) string {
	return strings.TrimSuffix(file, filepath.Ext(file)) + "_分類ラベルグラフ.png"
}

// Overall output names
const (
	TotalLabelCountFile = "全体_分類ラベル集計.csv"
	TotalLabelChartFile = "全体_分類ラベルグラフ.png"
	LabelMatrixFile     = "ファイル別_分類ラベル推移.csv"
)

// Write saves the per-file, overall and matrix CSVs into outDir
func (s *LabelSummary) Write(outDir string) ([]string, error) {
	var written []string
	for _, f := range s.Files {
		path := filepath.Join(outDir, LabelCountFileName(f.File))
		if err := excel.WriteCSV(path, LabelCountHeaders, labelRows(f.Entries)); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	total := filepath.Join(outDir, TotalLabelCountFile)
	if err := excel.WriteCSV(total, LabelCountHeaders, labelRows(s.Total)); err != nil {
		return written, err
	}
	written = append(written, total)

	headers, rows := s.Matrix()
	matrix := filepath.Join(outDir, LabelMatrixFile)
	if err := excel.WriteCSV(matrix, headers, rows); err != nil {
		return written, err
	}
	return append(written, matrix), nil
}

// Bars returns labels and counts for charting
func Bars(entries []termfreq.Entry) ([]string, []int) {
	labels := make([]string, len(entries))
	counts := make([]int, len(entries))
	for i, e := range entries {
		labels[i] = e.Term
		counts[i] = e.Count
	}
	return labels, counts
}
