package tabular

import (
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"abstkit/adapters/excel"
	"abstkit/internal"

	"github.com/montanaflynn/stats"
)

// ProfileHeaders is the header row of a column profile report
var ProfileHeaders = []string{
	"ファイル名", "列名", "レコード数", "存在数", "欠損値数", "欠損率（％）",
	"平均文字数", "標準偏差", "最短文字数", "中央値", "最長文字数",
}

// ColumnProfile summarises one column of one file
type ColumnProfile struct {
	File        string
	Column      string
	Records     int
	Present     int
	Missing     int
	MissingRate float64 // percent, one decimal
	MeanLen     float64
	StdDevLen   float64 // sample deviation; NaN below two records
	MinLen      float64
	MedianLen   float64
	MaxLen      float64
}

// Profile computes per-column presence and character-length statistics.
// Lengths count runes and a missing cell counts as zero.
func Profile(t *excel.Table) []ColumnProfile {
	file := strings.TrimSuffix(filepath.Base(t.Source), filepath.Ext(t.Source))
	n := len(t.Rows)

	profiles := make([]ColumnProfile, 0, len(t.Headers))
	for _, col := range t.Headers {
		p := ColumnProfile{File: file, Column: col, Records: n, StdDevLen: math.NaN()}
		lengths := make(stats.Float64Data, n)
		for i, row := range t.Rows {
			v := row[col]
			if strings.TrimSpace(v) == "" {
				p.Missing++
				continue
			}
			p.Present++
			lengths[i] = float64(utf8.RuneCountInString(v))
		}
		if n > 0 {
			p.MissingRate = math.Round(float64(p.Missing)/float64(n)*1000) / 10
			p.MeanLen, _ = lengths.Mean()
			p.MinLen, _ = lengths.Min()
			p.MedianLen, _ = lengths.Median()
			p.MaxLen, _ = lengths.Max()
		}
		if n > 1 {
			p.StdDevLen, _ = lengths.StandardDeviationSample()
		}
		profiles = append(profiles, p)
	}
	return profiles
}

// ProfileFiles reads and profiles each file; unreadable files are logged and skipped
func ProfileFiles(paths []string, logger *internal.Logger) []ColumnProfile {
	var all []ColumnProfile
	for _, p := range paths {
		t, err := excel.ReadTable(p)
		if err != nil {
			logger.Error("[Profile] %s: %v", p, err)
			continue
		}
		all = append(all, Profile(t)...)
		logger.Info("[Profile] processed %s", p)
	}
	return all
}

// Record renders the profile in ProfileHeaders order
func (p ColumnProfile) Record() []string {
	return []string{
		p.File, p.Column,
		strconv.Itoa(p.Records), strconv.Itoa(p.Present), strconv.Itoa(p.Missing),
		formatFloat(p.MissingRate),
		formatFloat(p.MeanLen), formatFloat(p.StdDevLen),
		formatFloat(p.MinLen), formatFloat(p.MedianLen), formatFloat(p.MaxLen),
	}
}

// ProfileRecords renders profiles as CSV rows
func ProfileRecords(profiles []ColumnProfile) [][]string {
	rows := make([][]string, len(profiles))
	for i, p := range profiles {
		rows[i] = p.Record()
	}
	return rows
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// MissingHeaders is the header row of a missing-value report
var MissingHeaders = []string{"ファイル名", "シート名", "列名", "欠損値数"}

// MissingCount is the number of blank cells in one sheet column
type MissingCount struct {
	File    string
	Sheet   string
	Column  string
	Missing int
}

// MissingCounts counts blank cells for every sheet of every workbook, reading
// at most rowLimit data rows per sheet. Unreadable files or sheets are logged
// and skipped.
func MissingCounts(paths []string, rowLimit int, logger *internal.Logger) []MissingCount {
	var out []MissingCount
	for _, p := range paths {
		reader := excel.NewDataReader(p)
		sheets, err := reader.SheetNames()
		if err != nil {
			logger.Warn("[Missing] failed to open %s: %v", p, err)
			continue
		}
		for _, sheet := range sheets {
			t, err := reader.ReadSheet(sheet, rowLimit)
			if err != nil {
				logger.Warn("[Missing] failed to read %s - %s: %v", p, sheet, err)
				continue
			}
			for _, col := range t.Headers {
				missing := len(t.Rows) - len(t.NonEmpty(col))
				out = append(out, MissingCount{File: filepath.Base(p), Sheet: sheet, Column: col, Missing: missing})
			}
		}
	}
	return out
}

// MissingRecords renders counts as CSV rows
func MissingRecords(counts []MissingCount) [][]string {
	rows := make([][]string, len(counts))
	for i, c := range counts {
		rows[i] = []string{c.File, c.Sheet, c.Column, strconv.Itoa(c.Missing)}
	}
	return rows
}
