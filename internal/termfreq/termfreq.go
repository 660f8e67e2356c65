package termfreq

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"abstkit/adapters/excel"
	"abstkit/internal"
	"abstkit/internal/errors"
)

// Entry is one ranked term
type Entry struct {
	Rank  int
	Term  string
	Count int
}

// RankingHeaders is the header row of a ranking CSV
var RankingHeaders = []string{"順位", "単語", "出現回数"}

// ParseTerms splits comma-separated text into trimmed, non-blank terms
func ParseTerms(text string) []string {
	var terms []string
	for _, line := range strings.Split(text, "\n") {
		for _, t := range strings.Split(line, ",") {
			if t = strings.TrimSpace(t); t != "" {
				terms = append(terms, t)
			}
		}
	}
	return terms
}

// ReadTerms reads comma-separated term lists from files, in order
func ReadTerms(paths ...string) ([]string, error) {
	var terms []string
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read %s", p)
		}
		terms = append(terms, ParseTerms(strings.TrimPrefix(string(data), "\ufeff"))...)
	}
	return terms, nil
}

// Count ranks terms by frequency, most frequent first; ties keep first-seen order
func Count(terms []string) []Entry {
	index := make(map[string]int)
	var entries []Entry
	for _, t := range terms {
		if i, ok := index[t]; ok {
			entries[i].Count++
			continue
		}
		index[t] = len(entries)
		entries = append(entries, Entry{Term: t, Count: 1})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Count > entries[j].Count
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

// MergeResult is the outcome of merging a directory of term lists
type MergeResult struct {
	Files   []string
	Terms   []string
	Ranking []Entry
}

// Merge reads every *.csv in dir, skipping files that cannot be read, and
// ranks the combined terms
func Merge(dir string, logger *internal.Logger) (*MergeResult, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list %s", dir)
	}
	sort.Strings(files)

	res := &MergeResult{}
	for _, f := range files {
		terms, err := ReadTerms(f)
		if err != nil {
			logger.Warn("[TermFreq] failed to read %s: %v", f, err)
			continue
		}
		logger.Info("[TermFreq] read %s (%d terms)", f, len(terms))
		res.Files = append(res.Files, f)
		res.Terms = append(res.Terms, terms...)
	}
	res.Ranking = Count(res.Terms)
	return res, nil
}

// WriteCombined writes terms as one comma-joined line
func WriteCombined(path string, terms []string) error {
	if err := os.WriteFile(path, []byte(strings.Join(terms, ",")), 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return nil
}

// RankingRecords renders entries as 順位,単語,出現回数 rows
func RankingRecords(entries []Entry) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{strconv.Itoa(e.Rank), e.Term, strconv.Itoa(e.Count)})
	}
	return rows
}

// SaveRanking writes a BOM-prefixed ranking CSV to path
func SaveRanking(path string, entries []Entry) error {
	return excel.WriteCSV(path, RankingHeaders, RankingRecords(entries))
}

// ReadRanking reads a ranking CSV back, sorted by rank
func ReadRanking(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", path)
	}
	if len(records) == 0 {
		return nil, errors.InvalidInput(path + " is empty")
	}

	var entries []Entry
	for i, rec := range records[1:] {
		if len(rec) < 3 {
			continue
		}
		rank, err1 := strconv.Atoi(strings.TrimSpace(rec[0]))
		count, err2 := strconv.Atoi(strings.TrimSpace(rec[2]))
		if err1 != nil || err2 != nil {
			return nil, errors.InvalidInput("bad ranking row " + strconv.Itoa(i+2) + " in " + path)
		}
		entries = append(entries, Entry{Rank: rank, Term: rec[1], Count: count})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Rank < entries[j].Rank })
	return entries, nil
}

// Top returns at most n entries
func Top(entries []Entry, n int) []Entry {
	if n <= 0 || n >= len(entries) {
		return entries
	}
	return entries[:n]
}

// Counts extracts the count column
func Counts(entries []Entry) []float64 {
	out := make([]float64, len(entries))
	for i, e := range entries {
		out[i] = float64(e.Count)
	}
	return out
}
