package termfreq

import (
	"os"
	"path/filepath"
	"testing"

	"abstkit/internal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCount(t *testing.T) {
	entries := Count([]string{"免疫", "がん", "免疫", "細胞", "がん", "免疫", "遺伝子"})

	require.Len(t, entries, 4)
	assert.Equal(t, Entry{Rank: 1, Term: "免疫", Count: 3}, entries[0])
	assert.Equal(t, Entry{Rank: 2, Term: "がん", Count: 2}, entries[1])
	// ties keep first appearance
	assert.Equal(t, "細胞", entries[2].Term)
	assert.Equal(t, "遺伝子", entries[3].Term)
	assert.Equal(t, 4, entries[3].Rank)
}

func TestParseTerms(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, ParseTerms(" a, ,b,\nc,"))
	assert.Empty(t, ParseTerms(""))
}

func TestMergeAndRanking(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.csv"), []byte("がん,免疫,がん"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.csv"), []byte("\ufeff免疫, がん"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	res, err := Merge(dir, internal.NewNopLogger())
	require.NoError(t, err)
	assert.Len(t, res.Files, 2)
	assert.Equal(t, []string{"がん", "免疫", "がん", "免疫", "がん"}, res.Terms)
	assert.Equal(t, "がん", res.Ranking[0].Term)
	assert.Equal(t, 3, res.Ranking[0].Count)

	path := filepath.Join(dir, "freq.out")
	require.NoError(t, SaveRanking(path, res.Ranking))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "\ufeff順位,単語,出現回数\n1,がん,3\n2,免疫,2\n", string(data))

	back, err := ReadRanking(path)
	require.NoError(t, err)
	assert.Equal(t, res.Ranking, back)

	combined := filepath.Join(dir, "combined.out")
	require.NoError(t, WriteCombined(combined, res.Terms))
	terms, err := ReadTerms(combined)
	require.NoError(t, err)
	assert.Equal(t, res.Terms, terms)
}

func TestTop(t *testing.T) {
	entries := Count([]string{"a", "b", "c"})
	assert.Len(t, Top(entries, 2), 2)
	assert.Len(t, Top(entries, 0), 3)
	assert.Equal(t, []float64{1, 1}, Counts(Top(entries, 2)))
}
