package chart

import (
	"os"
	"path/filepath"
	"testing"

	"abstkit/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertPNG(t *testing.T, path string) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Greater(t, len(data), 8)
	assert.Equal(t, "\x89PNG", string(data[:4]))
}

func TestLogLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "zipf.png")
	require.NoError(t, LogLog(path, "Zipf", "rank", "frequency", []float64{1, 2, 3, 0}, []float64{100, 50, 33, 10}))
	assertPNG(t, path)

	err := LogLog(path, "", "", "", []float64{1}, []float64{1, 2})
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
	err = LogLog(path, "", "", "", []float64{0}, []float64{0})
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
}

func TestBars(t *testing.T) {
	dir := t.TempDir()
	rank := filepath.Join(dir, "rank.png")
	require.NoError(t, RankBars(rank, "ranking", []float64{5, 3, 1}))
	assertPNG(t, rank)

	labels := filepath.Join(dir, "labels.png")
	require.NoError(t, LabelBars(labels, "labels", []string{"friend", "family"}, []int{4, 2}))
	assertPNG(t, labels)

	assert.Error(t, LabelBars(labels, "", []string{"a"}, nil))
	assert.Error(t, RankBars(rank, "", nil))
}

func TestRegisterFont_Missing(t *testing.T) {
	assert.Error(t, RegisterFont(filepath.Join(t.TempDir(), "none.ttf")))

	bad := filepath.Join(t.TempDir(), "bad.ttf")
	require.NoError(t, os.WriteFile(bad, []byte("not a font"), 0o644))
	assert.Error(t, RegisterFont(bad))
}
