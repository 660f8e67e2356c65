package similarity

import (
	"testing"

	"abstkit/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"same direction", []float64{1, 2}, []float64{2, 4}, 1},
		{"orthogonal", []float64{1, 0}, []float64{0, 3}, 0},
		{"opposite", []float64{1, 1}, []float64{-1, -1}, -1},
		{"zero vector", []float64{0, 0}, []float64{1, 1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Cosine(tt.a, tt.b)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}

	_, err := Cosine([]float64{1}, []float64{1, 2})
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
}

func TestNearest(t *testing.T) {
	idx, score, err := Nearest([]float64{1, 0}, [][]float64{{0, 1}, {1, 1}, {2, 0}, {3, 0}})
	require.NoError(t, err)
	assert.Equal(t, 2, idx, "first of the tied candidates")
	assert.InDelta(t, 1, score, 1e-12)

	_, _, err = Nearest([]float64{1}, nil)
	assert.Error(t, err)
	_, _, err = Nearest([]float64{1}, [][]float64{{1, 2}})
	assert.Error(t, err)
}

func TestWordDiff(t *testing.T) {
	got := WordDiff("本研究 では がん を 解析 した", "本研究 では 免疫 を 解析 し 評価 した")
	assert.Equal(t, "  本研究\n  では\n- がん\n+ 免疫\n  を\n  解析\n+ し\n+ 評価\n  した", got)
	assert.Equal(t, "", WordDiff("", ""))
	assert.Equal(t, "+ a", WordDiff("", "a"))
}
