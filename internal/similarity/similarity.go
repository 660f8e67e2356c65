// Package similarity compares generated text with the examples it came from.
package similarity

import (
	"strings"

	"abstkit/internal/errors"

	"github.com/pmezard/go-difflib/difflib"
	"gonum.org/v1/gonum/floats"
)

// Cosine returns the cosine similarity of two equal-length vectors; zero
// vectors score 0
func Cosine(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, errors.InvalidInput("vector length mismatch")
	}
	na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0, nil
	}
	return floats.Dot(a, b) / (na * nb), nil
}

// Nearest returns the index and similarity of the candidate closest to query.
// Ties go to the first candidate.
func Nearest(query []float64, candidates [][]float64) (int, float64, error) {
	if len(candidates) == 0 {
		return -1, 0, errors.InvalidInput("no candidates to compare")
	}
	scores := make([]float64, len(candidates))
	for i, c := range candidates {
		s, err := Cosine(query, c)
		if err != nil {
			return -1, 0, errors.Wrapf(err, "candidate %d", i)
		}
		scores[i] = s
	}
	best := floats.MaxIdx(scores)
	return best, scores[best], nil
}

// WordDiff diffs whitespace-separated words, one word per line prefixed with
// "- " (only in a), "+ " (only in b) or "  " (both)
func WordDiff(a, b string) string {
	aw, bw := strings.Fields(a), strings.Fields(b)
	m := difflib.NewMatcher(aw, bw)

	var lines []string
	for _, op := range m.GetOpCodes() {
		switch op.Tag {
		case 'e':
			for _, w := range aw[op.I1:op.I2] {
				lines = append(lines, "  "+w)
			}
		case 'd':
			for _, w := range aw[op.I1:op.I2] {
				lines = append(lines, "- "+w)
			}
		case 'i':
			for _, w := range bw[op.J1:op.J2] {
				lines = append(lines, "+ "+w)
			}
		case 'r':
			for _, w := range aw[op.I1:op.I2] {
				lines = append(lines, "- "+w)
			}
			for _, w := range bw[op.J1:op.J2] {
				lines = append(lines, "+ "+w)
			}
		}
	}
	return strings.Join(lines, "\n")
}

// Float64s widens an embedding vector
func Float64s(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
