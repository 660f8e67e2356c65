// Package metrics implements n-gram overlap metrics for generated text.
package metrics

import (
	"math"
	"strings"
)

// smoothingEpsilon is added to zero-match precision numerators
const smoothingEpsilon = 0.1

const maxOrder = 4

type ngramCounts map[string]int

func ngrams(tokens []string, n int) ngramCounts {
	counts := make(ngramCounts)
	for i := 0; i+n <= len(tokens); i++ {
		counts[strings.Join(tokens[i:i+n], "\x00")]++
	}
	return counts
}

func total(c ngramCounts) int {
	sum := 0
	for _, v := range c {
		sum += v
	}
	return sum
}

// modifiedPrecision returns the clipped match count and candidate n-gram count
// (at least 1)
func modifiedPrecision(refs [][]string, cand []string, n int) (float64, float64) {
	counts := ngrams(cand, n)
	maxRef := make(ngramCounts)
	for _, ref := range refs {
		for g, c := range ngrams(ref, n) {
			if c > maxRef[g] {
				maxRef[g] = c
			}
		}
	}
	clipped := 0
	for g, c := range counts {
		if m := maxRef[g]; c > m {
			clipped += m
		} else {
			clipped += c
		}
	}
	denom := total(counts)
	if denom < 1 {
		denom = 1
	}
	return float64(clipped), float64(denom)
}

// closestRefLength picks the reference length nearest to c, shorter on ties
func closestRefLength(refs [][]string, c int) int {
	best := -1
	for _, ref := range refs {
		r := len(ref)
		if best < 0 || abs(r-c) < abs(best-c) || (abs(r-c) == abs(best-c) && r < best) {
			best = r
		}
	}
	return best
}

func brevityPenalty(refLen, candLen int) float64 {
	if candLen > refLen {
		return 1
	}
	if candLen == 0 {
		return 0
	}
	return math.Exp(1 - float64(refLen)/float64(candLen))
}

// SentenceBLEU scores a tokenised candidate against tokenised references with
// uniform 1..4-gram weights. Zero-match orders above unigrams are smoothed by
// adding 0.1 to the numerator; no unigram match at all scores 0.
func SentenceBLEU(refs [][]string, cand []string) float64 {
	if len(cand) == 0 || len(refs) == 0 {
		return 0
	}

	var logSum float64
	for n := 1; n <= maxOrder; n++ {
		num, denom := modifiedPrecision(refs, cand, n)
		if n == 1 && num == 0 {
			return 0
		}
		if num == 0 {
			num = smoothingEpsilon
		}
		logSum += math.Log(num/denom) / maxOrder
	}
	return brevityPenalty(closestRefLength(refs, len(cand)), len(cand)) * math.Exp(logSum)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
