package metrics

// Score is a precision/recall/F1 triple
type Score struct {
	Precision float64
	Recall    float64
	F1        float64
}

func newScore(overlap, candTotal, refTotal int) Score {
	var s Score
	if candTotal > 0 {
		s.Precision = float64(overlap) / float64(candTotal)
	}
	if refTotal > 0 {
		s.Recall = float64(overlap) / float64(refTotal)
	}
	if s.Precision+s.Recall > 0 {
		s.F1 = 2 * s.Precision * s.Recall / (s.Precision + s.Recall)
	}
	return s
}

// RougeN scores n-gram overlap with counts clipped by the reference
func RougeN(ref, cand []string, n int) Score {
	refCounts := ngrams(ref, n)
	candCounts := ngrams(cand, n)
	overlap := 0
	for g, c := range candCounts {
		if r := refCounts[g]; r < c {
			overlap += r
		} else {
			overlap += c
		}
	}
	return newScore(overlap, total(candCounts), total(refCounts))
}

// RougeL scores the longest common subsequence
func RougeL(ref, cand []string) Score {
	return newScore(lcs(ref, cand), len(cand), len(ref))
}

func lcs(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				cur[j] = prev[j-1] + 1
			case prev[j] >= cur[j-1]:
				cur[j] = prev[j]
			default:
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
