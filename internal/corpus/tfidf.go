package corpus

import (
	"math"
	"sort"
	"strings"

	"abstkit/domain/text"
	"abstkit/ports"
)

// TFIDFEntry is one scored noun
type TFIDFEntry struct {
	Term  string
	TFSum int // raw frequency summed over documents
	IDF   float64
	Score float64
}

// TFIDF scores nouns of the articles whose title contains titleKeyword.
// tf is per-document relative frequency, idf = ln((N+1)/(df+1)) + 1 and a
// term's score is the sum of tf*idf over documents. Returns the top n, all
// when n <= 0.
func TFIDF(articles []Article, m ports.Morphologizer, titleKeyword string, n int) []TFIDFEntry {
	var docs []*Counter
	df := NewCounter()
	for _, a := range articles {
		if !strings.Contains(a.Title, titleKeyword) {
			continue
		}
		tf := NewCounter()
		for _, mo := range m.Analyze(Clean(a.Text)) {
			if mo.HasPrefix(text.POSNoun) {
				tf.Add(mo.Surface)
			}
		}
		for _, term := range tf.order {
			df.Add(term)
		}
		docs = append(docs, tf)
	}

	total := float64(len(docs))
	idf := func(term string) float64 {
		return math.Log((total+1)/float64(df.Get(term)+1)) + 1
	}

	entries := make(map[string]*TFIDFEntry)
	var order []string
	for _, tf := range docs {
		sum := 0
		for _, term := range tf.order {
			sum += tf.counts[term]
		}
		for _, term := range tf.order {
			freq := tf.counts[term]
			e, ok := entries[term]
			if !ok {
				e = &TFIDFEntry{Term: term, IDF: idf(term)}
				entries[term] = e
				order = append(order, term)
			}
			e.TFSum += freq
			e.Score += float64(freq) / float64(sum) * e.IDF
		}
	}

	out := make([]TFIDFEntry, len(order))
	for i, term := range order {
		out[i] = *entries[term]
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out
}

// Zipf returns 1-based ranks and frequencies in descending frequency order
func Zipf(c *Counter) (ranks, freqs []float64) {
	for i, wc := range c.MostCommon(0) {
		ranks = append(ranks, float64(i+1))
		freqs = append(freqs, float64(wc.Count))
	}
	return ranks, freqs
}
