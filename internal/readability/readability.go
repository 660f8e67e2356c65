// Package readability scores Japanese text with the jReadability formula.
package readability

import (
	"fmt"
	"strconv"
	"strings"

	"abstkit/adapters/excel"
	"abstkit/domain/text"
	"abstkit/ports"
)

// Result holds the score and the ratios it was computed from
type Result struct {
	Score                float64 `json:"readability_score"`
	MeanWordsPerSentence float64 `json:"mean_words_per_sentence"`
	PercentKango         float64 `json:"percent_kango"`
	PercentWago          float64 `json:"percent_wago"`
	PercentVerbs         float64 `json:"percent_verbs"`
	PercentAuxVerbs      float64 `json:"percent_auxiliary_verbs"`
	TotalWords           int     `json:"total_words"`
	Sentences            int     `json:"sentences"`
}

const (
	weightMWPS    = -0.056
	weightKango   = -0.126
	weightWago    = -0.042
	weightVerbs   = -0.145
	weightAuxVerb = -0.044
	intercept     = 11.724
)

// CountSentences counts 。？！ with a minimum of one
func CountSentences(s string) int {
	n := strings.Count(s, "。") + strings.Count(s, "？") + strings.Count(s, "！")
	if n == 0 {
		return 1
	}
	return n
}

// Analyze scores s given its morphemes. Proper nouns and loanwords count as
// kango; symbols and unknown goshu count only toward the word total.
func Analyze(ms []text.Morpheme, s string) Result {
	r := Result{TotalWords: len(ms), Sentences: CountSentences(s)}

	var kango, wago, verbs, aux int
	for _, m := range ms {
		switch m.Goshu {
		case text.GoshuKango, text.GoshuProper, text.GoshuForeign:
			kango++
		case text.GoshuWago:
			wago++
		}
		switch m.POS {
		case text.POSVerb:
			verbs++
		case text.POSAuxVerb:
			aux++
		}
	}

	percent := func(n int) float64 {
		if r.TotalWords == 0 {
			return 0
		}
		return float64(n) / float64(r.TotalWords) * 100
	}
	r.MeanWordsPerSentence = float64(r.TotalWords) / float64(r.Sentences)
	r.PercentKango = percent(kango)
	r.PercentWago = percent(wago)
	r.PercentVerbs = percent(verbs)
	r.PercentAuxVerbs = percent(aux)

	r.Score = r.MeanWordsPerSentence*weightMWPS +
		r.PercentKango*weightKango +
		r.PercentWago*weightWago +
		r.PercentVerbs*weightVerbs +
		r.PercentAuxVerbs*weightAuxVerb +
		intercept
	return r
}

// AnalyzeText runs the analyzer and scores the result
func AnalyzeText(m ports.Morphologizer, s string) Result {
	return Analyze(m.Analyze(s), s)
}

// Annotate adds {col}_readability, {col}_words and {col}_sentences after the
// existing columns for every target column. Blank cells leave the new cells blank.
func Annotate(t *excel.Table, columns []string, m ports.Morphologizer) error {
	if err := t.RequireColumns(columns...); err != nil {
		return err
	}
	for _, col := range columns {
		score, words, sentences := col+"_readability", col+"_words", col+"_sentences"
		t.InsertColumnsAfter(col, score, words, sentences)
		for _, row := range t.Rows {
			v := row[col]
			if strings.TrimSpace(v) == "" {
				row[score], row[words], row[sentences] = "", "", ""
				continue
			}
			res := AnalyzeText(m, v)
			row[score] = fmt.Sprintf("%.3f", res.Score)
			row[words] = strconv.Itoa(res.TotalWords)
			row[sentences] = strconv.Itoa(res.Sentences)
		}
	}
	return nil
}
