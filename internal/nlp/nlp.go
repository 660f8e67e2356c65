// Package nlp extracts simple lexical patterns from morpheme sequences.
package nlp

import (
	"abstkit/domain/text"
)

// VerbPair is a verb as written and in dictionary form
type VerbPair struct {
	Surface string
	Base    string
}

// Verbs returns the base form of every verb in order
func Verbs(ms []text.Morpheme) []string {
	var out []string
	for _, m := range ms {
		if m.Is(text.POSVerb) {
			out = append(out, m.Base())
		}
	}
	return out
}

// VerbPairs returns surface/base pairs of every verb in order
func VerbPairs(ms []text.Morpheme) []VerbPair {
	var out []VerbPair
	for _, m := range ms {
		if m.Is(text.POSVerb) {
			out = append(out, VerbPair{Surface: m.Surface, Base: m.Base()})
		}
	}
	return out
}

// NounPhrases returns "AのB" for every noun, particle の, noun triple.
// Triples may overlap.
func NounPhrases(ms []text.Morpheme) []string {
	var out []string
	for i := 1; i+1 < len(ms); i++ {
		mid := ms[i]
		if mid.Surface != "の" || !mid.Is(text.POSParticle) {
			continue
		}
		if ms[i-1].Is(text.POSNoun) && ms[i+1].Is(text.POSNoun) {
			out = append(out, ms[i-1].Surface+mid.Surface+ms[i+1].Surface)
		}
	}
	return out
}

// Wakati returns the surfaces, the whitespace-split form used for n-gram metrics
func Wakati(ms []text.Morpheme) []string {
	out := make([]string, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.Surface)
	}
	return out
}
