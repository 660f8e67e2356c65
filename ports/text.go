package ports

import "abstkit/domain/text"

// TokenCounter counts model tokens
type TokenCounter interface {
	Count(s string) int
	// Truncate keeps at most max tokens of s
	Truncate(s string, max int) string
}

// Morphologizer splits Japanese text into morphemes
type Morphologizer interface {
	Analyze(s string) []text.Morpheme
}
