package text

import "strings"

// Morpheme is one token of a morphological analysis
type Morpheme struct {
	Surface  string   `json:"surface"`
	POS      string   `json:"pos"`  // 品詞 (top level)
	POS1     string   `json:"pos1"` // 品詞細分類1
	BaseForm string   `json:"base_form"`
	Goshu    string   `json:"goshu,omitempty"` // 語種, UniDic only
	Features []string `json:"-"`
}

// Part-of-speech labels shared by IPA and UniDic
const (
	POSNoun      = "名詞"
	POSVerb      = "動詞"
	POSParticle  = "助詞"
	POSAuxVerb   = "助動詞"
	POSSupSymbol = "補助記号"
	POSSymbol    = "記号"
)

// Goshu (word origin) classes from UniDic
const (
	GoshuWago    = "和"
	GoshuKango   = "漢"
	GoshuForeign = "外"
	GoshuProper  = "固"
)

// Is reports whether the top-level POS matches
func (m Morpheme) Is(pos string) bool {
	return m.POS == pos
}

// HasPrefix reports whether the top-level POS starts with prefix
func (m Morpheme) HasPrefix(prefix string) bool {
	return strings.HasPrefix(m.POS, prefix)
}

// Base returns the base form, falling back to the surface for unknown words
func (m Morpheme) Base() string {
	if m.BaseForm == "" || m.BaseForm == "*" {
		return m.Surface
	}
	return m.BaseForm
}
