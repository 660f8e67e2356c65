package morph

import (
	"strings"
	"sync"

	"abstkit/domain/text"
	"abstkit/internal"
	"abstkit/internal/errors"
	"abstkit/ports"

	"github.com/ikawaha/kagome-dict/dict"
	"github.com/ikawaha/kagome-dict/ipa"
	"github.com/ikawaha/kagome-dict/uni"
	"github.com/ikawaha/kagome/v2/tokenizer"
)

// Dictionary names accepted by New
const (
	DictUni = "uni"
	DictIPA = "ipa"
)

// goshuIndex is the UniDic feature column holding 語種
const goshuIndex = 12

// Analyzer is a kagome-backed ports.Morphologizer
type Analyzer struct {
	tok    *tokenizer.Tokenizer
	dict   string
	mu     sync.Mutex
	logger *internal.Logger
}

var _ ports.Morphologizer = (*Analyzer)(nil)

// New builds an analyzer over the named dictionary; empty means UniDic
func New(name string) (*Analyzer, error) {
	var d *dict.Dict
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", DictUni:
		name, d = DictUni, uni.Dict()
	case DictIPA:
		name, d = DictIPA, ipa.Dict()
	default:
		return nil, errors.ConfigInvalid("unknown morphology dictionary " + name)
	}

	tok, err := tokenizer.New(d, tokenizer.OmitBosEos())
	if err != nil {
		return nil, errors.Wrap(err, "failed to build tokenizer")
	}
	internal.DefaultLogger.Debug("[Morph] loaded %s dictionary", name)
	return &Analyzer{tok: tok, dict: name, logger: internal.DefaultLogger}, nil
}

// Dictionary returns the loaded dictionary name
func (a *Analyzer) Dictionary() string {
	return a.dict
}

// Analyze splits s into morphemes in normal mode
func (a *Analyzer) Analyze(s string) []text.Morpheme {
	a.mu.Lock()
	tokens := a.tok.Tokenize(s)
	a.mu.Unlock()

	out := make([]text.Morpheme, 0, len(tokens))
	for _, t := range tokens {
		if t.Class == tokenizer.DUMMY {
			continue
		}
		out = append(out, toMorpheme(t, a.dict))
	}
	return out
}

func toMorpheme(t tokenizer.Token, dictName string) text.Morpheme {
	features := t.Features()
	m := text.Morpheme{Surface: t.Surface, Features: features}
	if pos := t.POS(); len(pos) > 0 {
		m.POS = pos[0]
		if len(pos) > 1 {
			m.POS1 = pos[1]
		}
	}
	if base, ok := t.BaseForm(); ok {
		m.BaseForm = base
	}
	if dictName == DictUni && len(features) > goshuIndex {
		m.Goshu = features[goshuIndex]
	}
	return m
}
