// Package corpus computes word statistics over Wikipedia-style JSONL dumps.
package corpus

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"

	"abstkit/domain/text"
	"abstkit/internal/errors"
	"abstkit/ports"
)

// Article is one line of the dump
type Article struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

const maxLine = 64 << 20

// EachArticle streams the articles of a JSONL file, gunzipping it when the
// file starts with the gzip magic number. Stops at the first error from fn.
func EachArticle(path string, fn func(Article) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	var r io.Reader = br
	if magic, err := br.Peek(2); err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return errors.Wrapf(err, "failed to open gzip stream %s", path)
		}
		defer gz.Close()
		r = gz
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 1<<20), maxLine)
	line := 0
	for sc.Scan() {
		line++
		raw := strings.TrimSpace(sc.Text())
		if raw == "" {
			continue
		}
		var a Article
		if err := json.Unmarshal([]byte(raw), &a); err != nil {
			return errors.Wrapf(err, "%s:%d: invalid article", path, line)
		}
		if err := fn(a); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return errors.Wrapf(err, "failed to read %s", path)
	}
	return nil
}

// ReadArticles loads every article of a dump
func ReadArticles(path string) ([]Article, error) {
	var out []Article
	err := EachArticle(path, func(a Article) error {
		out = append(out, a)
		return nil
	})
	return out, err
}

var (
	linkMarkup     = regexp.MustCompile(`\[\[.*?\]\]`)
	emphasisMarkup = regexp.MustCompile(`''+`)
)

// Clean strips [[...]] links and runs of two or more apostrophes
func Clean(s string) string {
	return emphasisMarkup.ReplaceAllString(linkMarkup.ReplaceAllString(s, ""), "")
}

// Counter counts strings and remembers first-seen order for ties
type Counter struct {
	counts map[string]int
	order  []string
}

// NewCounter creates an empty counter
func NewCounter() *Counter {
	return &Counter{counts: make(map[string]int)}
}

// Add increments word by one
func (c *Counter) Add(word string) {
	if _, ok := c.counts[word]; !ok {
		c.order = append(c.order, word)
	}
	c.counts[word]++
}

// Get returns the count of word
func (c *Counter) Get(word string) int {
	return c.counts[word]
}

// Len is the number of distinct words
func (c *Counter) Len() int {
	return len(c.order)
}

// WordCount is one counter entry
type WordCount struct {
	Word  string
	Count int
}

// MostCommon returns the n most frequent words, all of them when n <= 0
func (c *Counter) MostCommon(n int) []WordCount {
	out := make([]WordCount, len(c.order))
	for i, w := range c.order {
		out[i] = WordCount{Word: w, Count: c.counts[w]}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out
}

func isContentWord(m text.Morpheme) bool {
	return !m.HasPrefix(text.POSSupSymbol) && !m.HasPrefix(text.POSParticle) && !m.HasPrefix(text.POSAuxVerb)
}

// WordCounts counts surfaces of cleaned text, skipping symbols, particles and auxiliaries
func WordCounts(articles []Article, m ports.Morphologizer) *Counter {
	c := NewCounter()
	for _, a := range articles {
		for _, mo := range m.Analyze(Clean(a.Text)) {
			if isContentWord(mo) {
				c.Add(mo.Surface)
			}
		}
	}
	return c
}

// NounCounts counts noun surfaces of the raw text
func NounCounts(articles []Article, m ports.Morphologizer) *Counter {
	c := NewCounter()
	for _, a := range articles {
		for _, mo := range m.Analyze(a.Text) {
			if mo.Is(text.POSNoun) {
				c.Add(mo.Surface)
			}
		}
	}
	return c
}
