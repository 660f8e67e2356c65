package tokens

import (
	"sync"

	"abstkit/internal/errors"

	"github.com/pkoukk/tiktoken-go"
	tiktokenloader "github.com/pkoukk/tiktoken-go-loader"
)

// DefaultEncoding matches the gpt-4 / gpt-4.1 family tokenizer
const DefaultEncoding = "cl100k_base"

var loaderOnce sync.Once

// Counter counts tokens with a tiktoken encoding
type Counter struct {
	enc *tiktoken.Tiktoken
}

// NewCounter loads an encoding from the embedded BPE tables; no network access
func NewCounter(encoding string) (*Counter, error) {
	loaderOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktokenloader.NewOfflineLoader())
	})
	if encoding == "" {
		encoding = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load encoding %s", encoding)
	}
	return &Counter{enc: enc}, nil
}

// Count returns the number of tokens in s
func (c *Counter) Count(s string) int {
	if s == "" {
		return 0
	}
	return len(c.enc.Encode(s, nil, nil))
}

// Truncate keeps at most max tokens of s
func (c *Counter) Truncate(s string, max int) string {
	ids := c.enc.Encode(s, nil, nil)
	if len(ids) <= max {
		return s
	}
	return c.enc.Decode(ids[:max])
}
