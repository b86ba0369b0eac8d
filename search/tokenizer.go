package search

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer counts and truncates text in model tokens.
// Implementations must be safe for concurrent use.
type Tokenizer interface {
	Count(text string) int
	Truncate(text string, limit int) string
}

// WordTokenizer estimates one token per whitespace-separated word.
type WordTokenizer struct{}

var _ Tokenizer = WordTokenizer{}

func (WordTokenizer) Count(text string) int {
	return len(strings.Fields(text))
}

func (WordTokenizer) Truncate(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	words := strings.Fields(text)
	if len(words) <= limit {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:limit], " ")
}

// TiktokenTokenizer counts tokens with a BPE encoding. The encoding is loaded
// on first use; if it cannot be loaded the word estimate is used instead.
type TiktokenTokenizer struct {
	encoding string
	logger   *slog.Logger

	once     sync.Once
	enc      *tiktoken.Tiktoken
	fallback WordTokenizer
}

var _ Tokenizer = (*TiktokenTokenizer)(nil)

// NewTiktokenTokenizer creates a tokenizer for the named encoding,
// e.g. "cl100k_base". A nil logger falls back to slog.Default().
func NewTiktokenTokenizer(encoding string, logger *slog.Logger) *TiktokenTokenizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &TiktokenTokenizer{encoding: encoding, logger: logger}
}

func (t *TiktokenTokenizer) load() *tiktoken.Tiktoken {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.encoding)
		if err != nil {
			t.logger.Warn("tiktoken encoding unavailable, estimating by words", "encoding", t.encoding, "err", err)
			return
		}
		t.enc = enc
	})
	return t.enc
}

func (t *TiktokenTokenizer) Count(text string) int {
	enc := t.load()
	if enc == nil {
		return t.fallback.Count(text)
	}
	return len(enc.Encode(text, nil, nil))
}

func (t *TiktokenTokenizer) Truncate(text string, limit int) string {
	enc := t.load()
	if enc == nil {
		return t.fallback.Truncate(text, limit)
	}
	if limit <= 0 {
		return ""
	}
	tokens := enc.Encode(text, nil, nil)
	if len(tokens) <= limit {
		return text
	}
	return enc.Decode(tokens[:limit])
}

// Split cuts text into pieces of at most size tokens where each piece repeats
// the last overlap tokens of the previous one. Ingestion uses it to chunk
// long documents; the retriever later drops the repeated prefix when two
// pieces of the same entity end up next to each other.
func Split(text string, size, overlap int) []string {
	words := strings.Fields(text)
	if len(words) == 0 || size <= 0 {
		return nil
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	var out []string
	for start := 0; ; start += size - overlap {
		end := min(start+size, len(words))
		out = append(out, strings.Join(words[start:end], " "))
		if end == len(words) {
			return out
		}
	}
}
