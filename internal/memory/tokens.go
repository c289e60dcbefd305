package memory

import (
	"log/slog"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

const encodingName = "cl100k_base"

// TokenCounter measures text in model tokens.
type TokenCounter interface {
	Count(text string) int
}

// TokenCounterFunc adapts a function to TokenCounter.
type TokenCounterFunc func(text string) int

func (f TokenCounterFunc) Count(text string) int { return f(text) }

// tiktokenCounter loads the encoding on first use. When the encoding is not
// available it falls back to an estimate of four characters per token.
type tiktokenCounter struct {
	once sync.Once
	enc  *tiktoken.Tiktoken
	log  *slog.Logger
}

// NewTokenCounter returns a counter backed by the cl100k_base encoding.
func NewTokenCounter(logger *slog.Logger) TokenCounter {
	return &tiktokenCounter{log: logger}
}

func (c *tiktokenCounter) Count(text string) int {
	c.once.Do(func() {
		enc, err := tiktoken.GetEncoding(encodingName)
		if err != nil {
			c.log.Warn("Failed to load tokenizer, estimating token counts", "encoding", encodingName, "error", err)
			return
		}
		c.enc = enc
	})

	if c.enc == nil {
		return EstimateTokens(text)
	}
	return len(c.enc.Encode(text, nil, nil))
}

// EstimateTokens approximates a token count as one token per four runes.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + 3) / 4
}
