package ai

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"github.com/sirupsen/logrus"
)

// TokenCounter estimates token usage for generation log entries
type TokenCounter struct {
	once     sync.Once
	encoding *tiktoken.Tiktoken
	logger   *logrus.Logger
}

// NewTokenCounter creates a counter. The encoding is loaded on first use.
func NewTokenCounter(logger *logrus.Logger) *TokenCounter {
	return &TokenCounter{logger: logger}
}

// Count returns the number of tokens in text. ok is false when no encoding
// could be loaded.
func (c *TokenCounter) Count(text string) (n int, ok bool) {
	c.once.Do(func() {
		tkm, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			c.logger.WithError(err).Warn("Token encoding unavailable, token counts disabled")
			return
		}
		c.encoding = tkm
	})
	if c.encoding == nil {
		return 0, false
	}
	return len(c.encoding.Encode(text, nil, nil)), true
}
