package llm

import (
	"log/slog"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	"github.com/yanqian/ocean-insight/internal/domain/chat"
)

const defaultEncoding = "cl100k_base"

// TokenCounter counts tokens with the model's BPE encoding. The encoding is
// loaded on first use; when it cannot be loaded (for example without
// network access to fetch the ranks file) counts fall back to a four
// characters per token estimate.
type TokenCounter struct {
	model  string
	logger *slog.Logger

	once sync.Once
	enc  *tiktoken.Tiktoken
}

// NewTokenCounter constructs a counter for model.
func NewTokenCounter(model string, logger *slog.Logger) *TokenCounter {
	return &TokenCounter{model: model, logger: logger.With("component", "llm.tokens")}
}

// Count implements chat.TokenCounter.
func (c *TokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	c.once.Do(c.load)
	if c.enc == nil {
		return estimate(text)
	}
	return len(c.enc.Encode(text, nil, nil))
}

func (c *TokenCounter) load() {
	enc, err := tiktoken.EncodingForModel(c.model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(defaultEncoding)
	}
	if err != nil {
		c.logger.Warn("token encoding unavailable, using estimate", "model", c.model, "error", err)
		return
	}
	c.enc = enc
}

func estimate(text string) int {
	return (utf8.RuneCountInString(text) + 3) / 4
}

var _ chat.TokenCounter = (*TokenCounter)(nil)
