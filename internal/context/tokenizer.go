// Package context renders branches into text: markdown history and status
// views, and token-budgeted source text for summarization.
package context

import (
	"fmt"
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// Tokenizer wraps tiktoken for approximate token counting.
type Tokenizer struct {
	mu  sync.Mutex
	enc *tiktoken.Tiktoken
}

// NewTokenizer creates a Tokenizer using the cl100k_base encoding, a good
// approximation for every supported provider.
func NewTokenizer() (*Tokenizer, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("tokenizer: get encoding: %w", err)
	}
	return &Tokenizer{enc: enc}, nil
}

// Count returns the approximate number of tokens in s. A nil Tokenizer
// estimates four bytes per token.
func (t *Tokenizer) Count(s string) int {
	if t == nil {
		return (len(s) + 3) / 4
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.enc.Encode(s, nil, nil))
}

// Truncate truncates s to at most maxTokens tokens.
func (t *Tokenizer) Truncate(s string, maxTokens int) string {
	if t == nil {
		if r := []rune(s); len(r) > maxTokens*4 {
			return string(r[:maxTokens*4])
		}
		return s
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	tokens := t.enc.Encode(s, nil, nil)
	if len(tokens) <= maxTokens {
		return s
	}
	return t.enc.Decode(tokens[:maxTokens])
}
