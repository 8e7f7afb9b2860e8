// Package cache implements the three cache tiers that keep embedding and
// summarization work from being recomputed: an embedding LRU, a disk-backed
// persistent embedding map, and a TTL summary cache. A small formatting
// cache for rendered branch views sits alongside them.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// DefaultMaxEmbedTokens bounds the canonical text used as embedding input.
const DefaultMaxEmbedTokens = 512

// Truncator shortens text to a token budget. *context.Tokenizer satisfies it.
type Truncator interface {
	Truncate(s string, maxTokens int) string
}

// Canonicalizer turns raw content into the stable, length-bounded text that
// is both hashed for the cache key and sent to the gateway.
type Canonicalizer struct {
	trunc     Truncator
	maxTokens int
}

// NewCanonicalizer creates a Canonicalizer. A nil Truncator falls back to a
// rune budget of four runes per token.
func NewCanonicalizer(trunc Truncator, maxTokens int) *Canonicalizer {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxEmbedTokens
	}
	return &Canonicalizer{trunc: trunc, maxTokens: maxTokens}
}

// Canonical collapses whitespace and truncates.
func (c *Canonicalizer) Canonical(text string) string {
	s := strings.Join(strings.Fields(text), " ")
	if c.trunc != nil {
		return c.trunc.Truncate(s, c.maxTokens)
	}
	limit := c.maxTokens * 4
	if r := []rune(s); len(r) > limit {
		return string(r[:limit])
	}
	return s
}

// Key returns the content hash of the canonical form of text.
func (c *Canonicalizer) Key(text string) string {
	return ContentHash(c.Canonical(text))
}

// ContentHash is the hex SHA-256 digest of s.
func ContentHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
