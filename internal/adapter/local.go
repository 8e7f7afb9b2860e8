package adapter

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// DefaultLocalDimension is the vector size of the local provider.
const DefaultLocalDimension = 256

// localAdapter is an offline provider: feature-hashed bag-of-words
// embeddings and extractive summaries. Identical text always maps to the
// same vector, and texts sharing most words land close together.
type localAdapter struct {
	dim int
}

// NewLocal creates the offline provider. dim <= 0 uses DefaultLocalDimension.
func NewLocal(dim int) LLMAdapter {
	if dim <= 0 {
		dim = DefaultLocalDimension
	}
	return &localAdapter{dim: dim}
}

func (l *localAdapter) Info() ModelInfo {
	return ModelInfo{
		Name:               "local-hash",
		Provider:           ProviderLocal,
		MaxContextWindow:   math.MaxInt32,
		EmbeddingDimension: l.dim,
	}
}

func (l *localAdapter) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = l.embed(text)
	}
	return out, nil
}

func (l *localAdapter) embed(text string) []float32 {
	vec := make([]float32, l.dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		sum := h.Sum32()
		sign := float32(1)
		if sum&1 == 1 {
			sign = -1
		}
		vec[int(sum>>1)%l.dim] += sign
	}
	return vec
}

// Complete returns the leading sentences of the user message, up to
// MaxTokens words. The system prompt is ignored.
func (l *localAdapter) Complete(_ context.Context, req CompletionRequest) (string, error) {
	limit := req.MaxTokens
	if limit <= 0 {
		limit = 60
	}
	var out []string
	count := 0
	for _, sentence := range splitSentences(req.UserMessage) {
		n := len(strings.Fields(sentence))
		if count > 0 && count+n > limit {
			break
		}
		out = append(out, sentence)
		count += n
		if count >= limit {
			break
		}
	}
	summary := strings.Join(out, " ")
	if words := strings.Fields(summary); len(words) > limit {
		summary = strings.Join(words[:limit], " ")
	}
	return summary, nil
}

func splitSentences(text string) []string {
	var out []string
	var cur strings.Builder
	for _, r := range strings.Join(strings.Fields(text), " ") {
		cur.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(cur.String()); s != "" {
				out = append(out, s)
			}
			cur.Reset()
		}
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		out = append(out, s)
	}
	return out
}
