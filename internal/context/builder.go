package context

import (
	"strings"

	"github.com/memvra/branchmind/internal/graph"
)

// DefaultSourceTokens is the summarization source budget used when none is given.
const DefaultSourceTokens = 3000

// Builder assembles token-budget-aware summarization sources.
type Builder struct {
	tokenizer *Tokenizer
}

// NewBuilder creates a Builder. A nil tokenizer estimates token counts.
func NewBuilder(tokenizer *Tokenizer) *Builder {
	return &Builder{tokenizer: tokenizer}
}

// BuiltSource is the text handed to the summarizer.
type BuiltSource struct {
	Text         string
	TokensUsed   int
	ThoughtsUsed int
	Truncated    bool
}

// BranchSource keeps the newest thoughts that fit in maxTokens and returns
// them in chronological order. The newest thought is always included,
// truncated if it alone exceeds the budget.
func (b *Builder) BranchSource(br *graph.Branch, maxTokens int) BuiltSource {
	if maxTokens <= 0 {
		maxTokens = DefaultSourceTokens
	}

	remaining := maxTokens
	var picked []string
	truncated := false
	for i := len(br.Thoughts) - 1; i >= 0; i-- {
		block := thoughtBlock(br.Thoughts[i])
		tokens := b.tokenizer.Count(block)
		if tokens <= remaining {
			picked = append(picked, block)
			remaining -= tokens
			continue
		}
		truncated = true
		if len(picked) == 0 {
			picked = append(picked, b.tokenizer.Truncate(block, remaining))
			remaining = 0
		}
		break
	}

	for i, j := 0, len(picked)-1; i < j; i, j = i+1, j-1 {
		picked[i], picked[j] = picked[j], picked[i]
	}
	return BuiltSource{
		Text:         strings.Join(picked, "\n"),
		TokensUsed:   maxTokens - remaining,
		ThoughtsUsed: len(picked),
		Truncated:    truncated,
	}
}

func thoughtBlock(t *graph.Thought) string {
	var sb strings.Builder
	sb.WriteString(t.Content)
	if len(t.Metadata.KeyPoints) > 0 {
		sb.WriteString("\nKey points: ")
		sb.WriteString(strings.Join(t.Metadata.KeyPoints, "; "))
	}
	sb.WriteString("\n")
	return sb.String()
}
