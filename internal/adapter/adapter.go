// Package adapter provides a unified interface over embedding and
// completion providers, and the narrow Gateway the rest of branchmind uses.
package adapter

import (
	"context"
	"fmt"
)

// Provider name constants.
const (
	ProviderClaude = "claude"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
	ProviderLocal  = "local"
)

// ValidProviders lists every provider name New accepts.
var ValidProviders = []string{ProviderOllama, ProviderOpenAI, ProviderGemini, ProviderClaude, ProviderLocal}

// CompletionRequest holds the parameters for a completion call.
type CompletionRequest struct {
	SystemPrompt string
	UserMessage  string
	Model        string
	MaxTokens    int
	Temperature  float64
}

// ModelInfo describes the capabilities of a provider.
type ModelInfo struct {
	Name               string
	Provider           string
	MaxContextWindow   int
	EmbeddingDimension int // 0 if the provider cannot embed
}

// LLMAdapter is the common interface all provider adapters implement.
type LLMAdapter interface {
	// Complete sends a prompt and returns the full response text.
	Complete(ctx context.Context, req CompletionRequest) (string, error)

	// Embed generates embeddings for a batch of texts, one vector per text.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Info returns metadata about the adapter/model.
	Info() ModelInfo
}

// Options configures a provider adapter. Empty fields use provider defaults.
type Options struct {
	APIKey          string
	Host            string // Ollama base URL
	EmbedModel      string
	CompletionModel string
}

// New constructs the LLMAdapter for the named provider.
func New(provider string, opts Options) (LLMAdapter, error) {
	switch provider {
	case ProviderClaude:
		return NewClaude(opts), nil
	case ProviderOpenAI:
		return NewOpenAI(opts), nil
	case ProviderGemini:
		return NewGemini(opts), nil
	case ProviderOllama:
		return NewOllama(opts), nil
	case ProviderLocal:
		return NewLocal(0), nil
	default:
		return nil, fmt.Errorf("adapter: unknown provider %q; valid providers: ollama, openai, gemini, claude, local", provider)
	}
}
