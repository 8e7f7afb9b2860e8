package adapter

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/memvra/branchmind/internal/errs"
)

// SummaryOptions bounds a summary, in words.
type SummaryOptions struct {
	MinLength int
	MaxLength int
}

// GatewayOptions configures the circuit breaker in front of the providers.
type GatewayOptions struct {
	BreakerMaxFailures uint32
	BreakerTimeout     time.Duration
}

// Gateway is the narrow boundary the engine talks to: text in, one vector
// or one string out. Provider-specific result shapes stop here. Calls are
// never retried; while the breaker is open they fail fast.
type Gateway struct {
	embedder   LLMAdapter
	summarizer LLMAdapter
	breaker    *gobreaker.CircuitBreaker
	log        *zap.Logger
}

// NewGateway wraps an embedding provider and a summarization provider
// (which may be the same adapter).
func NewGateway(embedder, summarizer LLMAdapter, opts GatewayOptions, log *zap.Logger) *Gateway {
	if log == nil {
		log = zap.NewNop()
	}
	maxFailures := opts.BreakerMaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	timeout := opts.BreakerTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	g := &Gateway{embedder: embedder, summarizer: summarizer, log: log}
	g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "gateway",
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("gateway breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	return g
}

// Embed returns the L2-normalized embedding of text.
func (g *Gateway) Embed(ctx context.Context, text string) ([]float32, error) {
	res, err := g.breaker.Execute(func() (interface{}, error) {
		vecs, err := g.embedder.Embed(ctx, []string{text})
		if err != nil {
			return nil, err
		}
		if len(vecs) != 1 || len(vecs[0]) == 0 {
			return nil, fmt.Errorf("expected one embedding, got %d", len(vecs))
		}
		return vecs[0], nil
	})
	if err != nil {
		return nil, errs.Gateway("embed", err)
	}
	vec := append([]float32(nil), res.([]float32)...)
	normalize(vec)
	return vec, nil
}

// Summarize returns a summary of text between MinLength and MaxLength words
// (as far as the provider honours it).
func (g *Gateway) Summarize(ctx context.Context, text string, opts SummaryOptions) (string, error) {
	if opts.MaxLength <= 0 {
		opts.MaxLength = 150
	}
	if opts.MinLength < 0 || opts.MinLength > opts.MaxLength {
		opts.MinLength = 0
	}
	res, err := g.breaker.Execute(func() (interface{}, error) {
		return g.summarizer.Complete(ctx, CompletionRequest{
			SystemPrompt: fmt.Sprintf("Summarize the user's notes in %d to %d words. Reply with the summary only.",
				opts.MinLength, opts.MaxLength),
			UserMessage: text,
			MaxTokens:   opts.MaxLength,
			Temperature: 0.2,
		})
	})
	if err != nil {
		return "", errs.Gateway("summarize", err)
	}
	summary := strings.TrimSpace(res.(string))
	if summary == "" {
		return "", errs.Gateway("summarize", errors.New("empty summary returned"))
	}
	return summary, nil
}

// EmbedderInfo describes the embedding provider.
func (g *Gateway) EmbedderInfo() ModelInfo { return g.embedder.Info() }

// normalize scales v to unit length in place.
func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	n := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= n
	}
}
