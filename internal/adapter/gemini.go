package adapter

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"google.golang.org/genai"
)

const (
	defaultGeminiChatModel  = "gemini-2.0-flash"
	defaultGeminiEmbedModel = "text-embedding-004"
	geminiEmbedDimension    = 768
)

// geminiAdapter implements LLMAdapter for Google Gemini via the genai SDK.
// The client is created on first use so that constructing the adapter never
// needs network access or a key.
type geminiAdapter struct {
	apiKey     string
	baseURL    string
	chatModel  string
	embedModel string

	once      sync.Once
	client    *genai.Client
	clientErr error
}

// NewGemini creates a Gemini adapter. If no key is given, GEMINI_API_KEY is used.
func NewGemini(opts Options) LLMAdapter {
	apiKey := opts.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	chatModel := opts.CompletionModel
	if chatModel == "" {
		chatModel = defaultGeminiChatModel
	}
	embedModel := opts.EmbedModel
	if embedModel == "" {
		embedModel = defaultGeminiEmbedModel
	}
	return &geminiAdapter{
		apiKey:     apiKey,
		baseURL:    opts.Host,
		chatModel:  chatModel,
		embedModel: embedModel,
	}
}

func (g *geminiAdapter) Info() ModelInfo {
	return ModelInfo{
		Name:               g.chatModel,
		Provider:           ProviderGemini,
		MaxContextWindow:   1000000,
		EmbeddingDimension: geminiEmbedDimension,
	}
}

func (g *geminiAdapter) getClient(ctx context.Context) (*genai.Client, error) {
	g.once.Do(func() {
		cfg := &genai.ClientConfig{
			APIKey:  g.apiKey,
			Backend: genai.BackendGeminiAPI,
		}
		if g.baseURL != "" {
			cfg.HTTPOptions = genai.HTTPOptions{BaseURL: g.baseURL}
		}
		g.client, g.clientErr = genai.NewClient(ctx, cfg)
	})
	if g.clientErr != nil {
		return nil, fmt.Errorf("gemini client: %w", g.clientErr)
	}
	return g.client, nil
}

func (g *geminiAdapter) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	client, err := g.getClient(ctx)
	if err != nil {
		return nil, err
	}

	// EmbedContent takes one set of contents at a time.
	dim := int32(geminiEmbedDimension)
	out := make([][]float32, len(texts))
	for i, text := range texts {
		contents := []*genai.Content{{Parts: []*genai.Part{{Text: text}}}}
		res, err := client.Models.EmbedContent(ctx, g.embedModel, contents, &genai.EmbedContentConfig{
			TaskType:             "SEMANTIC_SIMILARITY",
			OutputDimensionality: &dim,
		})
		if err != nil {
			return nil, fmt.Errorf("gemini embed %d: %w", i, err)
		}
		if len(res.Embeddings) == 0 {
			return nil, fmt.Errorf("gemini embed %d: no embeddings returned", i)
		}
		out[i] = res.Embeddings[0].Values
	}
	return out, nil
}

func (g *geminiAdapter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	client, err := g.getClient(ctx)
	if err != nil {
		return "", err
	}
	model := req.Model
	if model == "" {
		model = g.chatModel
	}

	cfg := &genai.GenerateContentConfig{}
	if req.SystemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}

	resp, err := client.Models.GenerateContent(ctx, model, genai.Text(req.UserMessage), cfg)
	if err != nil {
		return "", fmt.Errorf("gemini complete: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini complete: no candidates returned")
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String(), nil
}
