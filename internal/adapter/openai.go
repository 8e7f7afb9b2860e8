package adapter

import (
	"context"
	"fmt"
	"os"

	openai "github.com/sashabaranov/go-openai"
)

// openaiAdapter implements LLMAdapter for OpenAI.
type openaiAdapter struct {
	client     *openai.Client
	embedModel openai.EmbeddingModel
	chatModel  string
}

// NewOpenAI creates an OpenAI adapter. If no key is given, OPENAI_API_KEY is used;
// Options.Host overrides the API base URL.
func NewOpenAI(opts Options) LLMAdapter {
	apiKey := opts.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	embedModel := openai.SmallEmbedding3
	if opts.EmbedModel != "" {
		embedModel = openai.EmbeddingModel(opts.EmbedModel)
	}
	chatModel := opts.CompletionModel
	if chatModel == "" {
		chatModel = "gpt-4o-mini"
	}
	cfg := openai.DefaultConfig(apiKey)
	if opts.Host != "" {
		// OpenAI-compatible servers (LM Studio, vLLM) expose the same API.
		cfg.BaseURL = opts.Host
	}
	return &openaiAdapter{
		client:     openai.NewClientWithConfig(cfg),
		embedModel: embedModel,
		chatModel:  chatModel,
	}
}

func (o *openaiAdapter) Info() ModelInfo {
	return ModelInfo{
		Name:               o.chatModel,
		Provider:           ProviderOpenAI,
		MaxContextWindow:   128000,
		EmbeddingDimension: 1536, // text-embedding-3-small
	}
}

func (o *openaiAdapter) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: texts,
		Model: o.embedModel,
	})
	if err != nil {
		return nil, fmt.Errorf("openai embed: %w", err)
	}

	result := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index >= 0 && d.Index < len(result) {
			result[d.Index] = d.Embedding
		}
	}
	return result, nil
}

func (o *openaiAdapter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	model := req.Model
	if model == "" {
		model = o.chatModel
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 512
	}

	var messages []openai.ChatCompletionMessage
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.UserMessage,
	})

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: float32(req.Temperature),
	})
	if err != nil {
		return "", fmt.Errorf("openai complete: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai complete: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}
