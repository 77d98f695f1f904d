// Package llm adapts chat-completion endpoints to port.TextGenerator.
package llm

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"finrag/internal/adapter/openaicompat"
	"finrag/internal/domain"
	"finrag/internal/util"
)

const (
	DefaultGroqModel   = "llama-3.1-8b-instant"
	DefaultOllamaModel = "llama2"
	DefaultOpenAIModel = "gpt-4o-mini"
)

type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Options configures an OpenAIGenerator.
type Options struct {
	Provider    string
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int
	MaxRetries  int
	RetryDelay  time.Duration
	Timeout     time.Duration
}

// OpenAIGenerator sends a system and a user message to an OpenAI-compatible
// chat completion endpoint.
type OpenAIGenerator struct {
	client      chatClient
	model       string
	temperature float32
	maxTokens   int
	maxRetries  int
	retryDelay  time.Duration
}

// NewGenerator builds a generator for openai, groq or ollama. Hosted
// providers require an API key.
func NewGenerator(opts Options) (*OpenAIGenerator, error) {
	switch opts.Provider {
	case "openai", "groq":
		if opts.APIKey == "" {
			return nil, fmt.Errorf("%w: no API key for %s", domain.ErrGeneratorUnavailable, opts.Provider)
		}
	case "ollama":
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", domain.ErrGeneratorUnavailable, opts.Provider)
	}

	if opts.BaseURL == "" {
		opts.BaseURL = openaicompat.BaseURL(opts.Provider)
	}
	if opts.Model == "" {
		opts.Model = defaultModel(opts.Provider)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}

	return &OpenAIGenerator{
		client:      openaicompat.NewClient(opts.BaseURL, opts.APIKey, opts.Timeout),
		model:       opts.Model,
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
		maxRetries:  opts.MaxRetries,
		retryDelay:  opts.RetryDelay,
	}, nil
}

func defaultModel(provider string) string {
	switch provider {
	case "groq":
		return DefaultGroqModel
	case "ollama":
		return DefaultOllamaModel
	}
	return DefaultOpenAIModel
}

func (g *OpenAIGenerator) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
	}
	// go-openai drops a zero temperature from the request body.
	if req.Temperature == 0 {
		req.Temperature = math.SmallestNonzeroFloat32
	}

	var content string
	err := util.Retry(ctx, g.maxRetries+1, g.retryDelay, func(ctx context.Context) error {
		resp, err := g.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return openaicompat.Classify(err)
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("no completion choices returned")
		}
		content = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("chat completion with %s failed: %w", g.model, err)
	}
	return strings.TrimSpace(content), nil
}

func (g *OpenAIGenerator) ModelName() string {
	return g.model
}
