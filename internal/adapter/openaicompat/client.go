// Package openaicompat builds go-openai clients for OpenAI-compatible
// endpoints (OpenAI, Groq, Ollama) and classifies their errors for retry.
package openaicompat

import (
	"errors"
	"net/http"
	"os"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"finrag/internal/util"
)

// Default endpoints per provider.
const (
	OpenAIBaseURL = "https://api.openai.com/v1"
	GroqBaseURL   = "https://api.groq.com/openai/v1"
	OllamaBaseURL = "http://localhost:11434/v1"
)

// BaseURL returns the default endpoint for provider, or "" if unknown.
func BaseURL(provider string) string {
	switch provider {
	case "openai":
		return OpenAIBaseURL
	case "groq":
		return GroqBaseURL
	case "ollama":
		return OllamaBaseURL
	}
	return ""
}

// NewClient returns a client for baseURL. Ollama ignores the key, so an
// empty apiKey is replaced with a placeholder.
func NewClient(baseURL, apiKey string, timeout time.Duration) *openai.Client {
	if apiKey == "" {
		apiKey = "ollama"
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	return openai.NewClientWithConfig(cfg)
}

// APIKey reads the key from the named environment variable.
func APIKey(envVar string) string {
	if envVar == "" {
		return ""
	}
	return os.Getenv(envVar)
}

// Classify wraps errors that retrying cannot fix in *util.Permanent:
// client errors other than 408 and 429.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}
	if status >= 400 && status < 500 && status != http.StatusRequestTimeout && status != http.StatusTooManyRequests {
		return &util.Permanent{Err: err}
	}
	return err
}
