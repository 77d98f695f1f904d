package embedding

import (
	"context"
	"fmt"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"finrag/internal/adapter/openaicompat"
	"finrag/internal/domain"
	"finrag/internal/util"
)

const maxRequestBatch = 100

// Models used when none is configured.
const (
	DefaultOpenAIModel = "text-embedding-3-small"
	DefaultOllamaModel = "nomic-embed-text"
)

type embeddingClient interface {
	CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// OpenAIEmbedder calls an OpenAI-compatible /embeddings endpoint and
// returns unit-length vectors.
type OpenAIEmbedder struct {
	client     embeddingClient
	model      string
	maxRetries int
	retryDelay time.Duration

	mu        sync.Mutex
	dimension int
}

// Options configures an OpenAIEmbedder.
type Options struct {
	BaseURL    string
	APIKey     string
	Model      string
	Dimension  int
	MaxRetries int
	RetryDelay time.Duration
	Timeout    time.Duration
}

func NewOpenAIEmbedder(opts Options) (*OpenAIEmbedder, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("%w: no API key for openai embeddings", domain.ErrEmbeddingUnavailable)
	}
	if opts.BaseURL == "" {
		opts.BaseURL = openaicompat.OpenAIBaseURL
	}
	if opts.Model == "" {
		opts.Model = DefaultOpenAIModel
	}
	return newOpenAICompatibleEmbedder(opts, 60*time.Second), nil
}

func NewOllamaEmbedder(opts Options) (*OpenAIEmbedder, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = openaicompat.OllamaBaseURL
	}
	if opts.Model == "" {
		opts.Model = DefaultOllamaModel
	}
	return newOpenAICompatibleEmbedder(opts, 120*time.Second), nil
}

func newOpenAICompatibleEmbedder(opts Options, defaultTimeout time.Duration) *OpenAIEmbedder {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Dimension <= 0 {
		opts.Dimension = knownDimension(opts.Model)
	}
	return &OpenAIEmbedder{
		client:     openaicompat.NewClient(opts.BaseURL, opts.APIKey, opts.Timeout),
		model:      opts.Model,
		dimension:  opts.Dimension,
		maxRetries: opts.MaxRetries,
		retryDelay: opts.RetryDelay,
	}
}

// knownDimension returns the output width of well-known models, or 0 when
// the width is learnt from the first response.
func knownDimension(model string) int {
	switch model {
	case "text-embedding-3-small", "text-embedding-ada-002":
		return 1536
	case "text-embedding-3-large":
		return 3072
	case "nomic-embed-text":
		return 768
	case "mxbai-embed-large":
		return 1024
	case "all-minilm":
		return 384
	}
	return 0
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	all := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += maxRequestBatch {
		end := min(i+maxRequestBatch, len(texts))

		var vecs [][]float32
		err := util.Retry(ctx, e.maxRetries+1, e.retryDelay, func(ctx context.Context) error {
			var err error
			vecs, err = e.embedBatch(ctx, texts[i:end])
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("embedding request to %s failed: %w", e.model, err)
		}
		all = append(all, vecs...)
	}
	return all, nil
}

func (e *OpenAIEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: texts,
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, openaicompat.Classify(err)
	}

	embeddings := make([][]float32, len(texts))
	for _, data := range resp.Data {
		if data.Index >= 0 && data.Index < len(embeddings) {
			embeddings[data.Index] = Normalize(data.Embedding)
		}
	}
	for i, vec := range embeddings {
		if vec == nil {
			return nil, fmt.Errorf("no embedding returned for input %d", i)
		}
		if err := e.checkDimension(len(vec)); err != nil {
			return nil, &util.Permanent{Err: err}
		}
	}
	return embeddings, nil
}

func (e *OpenAIEmbedder) checkDimension(n int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dimension == 0 {
		e.dimension = n
		return nil
	}
	if n != e.dimension {
		return fmt.Errorf("%w: %s returned %d, expected %d", domain.ErrDimensionMismatch, e.model, n, e.dimension)
	}
	return nil
}

func (e *OpenAIEmbedder) Dimension() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dimension
}

func (e *OpenAIEmbedder) ModelName() string {
	return e.model
}
