package embedding

import (
	"context"
	"fmt"
	"math"

	"finrag/internal/domain"
	"finrag/internal/port"
)

// DefaultBatchSize is the number of texts sent per Embed call during ingest.
const DefaultBatchSize = 32

// ProgressFunc is called after each batch with the number of texts embedded so far.
type ProgressFunc func(done, total int)

// EmbedText embeds a single text.
func EmbedText(ctx context.Context, e port.Embedder, text string) ([]float32, error) {
	vecs, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embedder %s returned %d vectors for 1 text", e.ModelName(), len(vecs))
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in batches of batchSize, preserving order.
func EmbedBatch(ctx context.Context, e port.Embedder, texts []string, batchSize int, progress ProgressFunc) ([][]float32, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("%w: batch size %d", domain.ErrValidation, batchSize)
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+batchSize, len(texts))

		vecs, err := e.Embed(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("failed to embed batch %d-%d: %w", start, end, err)
		}
		if len(vecs) != end-start {
			return nil, fmt.Errorf("embedder %s returned %d vectors for %d texts", e.ModelName(), len(vecs), end-start)
		}
		out = append(out, vecs...)

		if progress != nil {
			progress(end, len(texts))
		}
	}
	return out, nil
}

// Normalize scales v to unit length in place. Zero vectors are left as is.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := 1 / math.Sqrt(sum)
	for i, x := range v {
		v[i] = float32(float64(x) * inv)
	}
	return v
}

// New returns the embedder for provider: "local", "openai" or "ollama".
func New(provider string, opts Options) (port.Embedder, error) {
	switch provider {
	case "", "local":
		return NewHashingEmbedder(opts.Dimension), nil
	case "openai":
		return NewOpenAIEmbedder(opts)
	case "ollama":
		return NewOllamaEmbedder(opts)
	}
	return nil, fmt.Errorf("%w: unknown embedding provider %q", domain.ErrEmbeddingUnavailable, provider)
}
