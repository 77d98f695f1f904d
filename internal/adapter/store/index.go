package store

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"

	"finrag/internal/domain"
	"finrag/internal/logger"
	"finrag/internal/port"
)

// Backend names accepted by Open.
const (
	BackendBolt   = "bolt"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

const (
	DefaultCollection = "financial_documents"
	DefaultBatchSize  = 100
)

// Options configures a vector index.
type Options struct {
	// Dir holds the index file. Ignored by the memory backend.
	Dir        string
	Collection string
	BatchSize  int
}

func (o Options) withDefaults() Options {
	if o.Collection == "" {
		o.Collection = DefaultCollection
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	return o
}

// Open returns the index for backend.
func Open(backend string, opts Options) (port.VectorIndex, error) {
	switch backend {
	case "", BackendBolt:
		return OpenBolt(opts)
	case BackendSQLite:
		return OpenSQLite(opts)
	case BackendMemory:
		return NewMemoryIndex(opts), nil
	}
	return nil, fmt.Errorf("%w: unknown index backend %q", domain.ErrValidation, backend)
}

// batchInserter stores one batch atomically: either every document of the
// batch is stored or none is.
type batchInserter interface {
	insertBatch(ctx context.Context, docs []domain.IndexedDocument) error
}

// addInBatches validates the input, assigns IDs and hands fixed-size
// batches to the backend. A failing batch is counted and skipped.
func addInBatches(ctx context.Context, ins batchInserter, chunks []domain.ChunkRecord, embeddings [][]float32, batchSize int) (domain.AddResult, error) {
	if len(chunks) != len(embeddings) {
		return domain.AddResult{}, fmt.Errorf("%w: %d chunks but %d embeddings",
			domain.ErrValidation, len(chunks), len(embeddings))
	}

	result := domain.AddResult{Total: len(chunks)}
	for start := 0; start < len(chunks); start += batchSize {
		end := min(start+batchSize, len(chunks))

		docs := make([]domain.IndexedDocument, 0, end-start)
		for i := start; i < end; i++ {
			docs = append(docs, domain.IndexedDocument{
				ID:       uuid.NewString(),
				Vector:   embeddings[i],
				Text:     chunks[i].Text,
				Metadata: chunks[i].FlatMetadata(),
			})
		}

		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := ins.insertBatch(ctx, docs); err != nil {
			logger.Warn("index batch %d-%d failed: %v", start, end, err)
			result.Failed += len(docs)
			continue
		}
		result.Successful += len(docs)
		logger.Debug("indexed batch %d-%d", start, end)
	}
	return result, nil
}

// checkDimensions verifies every vector has width dim. A dim of zero
// adopts the width of the first vector and returns it.
func checkDimensions(dim int, docs []domain.IndexedDocument) (int, error) {
	for _, d := range docs {
		if len(d.Vector) == 0 {
			return dim, fmt.Errorf("%w: empty vector for %s", domain.ErrDimensionMismatch, d.ID)
		}
		if dim == 0 {
			dim = len(d.Vector)
		}
		if len(d.Vector) != dim {
			return dim, fmt.Errorf("%w: expected %d, got %d", domain.ErrDimensionMismatch, dim, len(d.Vector))
		}
	}
	return dim, nil
}

type scored struct {
	doc *domain.IndexedDocument
	sim float64
}

// rank applies filter, scores by cosine similarity and returns the best k,
// ordered by similarity then ID.
func rank(query []float32, docs []*domain.IndexedDocument, filter domain.Filter, k int) []domain.SearchResult {
	if k <= 0 {
		return []domain.SearchResult{}
	}

	scores := make([]scored, 0, len(docs))
	for _, d := range docs {
		if !filter.Matches(d.Metadata) {
			continue
		}
		scores = append(scores, scored{doc: d, sim: cosineSimilarity(query, d.Vector)})
	}

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].sim != scores[j].sim {
			return scores[i].sim > scores[j].sim
		}
		return scores[i].doc.ID < scores[j].doc.ID
	})

	if k > len(scores) {
		k = len(scores)
	}
	results := make([]domain.SearchResult, k)
	for i := 0; i < k; i++ {
		d := scores[i].doc
		results[i] = domain.SearchResult{
			ID:       d.ID,
			Score:    clampScore(scores[i].sim),
			Text:     d.Text,
			Metadata: copyMetadata(d.Metadata),
		}
	}
	return results
}

func clampScore(sim float64) float64 {
	return math.Max(0, math.Min(1, sim))
}

func copyMetadata(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// cosineSimilarity calculates the cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// validQuery reports why a query cannot be scored against an index of
// width dim, or nil.
func validQuery(query []float32, dim int) error {
	if len(query) == 0 {
		return fmt.Errorf("%w: empty query vector", domain.ErrDimensionMismatch)
	}
	if dim != 0 && len(query) != dim {
		return fmt.Errorf("%w: query has %d dimensions, index has %d", domain.ErrDimensionMismatch, len(query), dim)
	}
	return nil
}
