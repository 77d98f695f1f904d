package port

import (
	"context"

	"finrag/internal/domain"
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates embeddings for the given texts.
	// Returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string
}

// VectorIndex stores indexed documents for one named collection and
// serves filtered similarity search over them.
type VectorIndex interface {
	// Reset drops every document in the collection.
	Reset(ctx context.Context) error

	// Add inserts one document per chunk. Chunks and embeddings must have
	// equal length. Batch failures are counted, not returned.
	Add(ctx context.Context, chunks []domain.ChunkRecord, embeddings [][]float32) (domain.AddResult, error)

	// Search returns up to k documents matching filter, best first.
	// Internal failures yield an empty slice.
	Search(ctx context.Context, query []float32, filter domain.Filter, k int) []domain.SearchResult

	// Count returns the number of documents in the collection.
	Count(ctx context.Context) (int, error)

	// Stats describes the collection.
	Stats(ctx context.Context) domain.IndexStats

	// Close releases the underlying storage.
	Close() error
}
