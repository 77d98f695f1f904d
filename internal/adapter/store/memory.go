package store

import (
	"context"
	"sync"

	"finrag/internal/domain"
	"finrag/internal/logger"
)

// MemoryIndex keeps documents in process memory. Nothing survives Close.
type MemoryIndex struct {
	opts Options

	mu   sync.RWMutex
	dim  int
	docs []*domain.IndexedDocument
}

func NewMemoryIndex(opts Options) *MemoryIndex {
	return &MemoryIndex{opts: opts.withDefaults()}
}

func (m *MemoryIndex) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs = nil
	m.dim = 0
	return nil
}

func (m *MemoryIndex) Add(ctx context.Context, chunks []domain.ChunkRecord, embeddings [][]float32) (domain.AddResult, error) {
	return addInBatches(ctx, m, chunks, embeddings, m.opts.BatchSize)
}

func (m *MemoryIndex) insertBatch(ctx context.Context, docs []domain.IndexedDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	dim, err := checkDimensions(m.dim, docs)
	if err != nil {
		return err
	}
	m.dim = dim
	for i := range docs {
		d := docs[i]
		m.docs = append(m.docs, &d)
	}
	return nil
}

func (m *MemoryIndex) Search(ctx context.Context, query []float32, filter domain.Filter, k int) []domain.SearchResult {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := validQuery(query, m.dim); err != nil {
		logger.Warn("search failed: %v", err)
		return []domain.SearchResult{}
	}
	return rank(query, m.docs, filter, k)
}

func (m *MemoryIndex) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs), nil
}

func (m *MemoryIndex) Stats(ctx context.Context) domain.IndexStats {
	n, _ := m.Count(ctx)
	return domain.IndexStats{
		DocumentCount:  n,
		CollectionName: m.opts.Collection,
		Backend:        BackendMemory,
	}
}

func (m *MemoryIndex) Close() error {
	return nil
}
