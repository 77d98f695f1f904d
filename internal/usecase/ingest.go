package usecase

import (
	"context"
	"fmt"

	"finrag/internal/adapter/cache"
	"finrag/internal/adapter/embedding"
	"finrag/internal/domain"
	"finrag/internal/logger"
	"finrag/internal/port"
)

// IngestUseCase rebuilds the index from a document source.
type IngestUseCase struct {
	source         port.DocumentSource
	processor      *ProcessUseCase
	embedder       port.Embedder
	index          port.VectorIndex
	cache          *cache.QueryCache
	artifactPath   string
	embedBatchSize int
}

// IngestConfig holds the optional parts of an ingest run.
type IngestConfig struct {
	// ArtifactPath receives the processed chunks; empty skips writing.
	ArtifactPath   string
	EmbedBatchSize int
	Cache          *cache.QueryCache
}

// NewIngestUseCase creates a new ingest use case.
func NewIngestUseCase(
	source port.DocumentSource,
	processor *ProcessUseCase,
	embedder port.Embedder,
	index port.VectorIndex,
	cfg IngestConfig,
) *IngestUseCase {
	if cfg.EmbedBatchSize <= 0 {
		cfg.EmbedBatchSize = embedding.DefaultBatchSize
	}
	return &IngestUseCase{
		source:         source,
		processor:      processor,
		embedder:       embedder,
		index:          index,
		cache:          cfg.Cache,
		artifactPath:   cfg.ArtifactPath,
		embedBatchSize: cfg.EmbedBatchSize,
	}
}

// IngestResult contains the results of an ingest run.
type IngestResult struct {
	Entities        int
	EntitiesSkipped int
	Chunks          int
	Added           domain.AddResult
	Errors          []error
}

// Ingest fetches tickers from the source and rebuilds the index.
func (u *IngestUseCase) Ingest(ctx context.Context, tickers []string, progress embedding.ProgressFunc) (*IngestResult, error) {
	logger.Section("Collect")
	records := u.source.FetchAll(ctx, tickers)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return u.IngestRecords(ctx, records, progress)
}

// IngestRecords processes raw records and rebuilds the index from them.
func (u *IngestUseCase) IngestRecords(ctx context.Context, records []domain.RawEntityRecord, progress embedding.ProgressFunc) (*IngestResult, error) {
	logger.Section("Process")
	processed := u.processor.ProcessAll(records)

	if u.artifactPath != "" {
		if err := SaveArtifact(u.artifactPath, processed.Chunks); err != nil {
			return nil, err
		}
		logger.Info("saved %d chunks to %s", len(processed.Chunks), u.artifactPath)
	}

	result, err := u.IngestChunks(ctx, processed.Chunks, progress)
	if err != nil {
		return nil, err
	}
	result.Entities = len(records)
	result.EntitiesSkipped = processed.EntitiesSkipped
	result.Errors = processed.Errors
	return result, nil
}

// IngestChunks resets the index, embeds chunks in batches and adds them.
func (u *IngestUseCase) IngestChunks(ctx context.Context, chunks []domain.ChunkRecord, progress embedding.ProgressFunc) (*IngestResult, error) {
	logger.Section("Index")
	if err := u.index.Reset(ctx); err != nil {
		return nil, fmt.Errorf("failed to reset index: %w", err)
	}
	if u.cache != nil {
		u.cache.Invalidate()
	}

	result := &IngestResult{Chunks: len(chunks)}
	if len(chunks) == 0 {
		logger.Warn("no chunks to index")
		return result, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := embedding.EmbedBatch(ctx, u.embedder, texts, u.embedBatchSize, progress)
	if err != nil {
		return nil, err
	}

	added, err := u.index.Add(ctx, chunks, vectors)
	if err != nil {
		return nil, fmt.Errorf("failed to add chunks: %w", err)
	}
	result.Added = added
	logger.Info("indexed %d/%d chunks (%d failed)", added.Successful, added.Total, added.Failed)
	return result, nil
}
