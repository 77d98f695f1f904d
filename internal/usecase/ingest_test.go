package usecase

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finrag/internal/adapter/cache"
	"finrag/internal/adapter/embedding"
	"finrag/internal/adapter/source"
	"finrag/internal/adapter/store"
	"finrag/internal/domain"
)

func entity(ticker, company, prefix string) domain.RawEntityRecord {
	return domain.RawEntityRecord{
		Ticker:      ticker,
		CompanyName: company,
		Sector:      "Technology",
		Documents: []domain.RawDocument{
			{Type: domain.DocCompanyOverview, Content: distinctWords(25, prefix), Date: "2024-08-01"},
		},
	}
}

func TestIngestEndToEndRanksOwnEntityFirst(t *testing.T) {
	ctx := context.Background()
	e := embedding.NewHashingEmbedder(embedding.DefaultHashDimension)
	idx := store.NewMemoryIndex(store.Options{BatchSize: 1})
	artifact := filepath.Join(t.TempDir(), "processed", "all_chunks.json")

	src := staticSource{records: map[string]domain.RawEntityRecord{
		"AAA": entity("AAA", "Alpha Corp", "alpha"),
		"BBB": entity("BBB", "Beta Corp", "beta"),
	}}
	ingest := NewIngestUseCase(src, newProcessor(t), e, idx, IngestConfig{ArtifactPath: artifact, EmbedBatchSize: 1})

	var progress []int
	result, err := ingest.Ingest(ctx, []string{"AAA", "BBB"}, func(done, total int) {
		progress = append(progress, done)
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Entities)
	assert.Equal(t, 2, result.Chunks)
	assert.Equal(t, domain.AddResult{Successful: 2, Failed: 0, Total: 2}, result.Added)
	assert.Equal(t, []int{1, 2}, progress)

	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	saved, err := LoadArtifact(artifact)
	require.NoError(t, err)
	require.Len(t, saved, 2)

	retrieve := NewRetrieveUseCase(e, idx, nil, nil, 0)
	res, err := retrieve.Answer(ctx, distinctWords(25, "alpha"), nil, nil, 2)
	require.NoError(t, err)
	require.Len(t, res.Sources, 2)
	assert.Equal(t, "AAA", res.Sources[0].Ticker)
	assert.InDelta(t, 1.0, res.Sources[0].RelevanceScore, 1e-6)
	assert.Less(t, res.Sources[1].RelevanceScore, res.Sources[0].RelevanceScore)
}

func TestIngestResetsBeforeAdding(t *testing.T) {
	ctx := context.Background()
	e := embedding.NewHashingEmbedder(64)
	idx := store.NewMemoryIndex(store.Options{})
	qc := cache.NewQueryCache(10, time.Minute)
	qc.Put("stale", domain.RetrievalResult{Context: "old"})

	ingest := NewIngestUseCase(source.NewSyntheticSource(), newProcessor(t), e, idx, IngestConfig{Cache: qc})

	first, err := ingest.Ingest(ctx, []string{"AAPL"}, nil)
	require.NoError(t, err)
	require.Positive(t, first.Added.Successful)
	assert.Equal(t, 0, qc.Size())

	second, err := ingest.Ingest(ctx, []string{"AAPL"}, nil)
	require.NoError(t, err)

	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.Added.Successful, n)
	assert.Equal(t, first.Added.Successful, n)
}

func TestIngestReportsSkippedEntities(t *testing.T) {
	ctx := context.Background()
	bad := domain.RawEntityRecord{Ticker: "BAD", Documents: []domain.RawDocument{{Type: "Memo", Content: "x", Date: "2024"}}}
	src := staticSource{records: map[string]domain.RawEntityRecord{
		"BAD": bad,
		"AAA": entity("AAA", "Alpha Corp", "alpha"),
	}}
	idx := store.NewMemoryIndex(store.Options{})
	ingest := NewIngestUseCase(src, newProcessor(t), embedding.NewHashingEmbedder(32), idx, IngestConfig{})

	result, err := ingest.Ingest(ctx, []string{"BAD", "AAA"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.EntitiesSkipped)
	require.Len(t, result.Errors, 1)
	assert.ErrorIs(t, result.Errors[0], domain.ErrMalformedRecord)
	assert.Equal(t, 1, result.Added.Successful)
}

func TestIngestChunksEmptyClearsIndex(t *testing.T) {
	ctx := context.Background()
	e := embedding.NewHashingEmbedder(32)
	idx := store.NewMemoryIndex(store.Options{})
	_, err := idx.Add(ctx, []domain.ChunkRecord{{Text: "old", Ticker: "OLD"}}, [][]float32{{1}})
	require.NoError(t, err)

	ingest := NewIngestUseCase(nil, newProcessor(t), e, idx, IngestConfig{})
	result, err := ingest.IngestChunks(ctx, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Chunks)

	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestIngestEmbeddingFailure(t *testing.T) {
	ctx := context.Background()
	idx := store.NewMemoryIndex(store.Options{})
	src := staticSource{records: map[string]domain.RawEntityRecord{"AAA": entity("AAA", "Alpha", "a")}}
	ingest := NewIngestUseCase(src, newProcessor(t), failingEmbedder{}, idx, IngestConfig{})

	_, err := ingest.Ingest(ctx, []string{"AAA"}, nil)
	require.Error(t, err)
}
