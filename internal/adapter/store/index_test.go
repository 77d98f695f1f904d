package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finrag/config"
	"finrag/internal/domain"
	"finrag/internal/port"
)

type backendCase struct {
	name       string
	persistent bool
	open       func(t *testing.T, dir string, batchSize int) port.VectorIndex
}

var backends = []backendCase{
	{
		name: BackendMemory,
		open: func(t *testing.T, dir string, batchSize int) port.VectorIndex {
			return NewMemoryIndex(Options{BatchSize: batchSize})
		},
	},
	{
		name:       BackendBolt,
		persistent: true,
		open: func(t *testing.T, dir string, batchSize int) port.VectorIndex {
			idx, err := OpenBolt(Options{Dir: dir, BatchSize: batchSize})
			require.NoError(t, err)
			return idx
		},
	},
	{
		name:       BackendSQLite,
		persistent: true,
		open: func(t *testing.T, dir string, batchSize int) port.VectorIndex {
			idx, err := OpenSQLite(Options{Dir: dir, BatchSize: batchSize})
			require.NoError(t, err)
			return idx
		},
	},
}

func forEachBackend(t *testing.T, fn func(t *testing.T, bc backendCase, dir string)) {
	for _, bc := range backends {
		t.Run(bc.name, func(t *testing.T) {
			fn(t, bc, t.TempDir())
		})
	}
}

func openIndex(t *testing.T, bc backendCase, dir string, batchSize int) port.VectorIndex {
	t.Helper()
	idx := bc.open(t, dir, batchSize)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func chunk(ticker string, typ domain.DocumentType, text string) domain.ChunkRecord {
	return domain.ChunkRecord{
		Text:        text,
		Ticker:      ticker,
		CompanyName: ticker + " Corp",
		Type:        typ,
		Date:        "2024-05-01",
		Metadata:    domain.ChunkMetadata{Sector: "Technology", MarketCap: 1.5e9},
	}
}

func count(t *testing.T, idx port.VectorIndex) int {
	t.Helper()
	n, err := idx.Count(context.Background())
	require.NoError(t, err)
	return n
}

func tickers(results []domain.SearchResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Metadata[domain.MetaTicker]
	}
	return out
}

func TestAddLengthMismatchLeavesIndexUnchanged(t *testing.T) {
	forEachBackend(t, func(t *testing.T, bc backendCase, dir string) {
		ctx := context.Background()
		idx := openIndex(t, bc, dir, 0)

		_, err := idx.Add(ctx, []domain.ChunkRecord{chunk("AAPL", domain.DocNews, "a")}, [][]float32{{1, 0}})
		require.NoError(t, err)

		_, err = idx.Add(ctx,
			[]domain.ChunkRecord{chunk("MSFT", domain.DocNews, "b"), chunk("MSFT", domain.DocNews, "c")},
			[][]float32{{0, 1}})
		assert.ErrorIs(t, err, domain.ErrValidation)
		assert.Equal(t, 1, count(t, idx))
	})
}

func TestRoundTripSelfSimilarity(t *testing.T) {
	forEachBackend(t, func(t *testing.T, bc backendCase, dir string) {
		ctx := context.Background()
		idx := openIndex(t, bc, dir, 0)

		vec := []float32{0.2, -0.4, 0.1, 0.9}
		res, err := idx.Add(ctx,
			[]domain.ChunkRecord{chunk("NVDA", domain.DocTechnicalAnalysis, "gpu demand"), chunk("TSLA", domain.DocNews, "deliveries")},
			[][]float32{vec, {-0.9, 0.1, 0.3, 0}})
		require.NoError(t, err)
		assert.Equal(t, domain.AddResult{Successful: 2, Failed: 0, Total: 2}, res)

		results := idx.Search(ctx, vec, domain.Filter{}, 5)
		require.Len(t, results, 2)
		assert.InDelta(t, 1.0, results[0].Score, 1e-6)
		assert.Equal(t, "gpu demand", results[0].Text)
		assert.NotEmpty(t, results[0].ID)
		assert.GreaterOrEqual(t, results[1].Score, 0.0)

		meta := results[0].Metadata
		assert.Equal(t, "NVDA", meta[domain.MetaTicker])
		assert.Equal(t, "NVDA Corp", meta[domain.MetaCompanyName])
		assert.Equal(t, string(domain.DocTechnicalAnalysis), meta[domain.MetaDocumentType])
		assert.Equal(t, "2024-05-01", meta[domain.MetaDate])
		assert.Equal(t, "0", meta[domain.MetaChunkID])
		assert.Equal(t, "1500000000", meta[domain.MetaMarketCap])
	})
}

func TestResetClearsEverything(t *testing.T) {
	forEachBackend(t, func(t *testing.T, bc backendCase, dir string) {
		ctx := context.Background()
		idx := openIndex(t, bc, dir, 0)

		_, err := idx.Add(ctx, []domain.ChunkRecord{chunk("V", domain.DocNews, "x")}, [][]float32{{1, 1, 1}})
		require.NoError(t, err)
		require.NoError(t, idx.Reset(ctx))

		assert.Equal(t, 0, count(t, idx))
		assert.Empty(t, idx.Search(ctx, []float32{1, 1, 1}, domain.Filter{}, 5))

		// The dimension is forgotten with the data.
		_, err = idx.Add(ctx, []domain.ChunkRecord{chunk("V", domain.DocNews, "y")}, [][]float32{{1, 0}})
		require.NoError(t, err)
		assert.Equal(t, 1, count(t, idx))
	})
}

func TestFilterConjunction(t *testing.T) {
	forEachBackend(t, func(t *testing.T, bc backendCase, dir string) {
		ctx := context.Background()
		idx := openIndex(t, bc, dir, 0)

		_, err := idx.Add(ctx,
			[]domain.ChunkRecord{
				chunk("A", domain.DocNews, "a"),
				chunk("B", domain.DocTradingSignals, "b"),
				chunk("C", domain.DocNews, "c"),
			},
			[][]float32{{1, 0}, {0.9, 0.1}, {0.8, 0.2}})
		require.NoError(t, err)

		q := []float32{1, 0}
		got := idx.Search(ctx, q, domain.NewFilter([]string{"A", "B"}, []string{string(domain.DocNews)}), 10)
		assert.Equal(t, []string{"A"}, tickers(got))

		got = idx.Search(ctx, q, domain.NewFilter(nil, []string{string(domain.DocNews)}), 10)
		assert.Equal(t, []string{"A", "C"}, tickers(got))

		got = idx.Search(ctx, q, domain.NewFilter([]string{"B", "C"}, nil), 10)
		assert.Equal(t, []string{"B", "C"}, tickers(got))

		got = idx.Search(ctx, q, domain.NewFilter([]string{"Z"}, nil), 10)
		assert.Empty(t, got)

		got = idx.Search(ctx, q, domain.Filter{}, 2)
		assert.Equal(t, []string{"A", "B"}, tickers(got))
	})
}

func TestSearchTieBreakByID(t *testing.T) {
	forEachBackend(t, func(t *testing.T, bc backendCase, dir string) {
		ctx := context.Background()
		idx := openIndex(t, bc, dir, 0)

		chunks := make([]domain.ChunkRecord, 4)
		vecs := make([][]float32, 4)
		for i := range chunks {
			chunks[i] = chunk(fmt.Sprintf("T%d", i), domain.DocNews, "same")
			vecs[i] = []float32{0.5, 0.5}
		}
		_, err := idx.Add(ctx, chunks, vecs)
		require.NoError(t, err)

		results := idx.Search(ctx, []float32{1, 1}, domain.Filter{}, 4)
		require.Len(t, results, 4)
		for i := 1; i < len(results); i++ {
			assert.Less(t, results[i-1].ID, results[i].ID)
		}
	})
}

func TestSearchSoftFailsOnBadQuery(t *testing.T) {
	forEachBackend(t, func(t *testing.T, bc backendCase, dir string) {
		ctx := context.Background()
		idx := openIndex(t, bc, dir, 0)

		_, err := idx.Add(ctx, []domain.ChunkRecord{chunk("JNJ", domain.DocNews, "x")}, [][]float32{{1, 0, 0}})
		require.NoError(t, err)

		assert.Empty(t, idx.Search(ctx, []float32{1, 0}, domain.Filter{}, 3))
		assert.Empty(t, idx.Search(ctx, nil, domain.Filter{}, 3))
		assert.Empty(t, idx.Search(ctx, []float32{1, 0, 0}, domain.Filter{}, 0))
	})
}

func TestPartialBatchFailureIsCounted(t *testing.T) {
	forEachBackend(t, func(t *testing.T, bc backendCase, dir string) {
		ctx := context.Background()
		idx := openIndex(t, bc, dir, 2)

		chunks := make([]domain.ChunkRecord, 5)
		for i := range chunks {
			chunks[i] = chunk("META", domain.DocNews, fmt.Sprintf("doc %d", i))
		}
		vecs := [][]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}, {1, 1, 1, 1}, {1, 1, 0}}

		res, err := idx.Add(ctx, chunks, vecs)
		require.NoError(t, err)
		assert.Equal(t, domain.AddResult{Successful: 3, Failed: 2, Total: 5}, res)
		assert.Equal(t, 3, count(t, idx))
	})
}

func TestPersistentBackendsSurviveReopen(t *testing.T) {
	forEachBackend(t, func(t *testing.T, bc backendCase, dir string) {
		if !bc.persistent {
			t.Skip("ephemeral backend")
		}
		ctx := context.Background()

		idx := bc.open(t, dir, 0)
		_, err := idx.Add(ctx, []domain.ChunkRecord{chunk("GOOGL", domain.DocCompanyOverview, "search ads")}, [][]float32{{0.3, 0.4}})
		require.NoError(t, err)
		require.NoError(t, idx.Close())

		reopened := openIndex(t, bc, dir, 0)
		assert.Equal(t, 1, count(t, reopened))
		results := reopened.Search(ctx, []float32{0.3, 0.4}, domain.Filter{}, 1)
		require.Len(t, results, 1)
		assert.Equal(t, "search ads", results[0].Text)
		assert.InDelta(t, 1.0, results[0].Score, 1e-6)

		stats := reopened.Stats(ctx)
		assert.Equal(t, 1, stats.DocumentCount)
		assert.Equal(t, DefaultCollection, stats.CollectionName)
		assert.Equal(t, bc.name, stats.Backend)
		assert.Equal(t, dir, stats.Directory)
	})
}

func TestCollectionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	a, err := OpenSQLite(Options{Dir: dir, Collection: "a"})
	require.NoError(t, err)
	defer a.Close()
	b, err := OpenSQLite(Options{Dir: dir, Collection: "b"})
	require.NoError(t, err)
	defer b.Close()

	_, err = a.Add(ctx, []domain.ChunkRecord{chunk("AMZN", domain.DocNews, "aws")}, [][]float32{{1, 0}})
	require.NoError(t, err)
	require.NoError(t, b.Reset(ctx))

	assert.Equal(t, 1, count(t, a))
	assert.Equal(t, 0, count(t, b))
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open("chroma", Options{Dir: t.TempDir()})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestMigrationCheck(t *testing.T) {
	for _, name := range []string{BackendBolt, BackendSQLite} {
		t.Run(name, func(t *testing.T) {
			idx, err := Open(name, Options{Dir: t.TempDir()})
			require.NoError(t, err)
			defer idx.Close()
			m, ok := idx.(Migrator)
			require.True(t, ok)

			cfg := config.DefaultConfig()
			result, err := CheckMigration(m, cfg)
			require.NoError(t, err)
			assert.True(t, result.NeedsMigration)
			assert.False(t, result.NeedsRebuild)

			require.NoError(t, Migrate(m, cfg))
			rebuild, _, err := NeedsRebuild(m, cfg)
			require.NoError(t, err)
			assert.False(t, rebuild)

			changed := config.DefaultConfig()
			changed.Embedding.Model = "nomic-embed-text"
			rebuild, reason, err := NeedsRebuild(m, changed)
			require.NoError(t, err)
			assert.True(t, rebuild)
			assert.Contains(t, reason, "configuration changed")
		})
	}
}
