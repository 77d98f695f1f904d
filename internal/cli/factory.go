package cli

import (
	"fmt"
	"time"

	"finrag/config"
	"finrag/internal/adapter/cache"
	"finrag/internal/adapter/chunker"
	"finrag/internal/adapter/embedding"
	"finrag/internal/adapter/llm"
	"finrag/internal/adapter/openaicompat"
	"finrag/internal/adapter/retriever"
	"finrag/internal/adapter/source"
	"finrag/internal/adapter/store"
	"finrag/internal/logger"
	"finrag/internal/port"
	"finrag/internal/usecase"
)

// openIndex opens the configured vector index under dir.
func openIndex(cfg *config.Config, dir string) (port.VectorIndex, error) {
	idx, err := store.Open(cfg.Index.Backend, store.Options{
		Dir:        cfg.IndexDir(dir),
		Collection: cfg.Index.Collection,
		BatchSize:  cfg.Index.BatchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s index: %w", cfg.Index.Backend, err)
	}
	return idx, nil
}

func newEmbedder(cfg *config.Config) (port.Embedder, error) {
	return embedding.New(cfg.Embedding.Provider, embedding.Options{
		BaseURL:    cfg.Embedding.BaseURL,
		APIKey:     openaicompat.APIKey(cfg.Embedding.APIKeyEnv),
		Model:      cfg.Embedding.Model,
		Dimension:  cfg.Embedding.Dimension,
		MaxRetries: cfg.Embedding.MaxRetries,
		RetryDelay: cfg.EmbeddingRetryDelay(),
	})
}

func newGenerator(cfg *config.Config) (port.TextGenerator, error) {
	gen, err := llm.NewGenerator(llm.Options{
		Provider:    cfg.LLM.Provider,
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      openaicompat.APIKey(cfg.LLM.APIKeyEnv),
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		MaxRetries:  cfg.LLM.MaxRetries,
		RetryDelay:  cfg.LLMRetryDelay(),
		Timeout:     time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		return nil, err
	}
	return gen, nil
}

// newSource returns the configured document source. Every kind falls back
// to synthetic records.
func newSource(cfg *config.Config, dir string) port.DocumentSource {
	synthetic := source.NewSyntheticSource()
	switch cfg.Source.Kind {
	case "synthetic":
		return synthetic
	case "live":
		return source.NewLiveSource(source.LiveOptions{
			URLTemplate:       cfg.Source.URLTemplate,
			APIKey:            openaicompat.APIKey(cfg.Source.APIKeyEnv),
			CacheDir:          cfg.RawDir(dir),
			RequestsPerSecond: cfg.Source.RequestsPerSecond,
			Burst:             cfg.Source.Burst,
			MaxRetries:        cfg.Source.MaxRetries,
			RetryDelay:        cfg.SourceRetryDelay(),
		}, synthetic)
	default:
		return source.NewCacheSource(cfg.RawDir(dir), synthetic)
	}
}

func newProcessor(cfg *config.Config) (*usecase.ProcessUseCase, error) {
	chk, err := chunker.NewWordChunker(cfg.Chunking.Size, cfg.Chunking.Overlap)
	if err != nil {
		return nil, err
	}
	return usecase.NewProcessUseCase(chk), nil
}

func newQueryCache(cfg *config.Config) *cache.QueryCache {
	if cfg.Retrieve.CacheSize <= 0 {
		return nil
	}
	return cache.NewQueryCache(cfg.Retrieve.CacheSize, cfg.CacheTTL())
}

func newRetrieveUseCase(cfg *config.Config, embedder port.Embedder, index port.VectorIndex, qc *cache.QueryCache) *usecase.RetrieveUseCase {
	var reranker port.Reranker
	if cfg.Retrieve.MMREnabled {
		reranker = retriever.NewMMRReranker(cfg.Retrieve.MMRLambda, cfg.Retrieve.DedupJaccard)
	}
	return usecase.NewRetrieveUseCase(embedder, index, reranker, qc, cfg.Retrieve.MinScoreThreshold)
}

// checkSchema warns when the stored vectors were produced with different
// chunking or embedding settings.
func checkSchema(cfg *config.Config, index port.VectorIndex) {
	m, ok := index.(store.Migrator)
	if !ok {
		return
	}
	stale, reason, err := store.NeedsRebuild(m, cfg)
	if err != nil {
		logger.Warn("failed to check index schema: %v", err)
		return
	}
	if stale {
		logger.Warn("index is stale (%s); run 'finrag ingest' to rebuild", reason)
	}
}

// retrievalSession is everything a query-side command needs.
type retrievalSession struct {
	index    port.VectorIndex
	retrieve *usecase.RetrieveUseCase
}

func (s *retrievalSession) Close() error {
	return s.index.Close()
}

func openRetrievalSession(cfg *config.Config, dir string) (*retrievalSession, error) {
	embedder, err := newEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	index, err := openIndex(cfg, dir)
	if err != nil {
		return nil, err
	}
	checkSchema(cfg, index)
	return &retrievalSession{
		index:    index,
		retrieve: newRetrieveUseCase(cfg, embedder, index, newQueryCache(cfg)),
	}, nil
}
