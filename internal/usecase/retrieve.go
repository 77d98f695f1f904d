package usecase

import (
	"context"
	"fmt"
	"strings"

	"finrag/internal/adapter/cache"
	"finrag/internal/adapter/embedding"
	"finrag/internal/domain"
	"finrag/internal/logger"
	"finrag/internal/port"
)

const (
	// MaxContextDocuments bounds how many results reach the prompt.
	MaxContextDocuments = 5
	// SnippetLength is the number of characters kept in a source snippet.
	SnippetLength = 200
	// NoDocumentsContext is the context handed to the generator when
	// nothing was retrieved.
	NoDocumentsContext = "No relevant documents found."
)

// RetrieveUseCase embeds a query, searches the index and assembles the
// context and sources for a text generator.
type RetrieveUseCase struct {
	embedder          port.Embedder
	index             port.VectorIndex
	reranker          port.Reranker     // nil disables diversification
	cache             *cache.QueryCache // nil disables caching
	minScoreThreshold float64           // Filter results below this score (0 = disabled)
}

// NewRetrieveUseCase creates a new retrieve use case.
func NewRetrieveUseCase(
	embedder port.Embedder,
	index port.VectorIndex,
	reranker port.Reranker,
	queryCache *cache.QueryCache,
	minScoreThreshold float64,
) *RetrieveUseCase {
	return &RetrieveUseCase{
		embedder:          embedder,
		index:             index,
		reranker:          reranker,
		cache:             queryCache,
		minScoreThreshold: minScoreThreshold,
	}
}

// Answer retrieves the topK chunks for query restricted to tickers and
// document types (empty means unrestricted). Only an embedding failure is
// returned as an error; search failures yield an empty result.
func (u *RetrieveUseCase) Answer(ctx context.Context, query string, tickers, docTypes []string, topK int) (domain.RetrievalResult, error) {
	filter := domain.NewFilter(tickers, docTypes)

	var key string
	if u.cache != nil {
		key = cache.Key(query, filter, topK)
		if cached, ok := u.cache.Get(key); ok {
			logger.Debug("query cache hit")
			return cached, nil
		}
	}

	results, err := u.Retrieve(ctx, query, filter, topK)
	if err != nil {
		return domain.RetrievalResult{}, err
	}

	out := domain.RetrievalResult{
		Context: BuildContext(results),
		Sources: FormatSources(results),
		Results: results,
	}
	if u.cache != nil {
		u.cache.Put(key, out)
	}
	return out, nil
}

// Retrieve returns ranked search results for query.
func (u *RetrieveUseCase) Retrieve(ctx context.Context, query string, filter domain.Filter, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 {
		return []domain.SearchResult{}, nil
	}

	vec, err := embedding.EmbedText(ctx, u.embedder, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	fetch := topK
	if u.reranker != nil {
		fetch = topK * 2
	}
	results := u.index.Search(ctx, vec, filter, fetch)
	logger.Debug("search returned %d candidates for %q", len(results), query)

	if u.reranker != nil {
		results = u.reranker.Rerank(results, topK)
	}
	if u.minScoreThreshold > 0 {
		results = u.filterByThreshold(results)
	}
	return results, nil
}

// filterByThreshold removes results below the minimum score threshold.
func (u *RetrieveUseCase) filterByThreshold(results []domain.SearchResult) []domain.SearchResult {
	filtered := make([]domain.SearchResult, 0, len(results))
	for _, r := range results {
		if r.Score >= u.minScoreThreshold {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

// BuildContext renders the first MaxContextDocuments results as labelled
// blocks separated by blank lines.
func BuildContext(results []domain.SearchResult) string {
	if len(results) == 0 {
		return NoDocumentsContext
	}

	n := min(len(results), MaxContextDocuments)
	blocks := make([]string, n)
	for i := 0; i < n; i++ {
		r := results[i]
		blocks[i] = fmt.Sprintf("Document %d:\nCompany: %s - %s\nType: %s\nContent: %s",
			i+1,
			metaOr(r.Metadata, domain.MetaTicker, "Unknown"),
			r.Metadata[domain.MetaCompanyName],
			metaOr(r.Metadata, domain.MetaDocumentType, "Unknown"),
			r.Text)
	}
	return strings.Join(blocks, "\n\n")
}

// FormatSources trims every result for display.
func FormatSources(results []domain.SearchResult) []domain.Source {
	sources := make([]domain.Source, len(results))
	for i, r := range results {
		sources[i] = domain.Source{
			Ticker:         metaOr(r.Metadata, domain.MetaTicker, "Unknown"),
			Type:           metaOr(r.Metadata, domain.MetaDocumentType, "Unknown"),
			Date:           metaOr(r.Metadata, domain.MetaDate, "Unknown"),
			RelevanceScore: r.Score,
			Snippet:        snippet(r.Text),
		}
	}
	return sources
}

func snippet(text string) string {
	runes := []rune(text)
	if len(runes) <= SnippetLength {
		return text
	}
	return string(runes[:SnippetLength]) + "..."
}

func metaOr(m map[string]string, key, fallback string) string {
	if v := m[key]; v != "" {
		return v
	}
	return fallback
}
