package port

import "finrag/internal/domain"

// Reranker reorders and trims search results.
type Reranker interface {
	Rerank(results []domain.SearchResult, k int) []domain.SearchResult
}
