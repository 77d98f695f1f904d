package port

import (
	"context"

	"finrag/internal/domain"
)

// DocumentSource yields raw records per ticker. Fetch never fails: an
// implementation that cannot reach its backend degrades to fallback data.
type DocumentSource interface {
	Fetch(ctx context.Context, ticker string) domain.RawEntityRecord

	FetchAll(ctx context.Context, tickers []string) []domain.RawEntityRecord

	Name() string
}
