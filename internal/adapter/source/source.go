// Package source provides document sources: synthetic records, a JSON
// file cache and a rate-limited HTTP API with cache and synthetic fallback.
package source

import (
	"context"

	"finrag/internal/domain"
	"finrag/internal/port"
)

// DefaultTickers is the watch list collected when none is given.
var DefaultTickers = []string{"AAPL", "MSFT", "GOOGL", "AMZN", "NVDA", "META", "TSLA", "JPM", "V", "JNJ"}

func fetchAll(ctx context.Context, s port.DocumentSource, tickers []string) []domain.RawEntityRecord {
	records := make([]domain.RawEntityRecord, 0, len(tickers))
	for _, t := range tickers {
		if ctx.Err() != nil {
			break
		}
		records = append(records, s.Fetch(ctx, t))
	}
	return records
}
