package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"finrag/internal/domain"
	"finrag/internal/logger"
	"finrag/internal/port"
)

// Cache file names under the raw data directory.
const (
	AllStocksFile    = "all_stocks_data.json"
	tickerFileSuffix = "_data.json"
)

// TickerFile returns the per-ticker cache path under dir.
func TickerFile(dir, ticker string) string {
	return filepath.Join(dir, ticker+tickerFileSuffix)
}

// CacheSource reads records collected earlier. Missing or unusable
// entries are served by fallback.
type CacheSource struct {
	dir      string
	fallback port.DocumentSource
}

func NewCacheSource(dir string, fallback port.DocumentSource) *CacheSource {
	if fallback == nil {
		fallback = NewSyntheticSource()
	}
	return &CacheSource{dir: dir, fallback: fallback}
}

func (s *CacheSource) Name() string { return "cache" }

func (s *CacheSource) Fetch(ctx context.Context, ticker string) domain.RawEntityRecord {
	if record, ok := s.Lookup(ticker); ok {
		logger.Debug("loaded cached data for %s", ticker)
		return record
	}
	logger.Warn("no cached data for %s, using %s source", ticker, s.fallback.Name())
	return s.fallback.Fetch(ctx, ticker)
}

func (s *CacheSource) FetchAll(ctx context.Context, tickers []string) []domain.RawEntityRecord {
	return fetchAll(ctx, s, tickers)
}

// Lookup returns the cached record for ticker from its own file or from
// the combined file. A record only counts if its ticker matches and it
// carries at least one document.
func (s *CacheSource) Lookup(ticker string) (domain.RawEntityRecord, bool) {
	var record domain.RawEntityRecord
	err := readJSON(TickerFile(s.dir, ticker), &record)
	if err == nil && usable(record, ticker) {
		return record, true
	}
	if err != nil && !os.IsNotExist(err) {
		logger.Warn("cache corrupt for %s: %v", ticker, err)
	}

	var all []domain.RawEntityRecord
	if err := readJSON(filepath.Join(s.dir, AllStocksFile), &all); err != nil {
		return domain.RawEntityRecord{}, false
	}
	for _, r := range all {
		if usable(r, ticker) {
			return r, true
		}
	}
	return domain.RawEntityRecord{}, false
}

// LoadAll returns the combined file if present, otherwise every per-ticker
// file found in the directory.
func (s *CacheSource) LoadAll() ([]domain.RawEntityRecord, error) {
	var all []domain.RawEntityRecord
	err := readJSON(filepath.Join(s.dir, AllStocksFile), &all)
	if err == nil {
		return all, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read %s: %w", AllStocksFile, err)
	}

	tickers, err := s.Tickers()
	if err != nil {
		return nil, err
	}
	for _, t := range tickers {
		if record, ok := s.Lookup(t); ok {
			all = append(all, record)
		}
	}
	return all, nil
}

// Tickers lists tickers with a per-ticker cache file, sorted.
func (s *CacheSource) Tickers() ([]string, error) {
	matches, err := doublestar.Glob(os.DirFS(s.dir), "*"+tickerFileSuffix)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", s.dir, err)
	}
	var tickers []string
	for _, m := range matches {
		name := filepath.Base(m)
		if name == AllStocksFile {
			continue
		}
		tickers = append(tickers, strings.TrimSuffix(name, tickerFileSuffix))
	}
	sort.Strings(tickers)
	return tickers, nil
}

// WriteCache stores each record in its own file and all of them in the
// combined file.
func WriteCache(dir string, records []domain.RawEntityRecord) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create raw data directory: %w", err)
	}
	for _, r := range records {
		if err := writeJSON(TickerFile(dir, r.Ticker), r); err != nil {
			return err
		}
	}
	if len(records) == 0 {
		return nil
	}
	return writeJSON(filepath.Join(dir, AllStocksFile), records)
}

func usable(r domain.RawEntityRecord, ticker string) bool {
	return r.Ticker == ticker && len(r.Documents) > 0
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
