package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"finrag/internal/domain"
	"finrag/internal/logger"
	"finrag/internal/port"
	"finrag/internal/util"
)

// LiveOptions configures a LiveSource.
type LiveOptions struct {
	// URLTemplate is the record endpoint with "{ticker}" as placeholder.
	URLTemplate string
	// APIKey is sent as a bearer token when set.
	APIKey            string
	CacheDir          string
	RequestsPerSecond float64
	Burst             int
	MaxRetries        int
	RetryDelay        time.Duration
	Timeout           time.Duration
}

// LiveSource fetches records from an HTTP JSON API. Cached records win over
// the network, fetched records are written back to the cache, and failures
// degrade to the fallback source.
type LiveSource struct {
	opts     LiveOptions
	client   *http.Client
	limiter  *rate.Limiter
	cache    *CacheSource
	fallback port.DocumentSource
}

func NewLiveSource(opts LiveOptions, fallback port.DocumentSource) *LiveSource {
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 1
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if fallback == nil {
		fallback = NewSyntheticSource()
	}
	s := &LiveSource{
		opts:     opts,
		client:   &http.Client{Timeout: opts.Timeout},
		limiter:  rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst),
		fallback: fallback,
	}
	if opts.CacheDir != "" {
		s.cache = NewCacheSource(opts.CacheDir, fallback)
	}
	return s
}

func (s *LiveSource) Name() string { return "live" }

func (s *LiveSource) Fetch(ctx context.Context, ticker string) domain.RawEntityRecord {
	if s.cache != nil {
		if record, ok := s.cache.Lookup(ticker); ok {
			logger.Debug("loaded cached data for %s", ticker)
			return record
		}
	}

	record, err := s.fetchRemote(ctx, ticker)
	if err != nil {
		logger.Warn("API failed for %s: %v. Generating %s data.", ticker, err, s.fallback.Name())
		return s.fallback.Fetch(ctx, ticker)
	}

	if s.opts.CacheDir != "" {
		if err := writeJSON(TickerFile(s.opts.CacheDir, ticker), record); err != nil {
			logger.Warn("failed to cache %s: %v", ticker, err)
		}
	}
	return record
}

func (s *LiveSource) FetchAll(ctx context.Context, tickers []string) []domain.RawEntityRecord {
	return fetchAll(ctx, s, tickers)
}

func (s *LiveSource) fetchRemote(ctx context.Context, ticker string) (domain.RawEntityRecord, error) {
	if s.opts.URLTemplate == "" {
		return domain.RawEntityRecord{}, fmt.Errorf("no API endpoint configured")
	}
	url := strings.ReplaceAll(s.opts.URLTemplate, "{ticker}", ticker)

	var record domain.RawEntityRecord
	err := util.Retry(ctx, s.opts.MaxRetries+1, s.opts.RetryDelay, func(ctx context.Context) error {
		if err := s.limiter.Wait(ctx); err != nil {
			return &util.Permanent{Err: err}
		}
		var err error
		record, err = s.get(ctx, url)
		return err
	})
	if err != nil {
		return domain.RawEntityRecord{}, err
	}
	if !usable(record, ticker) {
		return domain.RawEntityRecord{}, fmt.Errorf("response for %s has no documents", ticker)
	}
	return record, nil
}

func (s *LiveSource) get(ctx context.Context, url string) (domain.RawEntityRecord, error) {
	var record domain.RawEntityRecord

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return record, &util.Permanent{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	if s.opts.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.opts.APIKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return record, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		err := fmt.Errorf("API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return record, &util.Permanent{Err: err}
		}
		return record, err
	}

	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		return record, &util.Permanent{Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	return record, nil
}
