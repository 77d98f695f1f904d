package source

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finrag/internal/domain"
)

func record(ticker string) domain.RawEntityRecord {
	return domain.RawEntityRecord{
		Ticker:      ticker,
		CompanyName: ticker + " Holdings",
		Sector:      "Financial Services",
		Documents: []domain.RawDocument{
			{Type: domain.DocNews, Content: "cached news for " + ticker, Date: "2024-06-01"},
		},
	}
}

func TestSyntheticSourceProducesValidRecords(t *testing.T) {
	s := NewSyntheticSource()
	records := s.FetchAll(context.Background(), DefaultTickers)
	require.Len(t, records, len(DefaultTickers))

	for i, r := range records {
		assert.Equal(t, DefaultTickers[i], r.Ticker)
		assert.NotEmpty(t, r.CompanyName)
		require.NotEmpty(t, r.Documents)
		for _, d := range r.Documents {
			assert.True(t, d.Type.Valid())
			assert.NotEmpty(t, d.Date)
			assert.Greater(t, len(strings.Fields(d.Content)), 20, "%s %s", r.Ticker, d.Type)
		}
	}
	assert.Equal(t, "Apple Inc.", records[0].CompanyName)
	assert.Equal(t, "ZZZ Corporation", s.Fetch(context.Background(), "ZZZ").CompanyName)
}

func TestWriteCacheAndLookup(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, WriteCache(dir, []domain.RawEntityRecord{record("JPM"), record("V")}))

	s := NewCacheSource(dir, nil)
	tickers, err := s.Tickers()
	require.NoError(t, err)
	assert.Equal(t, []string{"JPM", "V"}, tickers)

	got := s.Fetch(context.Background(), "JPM")
	assert.Equal(t, record("JPM"), got)

	all, err := s.LoadAll()
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestCacheFallsBackToCombinedFileThenSynthetic(t *testing.T) {
	dir := t.TempDir()
	data, err := json.Marshal([]domain.RawEntityRecord{record("TSLA")})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, AllStocksFile), data, 0644))
	// A per-ticker file for the wrong ticker is ignored.
	require.NoError(t, os.WriteFile(TickerFile(dir, "AMZN"), []byte(`{"ticker":"AAPL","documents":[]}`), 0644))

	s := NewCacheSource(dir, nil)
	assert.Equal(t, "TSLA Holdings", s.Fetch(context.Background(), "TSLA").CompanyName)
	assert.Equal(t, "Amazon.com, Inc.", s.Fetch(context.Background(), "AMZN").CompanyName)
}

func TestLoadAllWithoutCombinedFile(t *testing.T) {
	dir := t.TempDir()
	for _, tk := range []string{"NVDA", "META"} {
		data, err := json.Marshal(record(tk))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(TickerFile(dir, tk), data, 0644))
	}
	all, err := NewCacheSource(dir, nil).LoadAll()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "META", all[0].Ticker)
}

func TestLiveSourceFetchesRetriesAndCaches(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		assert.Equal(t, "/stocks/GOOGL", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(record("GOOGL"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	s := NewLiveSource(LiveOptions{
		URLTemplate:       srv.URL + "/stocks/{ticker}",
		APIKey:            "secret",
		CacheDir:          dir,
		RequestsPerSecond: 100,
		Burst:             10,
		MaxRetries:        2,
		RetryDelay:        time.Millisecond,
	}, nil)

	got := s.Fetch(context.Background(), "GOOGL")
	assert.Equal(t, record("GOOGL"), got)
	assert.Equal(t, int32(2), hits.Load())
	assert.FileExists(t, TickerFile(dir, "GOOGL"))

	// Second fetch is served from the cache.
	got = s.Fetch(context.Background(), "GOOGL")
	assert.Equal(t, record("GOOGL"), got)
	assert.Equal(t, int32(2), hits.Load())
}

func TestLiveSourceFallsBackToSynthetic(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	s := NewLiveSource(LiveOptions{
		URLTemplate:       srv.URL + "/{ticker}",
		RequestsPerSecond: 100,
		MaxRetries:        3,
		RetryDelay:        time.Millisecond,
	}, nil)

	got := s.Fetch(context.Background(), "MSFT")
	assert.Equal(t, "Microsoft Corporation", got.CompanyName)
	assert.NotEmpty(t, got.Documents)
	assert.Equal(t, int32(1), hits.Load(), "client errors are not retried")
}

func TestLiveSourceWithoutEndpoint(t *testing.T) {
	got := NewLiveSource(LiveOptions{}, nil).Fetch(context.Background(), "JNJ")
	assert.Equal(t, "Johnson & Johnson", got.CompanyName)
}
