package domainfetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rental-ingest-service/internal/configs"
	"rental-ingest-service/internal/contextkeys"
	"rental-ingest-service/internal/core/domain"
)

func testCrawlerConfig() configs.CrawlerConfig {
	return configs.CrawlerConfig{
		RequestsPerSecond:       1000,
		JitterFactor:            0,
		MaxRetries:              3,
		BackoffBase:             time.Millisecond,
		RequestTimeout:          5 * time.Second,
		ResultsPerPageThreshold: 2,
	}
}

func newTestFetcher(cfg configs.CrawlerConfig) *DomainFetcherAdapter {
	return NewDomainFetcherAdapter(cfg, contextkeys.LoggerFromContext(context.Background()))
}

func TestFetch_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html>listing page</html>"))
	}))
	defer server.Close()

	fetcher := newTestFetcher(testCrawlerConfig())

	body, err := fetcher.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Contains(t, string(body), "listing page")
}

func TestFetch_RetriesTransientServerError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>recovered</html>"))
	}))
	defer server.Close()

	fetcher := newTestFetcher(testCrawlerConfig())

	body, err := fetcher.Fetch(context.Background(), server.URL+"/listing")
	require.NoError(t, err)
	assert.Contains(t, string(body), "recovered")
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFetch_RetriesRateLimited(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>ok</html>"))
	}))
	defer server.Close()

	fetcher := newTestFetcher(testCrawlerConfig())

	_, err := fetcher.Fetch(context.Background(), server.URL+"/listing")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFetch_PermanentClientErrorDoesNotRetry(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusGone)
	}))
	defer server.Close()

	fetcher := newTestFetcher(testCrawlerConfig())

	_, err := fetcher.Fetch(context.Background(), server.URL+"/listing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrFetchFailed))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFetch_ExhaustedRetriesReturnsFetchFailed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := testCrawlerConfig()
	cfg.MaxRetries = 1
	fetcher := newTestFetcher(cfg)

	_, err := fetcher.Fetch(context.Background(), server.URL+"/listing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrFetchFailed))
}

func TestFetch_EmptyBodyIsTransient(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Content-Type", "text/html")
			return // 200 with empty body
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>filled</html>"))
	}))
	defer server.Close()

	fetcher := newTestFetcher(testCrawlerConfig())

	body, err := fetcher.Fetch(context.Background(), server.URL+"/listing")
	require.NoError(t, err)
	assert.Contains(t, string(body), "filled")
}

func TestFetch_UnexpectedContentTypeIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte{0x89, 0x50})
	}))
	defer server.Close()

	cfg := testCrawlerConfig()
	cfg.MaxRetries = 1
	fetcher := newTestFetcher(cfg)

	_, err := fetcher.Fetch(context.Background(), server.URL+"/listing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrFetchFailed))
}

func TestFetch_ContextCancelStopsRetryLoop(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := testCrawlerConfig()
	cfg.BackoffBase = time.Hour // retry would block without cancellation
	fetcher := newTestFetcher(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := fetcher.Fetch(ctx, server.URL+"/listing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestRateLimiter_SpacesRequests(t *testing.T) {
	limiter := NewRateLimiter(20, 0) // 50ms interval

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, limiter.Wait(context.Background()))
	}
	elapsed := time.Since(start)

	// First call is free; the next two wait ~50ms each.
	assert.GreaterOrEqual(t, elapsed, 90*time.Millisecond)
}

func TestRateLimiter_ZeroRateDisablesLimiting(t *testing.T) {
	limiter := NewRateLimiter(0, 0.5)

	start := time.Now()
	for i := 0; i < 100; i++ {
		require.NoError(t, limiter.Wait(context.Background()))
	}
	assert.Less(t, time.Since(start), time.Second)
}

func TestRateLimiter_RespectsContextCancellation(t *testing.T) {
	limiter := NewRateLimiter(0.1, 0) // 10s interval
	require.NoError(t, limiter.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := limiter.Wait(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
