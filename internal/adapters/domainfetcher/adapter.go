package domainfetcher

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/gocolly/colly/v2/extensions"

	"rental-ingest-service/internal/configs"
	"rental-ingest-service/internal/core/port"
)

// RateLimiter spaces requests at least one interval apart, plus a random
// jitter so the request rhythm never looks mechanical. Safe for concurrent
// use; callers serialize on the mutex while waiting.
type RateLimiter struct {
	mu           sync.Mutex
	minInterval  time.Duration
	jitterFactor float64
	last         time.Time
}

// NewRateLimiter derives the interval from requests-per-second. A
// non-positive rate disables limiting.
func NewRateLimiter(requestsPerSecond, jitterFactor float64) *RateLimiter {
	var interval time.Duration
	if requestsPerSecond > 0 {
		interval = time.Duration(float64(time.Second) / requestsPerSecond)
	}
	return &RateLimiter{
		minInterval:  interval,
		jitterFactor: jitterFactor,
	}
}

// Wait blocks until the next request slot, or until ctx is cancelled.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.minInterval <= 0 {
		rl.last = time.Now()
		return nil
	}

	wait := rl.minInterval + time.Duration(rand.Float64()*rl.jitterFactor*float64(rl.minInterval))
	elapsed := time.Since(rl.last)
	if !rl.last.IsZero() && elapsed < wait {
		timer := time.NewTimer(wait - elapsed)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	rl.last = time.Now()
	return nil
}

// DomainFetcherAdapter owns all traffic to the listings site: one parent
// collector carries the shared limits and browser-like headers, and every
// request runs on a Clone so handlers never leak between calls.
type DomainFetcherAdapter struct {
	collector *colly.Collector
	limiter   *RateLimiter
	cfg       configs.CrawlerConfig
	logger    port.LoggerPort
}

// NewDomainFetcherAdapter builds the parent collector. AllowedDomains is left
// open on purpose: search URLs may point at regional mirrors, and tests run
// against local servers.
func NewDomainFetcherAdapter(cfg configs.CrawlerConfig, logger port.LoggerPort) *DomainFetcherAdapter {
	c := colly.NewCollector(colly.AllowURLRevisit())
	c.SetRequestTimeout(cfg.RequestTimeout)

	extensions.RandomUserAgent(c)
	extensions.Referer(c)

	return &DomainFetcherAdapter{
		collector: c,
		limiter:   NewRateLimiter(cfg.RequestsPerSecond, cfg.JitterFactor),
		cfg:       cfg,
		logger:    logger,
	}
}

// sleepBetween pauses a random duration from [min, max], honouring ctx.
// Used for the human-ish pauses between listing pages and between search
// areas, on top of the per-request limiter.
func sleepBetween(ctx context.Context, min, max time.Duration) error {
	if max <= 0 || max < min {
		return nil
	}
	d := min
	if span := max - min; span > 0 {
		d += time.Duration(rand.Int63n(int64(span) + 1))
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
