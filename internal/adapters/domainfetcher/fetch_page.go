package domainfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"rental-ingest-service/internal/core/domain"
	"rental-ingest-service/internal/core/port"
)

// permanentError marks a failure retrying cannot fix (4xx other than 429,
// non-HTML payloads the site serves to blocked clients).
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Fetch downloads one page body, retrying transient failures with
// exponential backoff. Every attempt goes through the rate limiter first, so
// retries never burst.
func (a *DomainFetcherAdapter) Fetch(ctx context.Context, pageURL string) ([]byte, error) {
	logger := a.logger

	var lastErr error
	for attempt := 0; attempt <= a.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := a.cfg.BackoffBase * time.Duration(1<<(attempt-1))
			logger.Warn("retrying request after backoff", port.Fields{
				"url":     pageURL,
				"attempt": attempt,
				"backoff": backoff.String(),
				"reason":  lastErr.Error(),
			})
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}

		if err := a.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		body, err := a.fetchOnce(pageURL)
		if err == nil {
			return body, nil
		}
		lastErr = err

		var perm *permanentError
		if errors.As(err, &perm) {
			logger.Warn("permanent fetch failure, not retrying", port.Fields{
				"url":   pageURL,
				"error": err.Error(),
			})
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrFetchFailed, pageURL, err)
		}
	}

	return nil, fmt.Errorf("%w: %s after %d retries: %v", domain.ErrFetchFailed, pageURL, a.cfg.MaxRetries, lastErr)
}

// fetchOnce performs a single request on a cloned collector.
func (a *DomainFetcherAdapter) fetchOnce(pageURL string) ([]byte, error) {
	collector := a.collector.Clone()

	var body []byte
	var contentType string
	var responseErr error

	collector.OnResponse(func(r *colly.Response) {
		body = r.Body
		contentType = r.Headers.Get("Content-Type")
	})

	collector.OnError(func(r *colly.Response, err error) {
		status := 0
		if r != nil {
			status = r.StatusCode
		}
		responseErr = classifyHTTPError(status, err)
	})

	if err := collector.Visit(pageURL); err != nil {
		return nil, classifyHTTPError(0, err)
	}
	collector.Wait()

	if responseErr != nil {
		return nil, responseErr
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("empty response body")
	}
	if contentType != "" && !strings.Contains(contentType, "text/html") && !strings.Contains(contentType, "application/json") {
		return nil, fmt.Errorf("unexpected content type %q", contentType)
	}
	return body, nil
}

// classifyHTTPError sorts a failed request into transient (returned as-is,
// retried) or permanent (wrapped, aborts the retry loop). Timeouts, 5xx and
// 429 are transient; the rest of the 4xx range means the request itself is
// wrong or the client is blocked outright.
func classifyHTTPError(status int, err error) error {
	switch {
	case status == 429:
		return fmt.Errorf("rate limited (status 429): %w", err)
	case status >= 500:
		return fmt.Errorf("server error (status %d): %w", status, err)
	case status >= 400:
		return &permanentError{err: fmt.Errorf("client error (status %d): %w", status, err)}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("request timed out: %w", err)
	}
	return err
}
