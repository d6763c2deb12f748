package port

import (
	"context"

	"rental-ingest-service/internal/core/domain"
)

// PageFetcherPort issues one rate-limited, retrying HTTP GET and returns the
// response body. Implementations share a single rate limiter across all call
// sites, so total request issuance stays gated even with concurrent callers.
type PageFetcherPort interface {
	Fetch(ctx context.Context, pageURL string) ([]byte, error)
}

// SearchWalkerPort paginates a search-results URL and invokes visit for every
// candidate detail-page URL, in page order, until the results run out. The
// sequence is finite and not restartable mid-walk.
type SearchWalkerPort interface {
	Walk(ctx context.Context, searchURL string, visit func(ctx context.Context, detailURL string) error) (pages int, links int, err error)
}

// ListingParserPort extracts a raw listing from a detail-page body. Warnings
// carry soft validation findings; the record is still usable when they are
// present. A domain.ErrParse error means the record must be dropped.
type ListingParserPort interface {
	Parse(pageBody []byte, pageURL string) (listing *domain.RawListing, warnings []string, err error)
}
