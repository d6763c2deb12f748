package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Error taxonomy shared across the pipeline. Adapters wrap these so callers can
// branch with errors.Is without knowing the transport.
var (
	// ErrFetchFailed marks a request that exhausted its retries.
	ErrFetchFailed = errors.New("fetch failed")
	// ErrParse marks a page whose structured payload is missing or malformed.
	// The record is dropped; the crawl continues.
	ErrParse = errors.New("page parse failed")
	// ErrStore marks a database failure during reconciliation. Fatal to the run.
	ErrStore = errors.New("store operation failed")
)

// ReconcileSummary is the run artifact emitted once per reconciliation.
type ReconcileSummary struct {
	RunID        uuid.UUID `json:"run_id"`
	SnapshotPath string    `json:"snapshot_path"`

	New       int `json:"new"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	OffMarket int `json:"off_market"`
	Relisted  int `json:"relisted"`

	// NewListingIDs feeds the new-listing webhook notification.
	NewListingIDs []string `json:"new_listing_ids,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// CrawlReport summarizes one crawl run prior to reconciliation.
type CrawlReport struct {
	RunID        uuid.UUID `json:"run_id"`
	SearchURLs   []string  `json:"search_urls"`
	PagesVisited int       `json:"pages_visited"`
	LinksFound   int       `json:"links_found"`
	Parsed       int       `json:"parsed"`
	Failed       int       `json:"failed"`
	SnapshotPath string    `json:"snapshot_path"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}
