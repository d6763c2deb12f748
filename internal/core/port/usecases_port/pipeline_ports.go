package usecases_port

import (
	"context"

	"rental-ingest-service/internal/core/domain"
)

// ClassifyFeaturesPort turns the raw feature bag of one listing into the fixed
// three-state flag map.
type ClassifyFeaturesPort interface {
	Execute(featureTags []string, headline, description string) domain.ClassifiedFeatures
}

// ProcessListingPort handles one detail-page URL end to end: fetch, parse,
// classify, buffer into the snapshot.
type ProcessListingPort interface {
	Execute(ctx context.Context, detailURL string) error
}

// CrawlSearchPort runs the full crawl over the configured search URLs and
// flushes the snapshot.
type CrawlSearchPort interface {
	Execute(ctx context.Context) (domain.CrawlReport, error)
}

// ReconcileSnapshotPort diffs one snapshot against the store and applies the
// resulting mutations in a single transaction.
type ReconcileSnapshotPort interface {
	Execute(ctx context.Context, snapshotPath string) (domain.ReconcileSummary, error)
}
