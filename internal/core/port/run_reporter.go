package port

import (
	"context"

	"rental-ingest-service/internal/core/domain"
)

// RunReporterPort delivers a reconcile summary to an external consumer
// (message queue, webhook). Delivery failures are logged, never fatal.
type RunReporterPort interface {
	Report(ctx context.Context, summary domain.ReconcileSummary) error
}

// RunLogPort keeps recent run summaries for the ops API.
type RunLogPort interface {
	Record(summary domain.ReconcileSummary)
	Latest() (domain.ReconcileSummary, bool)
	Recent(n int) []domain.ReconcileSummary
}
