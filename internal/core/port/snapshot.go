package port

import (
	"context"

	"rental-ingest-service/internal/core/domain"
)

// SnapshotWriterPort buffers extracted records in memory and persists them as
// one durable snapshot when a crawl run completes. Flush is atomic: either the
// full buffer lands in the target location or the buffer is preserved for a
// retry and an error is returned.
type SnapshotWriterPort interface {
	Add(record domain.SnapshotRecord)
	Buffered() int
	Flush(ctx context.Context, regionLabel string, totalCount int) (snapshotPath string, err error)
}

// SnapshotReaderPort streams a written snapshot back for reconciliation.
// Records failing schema validation are dropped with a warning.
type SnapshotReaderPort interface {
	Read(ctx context.Context, snapshotPath string) ([]domain.SnapshotRecord, error)
}
