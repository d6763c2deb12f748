package port

import (
	"context"
	"time"

	"rental-ingest-service/internal/core/domain"
)

// ListingStorePort is the contract the reconciler consumes. The store is a
// relational table keyed by listing identifier; rows are never physically
// deleted.
type ListingStorePort interface {
	// EnsureSchema creates the listings table when it does not exist yet.
	EnsureSchema(ctx context.Context) error

	// BeginRun opens the single transaction a reconciliation run operates in.
	BeginRun(ctx context.Context) (ReconcileTxPort, error)
}

// ReconcileTxPort groups the store operations of one reconciliation run. All
// mutations participate in the caller-managed transaction; nothing is visible
// until Commit.
type ReconcileTxPort interface {
	// ListListings returns every stored listing, active or not, with the
	// change-detection field subset. Loading inactive rows too is what makes
	// relisting detection possible.
	ListListings(ctx context.Context) ([]domain.StoredListing, error)

	// BatchInsert inserts brand-new rows as active with status "new".
	BatchInsert(ctx context.Context, records []domain.SnapshotRecord, at time.Time) error

	// BatchUpdate rewrites the field values of existing rows, forces
	// is_active = true and stamps status_changed_at. Used for both updated
	// and relisted rows.
	BatchUpdate(ctx context.Context, mutations []domain.ListingMutation, at time.Time) error

	// BatchDeactivate flips rows to inactive. The off-market status label is
	// only applied to rows currently in an on-market status; administrative
	// statuses are left alone.
	BatchDeactivate(ctx context.Context, ids []string, at time.Time) error

	// BatchReactivate stamps the relisted status on previously inactive rows
	// after their field values went through BatchUpdate.
	BatchReactivate(ctx context.Context, ids []string, at time.Time) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
