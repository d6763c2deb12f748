package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"rental-ingest-service/internal/contextkeys"
	"rental-ingest-service/internal/core/domain"
	"rental-ingest-service/internal/core/port"
)

// ReconcileSnapshotUseCase diffs a crawl snapshot against the store and
// applies the minimal set of writes inside one transaction. Every listing
// lands in exactly one bucket: new, updated, unchanged, relisted or
// off-market. Any failure rolls the whole run back; re-running the same
// snapshot against the same store state is a no-op apart from the unchanged
// bucket.
type ReconcileSnapshotUseCase struct {
	reader    port.SnapshotReaderPort
	store     port.ListingStorePort
	reporters []port.RunReporterPort
	runLog    port.RunLogPort
}

func NewReconcileSnapshotUseCase(
	reader port.SnapshotReaderPort,
	store port.ListingStorePort,
	runLog port.RunLogPort,
	reporters ...port.RunReporterPort,
) *ReconcileSnapshotUseCase {
	return &ReconcileSnapshotUseCase{
		reader:    reader,
		store:     store,
		reporters: reporters,
		runLog:    runLog,
	}
}

// reconcilePlan is the fully decided set of writes for one run.
type reconcilePlan struct {
	inserts      []domain.SnapshotRecord
	mutations    []domain.ListingMutation
	relistedIDs  []string
	offMarketIDs []string
	unchanged    int
}

// Execute reconciles the snapshot at snapshotPath. The returned summary is
// recorded and reported even when some reporters fail; only store errors
// fail the run.
func (uc *ReconcileSnapshotUseCase) Execute(ctx context.Context, snapshotPath string) (domain.ReconcileSummary, error) {
	logger := contextkeys.LoggerFromContext(ctx)

	summary := domain.ReconcileSummary{
		RunID:        uuid.New(),
		SnapshotPath: snapshotPath,
		StartedAt:    time.Now(),
	}

	records, err := uc.reader.Read(ctx, snapshotPath)
	if err != nil {
		return summary, fmt.Errorf("reading snapshot: %w", err)
	}

	records, dropped := dropInvalidIDs(records)
	if dropped > 0 {
		logger.Warn("dropped records with non-numeric ids", port.Fields{
			"dropped": dropped,
		})
	}
	records, duplicates := dedupeFirstSeen(records)
	if duplicates > 0 {
		logger.Warn("dropped duplicate listing ids from snapshot", port.Fields{
			"duplicates": duplicates,
		})
	}

	tx, err := uc.store.BeginRun(ctx)
	if err != nil {
		return summary, fmt.Errorf("beginning reconcile transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// All ids, active or not. Restricting this to active rows would turn
	// every relisting into a false "new".
	stored, err := tx.ListListings(ctx)
	if err != nil {
		return summary, fmt.Errorf("loading stored listings: %w", err)
	}

	plan := buildPlan(records, stored)
	now := time.Now()

	if len(plan.inserts) > 0 {
		if err := tx.BatchInsert(ctx, plan.inserts, now); err != nil {
			return summary, fmt.Errorf("inserting new listings: %w", err)
		}
	}
	if len(plan.mutations) > 0 {
		if err := tx.BatchUpdate(ctx, plan.mutations, now); err != nil {
			return summary, fmt.Errorf("updating listings: %w", err)
		}
	}
	if len(plan.relistedIDs) > 0 {
		if err := tx.BatchReactivate(ctx, plan.relistedIDs, now); err != nil {
			return summary, fmt.Errorf("reactivating listings: %w", err)
		}
	}
	if len(plan.offMarketIDs) > 0 {
		if err := tx.BatchDeactivate(ctx, plan.offMarketIDs, now); err != nil {
			return summary, fmt.Errorf("deactivating listings: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return summary, fmt.Errorf("committing reconcile transaction: %w", err)
	}

	summary.New = len(plan.inserts)
	summary.Updated = len(plan.mutations) - len(plan.relistedIDs)
	summary.Unchanged = plan.unchanged
	summary.Relisted = len(plan.relistedIDs)
	summary.OffMarket = len(plan.offMarketIDs)
	for _, record := range plan.inserts {
		summary.NewListingIDs = append(summary.NewListingIDs, record.ListingID)
	}
	summary.FinishedAt = time.Now()

	logger.Info("reconciliation committed", port.Fields{
		"run_id":     summary.RunID.String(),
		"new":        summary.New,
		"updated":    summary.Updated,
		"unchanged":  summary.Unchanged,
		"relisted":   summary.Relisted,
		"off_market": summary.OffMarket,
	})

	if uc.runLog != nil {
		uc.runLog.Record(summary)
	}
	for _, reporter := range uc.reporters {
		if reportErr := reporter.Report(ctx, summary); reportErr != nil {
			logger.Error("run report delivery failed", reportErr, port.Fields{
				"run_id": summary.RunID.String(),
			})
		}
	}
	return summary, nil
}

// dropInvalidIDs removes records whose identifier is not numeric-like; the
// store keys on a numeric column and such records cannot be persisted.
func dropInvalidIDs(records []domain.SnapshotRecord) ([]domain.SnapshotRecord, int) {
	kept := records[:0]
	dropped := 0
	for _, record := range records {
		if record.HasValidID() {
			kept = append(kept, record)
		} else {
			dropped++
		}
	}
	return kept, dropped
}

// dedupeFirstSeen keeps the first occurrence of every listing id. Search
// result pages overlap near pagination boundaries, so duplicates are normal.
func dedupeFirstSeen(records []domain.SnapshotRecord) ([]domain.SnapshotRecord, int) {
	seen := make(map[string]struct{}, len(records))
	kept := records[:0]
	duplicates := 0
	for _, record := range records {
		if _, dup := seen[record.ListingID]; dup {
			duplicates++
			continue
		}
		seen[record.ListingID] = struct{}{}
		kept = append(kept, record)
	}
	return kept, duplicates
}

// buildPlan sorts every snapshot record and every stored row into its bucket.
// Relisted records also flow through the update write so their fields are
// refreshed in the same statement shape as plain updates.
func buildPlan(records []domain.SnapshotRecord, stored []domain.StoredListing) reconcilePlan {
	storedByID := make(map[string]domain.StoredListing, len(stored))
	for _, row := range stored {
		storedByID[row.ListingID] = row
	}

	var plan reconcilePlan
	seenIDs := make(map[string]struct{}, len(records))

	for _, record := range records {
		seenIDs[record.ListingID] = struct{}{}

		row, exists := storedByID[record.ListingID]
		switch {
		case !exists:
			plan.inserts = append(plan.inserts, record)
		case !row.IsActive:
			plan.mutations = append(plan.mutations, domain.ListingMutation{
				Record: record,
				Status: domain.StatusRelisted,
			})
			plan.relistedIDs = append(plan.relistedIDs, record.ListingID)
		case row.Key.Equal(record.ChangeKey()):
			plan.unchanged++
		default:
			plan.mutations = append(plan.mutations, domain.ListingMutation{
				Record: record,
				Status: domain.StatusUpdated,
			})
		}
	}

	for _, row := range stored {
		if !row.IsActive {
			continue
		}
		if _, present := seenIDs[row.ListingID]; !present {
			plan.offMarketIDs = append(plan.offMarketIDs, row.ListingID)
		}
	}
	return plan
}
