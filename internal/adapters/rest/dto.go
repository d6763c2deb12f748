package rest

import (
	"time"

	"rental-ingest-service/internal/core/domain"
)

type runSummaryDTO struct {
	RunID        string    `json:"run_id"`
	SnapshotPath string    `json:"snapshot_path"`
	New          int       `json:"new"`
	Updated      int       `json:"updated"`
	Unchanged    int       `json:"unchanged"`
	OffMarket    int       `json:"off_market"`
	Relisted     int       `json:"relisted"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}

func toRunSummaryDTO(summary domain.ReconcileSummary) runSummaryDTO {
	return runSummaryDTO{
		RunID:        summary.RunID.String(),
		SnapshotPath: summary.SnapshotPath,
		New:          summary.New,
		Updated:      summary.Updated,
		Unchanged:    summary.Unchanged,
		OffMarket:    summary.OffMarket,
		Relisted:     summary.Relisted,
		StartedAt:    summary.StartedAt,
		FinishedAt:   summary.FinishedAt,
	}
}
