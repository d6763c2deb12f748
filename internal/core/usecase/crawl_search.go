package usecase

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"rental-ingest-service/internal/contextkeys"
	"rental-ingest-service/internal/core/domain"
	"rental-ingest-service/internal/core/port"
	usecases_port "rental-ingest-service/internal/core/port/usecases_port"
)

// CrawlSearchUseCase runs one full crawl: every configured search area is
// walked, every discovered listing is processed, and the buffered records
// are flushed into a snapshot file. Isolated page failures are skipped; the
// crawl only aborts on context cancellation.
type CrawlSearchUseCase struct {
	walker      port.SearchWalkerPort
	processor   usecases_port.ProcessListingPort
	writer      port.SnapshotWriterPort
	searchURLs  []string
	regionLabel func(searchURL string) string

	interURLDelayMin time.Duration
	interURLDelayMax time.Duration
}

func NewCrawlSearchUseCase(
	walker port.SearchWalkerPort,
	processor usecases_port.ProcessListingPort,
	writer port.SnapshotWriterPort,
	searchURLs []string,
	regionLabel func(searchURL string) string,
	interURLDelayMin, interURLDelayMax time.Duration,
) *CrawlSearchUseCase {
	return &CrawlSearchUseCase{
		walker:           walker,
		processor:        processor,
		writer:           writer,
		searchURLs:       searchURLs,
		regionLabel:      regionLabel,
		interURLDelayMin: interURLDelayMin,
		interURLDelayMax: interURLDelayMax,
	}
}

// Execute crawls all search areas and returns the run report. The snapshot
// path in the report is empty when nothing was captured.
func (uc *CrawlSearchUseCase) Execute(ctx context.Context) (domain.CrawlReport, error) {
	logger := contextkeys.LoggerFromContext(ctx)

	report := domain.CrawlReport{
		RunID:      uuid.New(),
		SearchURLs: uc.searchURLs,
		StartedAt:  time.Now(),
	}

	for i, searchURL := range uc.searchURLs {
		if i > 0 {
			if err := uc.pauseBetweenAreas(ctx); err != nil {
				report.FinishedAt = time.Now()
				return report, err
			}
		}

		logger.Info("walking search area", port.Fields{
			"run_id": report.RunID.String(),
			"url":    searchURL,
		})

		pages, links, err := uc.walker.Walk(ctx, searchURL, func(ctx context.Context, detailURL string) error {
			if procErr := uc.processor.Execute(ctx, detailURL); procErr != nil {
				if errors.Is(procErr, context.Canceled) || errors.Is(procErr, context.DeadlineExceeded) {
					return procErr
				}
				report.Failed++
				logger.Warn("skipping listing after failure", port.Fields{
					"url":   detailURL,
					"error": procErr.Error(),
				})
				return nil
			}
			report.Parsed++
			return nil
		})
		report.PagesVisited += pages
		report.LinksFound += links
		if err != nil {
			// A dead search area should not lose what the others captured.
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				report.FinishedAt = time.Now()
				return report, err
			}
			logger.Error("search area walk failed, continuing with next", err, port.Fields{
				"url": searchURL,
			})
		}
	}

	label := "Unknown"
	if len(uc.searchURLs) > 0 {
		label = uc.regionLabel(uc.searchURLs[0])
	}
	path, err := uc.writer.Flush(ctx, label, report.Parsed)
	if err != nil {
		report.FinishedAt = time.Now()
		return report, err
	}
	report.SnapshotPath = path
	report.FinishedAt = time.Now()

	logger.Info("crawl finished", port.Fields{
		"run_id":        report.RunID.String(),
		"pages_visited": report.PagesVisited,
		"links_found":   report.LinksFound,
		"parsed":        report.Parsed,
		"failed":        report.Failed,
		"snapshot":      report.SnapshotPath,
	})
	return report, nil
}

func (uc *CrawlSearchUseCase) pauseBetweenAreas(ctx context.Context) error {
	if uc.interURLDelayMax <= 0 || uc.interURLDelayMax < uc.interURLDelayMin {
		return nil
	}
	d := uc.interURLDelayMin
	if span := uc.interURLDelayMax - uc.interURLDelayMin; span > 0 {
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
