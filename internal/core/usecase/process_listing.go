package usecase

import (
	"context"
	"fmt"

	"rental-ingest-service/internal/contextkeys"
	"rental-ingest-service/internal/core/domain"
	"rental-ingest-service/internal/core/port"
	usecases_port "rental-ingest-service/internal/core/port/usecases_port"
)

// ProcessListingUseCase handles one detail URL end to end: fetch the page,
// parse it, classify its features and buffer the record for the snapshot.
type ProcessListingUseCase struct {
	fetcher    port.PageFetcherPort
	parser     port.ListingParserPort
	classifier usecases_port.ClassifyFeaturesPort
	writer     port.SnapshotWriterPort
}

func NewProcessListingUseCase(
	fetcher port.PageFetcherPort,
	parser port.ListingParserPort,
	classifier usecases_port.ClassifyFeaturesPort,
	writer port.SnapshotWriterPort,
) *ProcessListingUseCase {
	return &ProcessListingUseCase{
		fetcher:    fetcher,
		parser:     parser,
		classifier: classifier,
		writer:     writer,
	}
}

// Execute processes a single detail URL. Errors come back to the caller,
// which decides whether to skip the listing or abort the crawl.
func (uc *ProcessListingUseCase) Execute(ctx context.Context, detailURL string) error {
	logger := contextkeys.LoggerFromContext(ctx)

	body, err := uc.fetcher.Fetch(ctx, detailURL)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", detailURL, err)
	}

	listing, warnings, err := uc.parser.Parse(body, detailURL)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", detailURL, err)
	}
	for _, w := range warnings {
		logger.Warn("listing parsed with warning", port.Fields{
			"url":     detailURL,
			"warning": w,
		})
	}

	record := domain.SnapshotRecord{
		RawListing: *listing,
		Classified: uc.classifier.Execute(listing.FeatureTags, listing.Headline, listing.Description),
	}
	uc.writer.Add(record)

	logger.Debug("listing processed", port.Fields{
		"url":        detailURL,
		"listing_id": listing.ListingID,
	})
	return nil
}
