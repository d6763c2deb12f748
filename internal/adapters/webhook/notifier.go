package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"rental-ingest-service/internal/core/domain"
	"rental-ingest-service/internal/core/port"
)

// newListingsEvent is posted once per run that produced new listings.
type newListingsEvent struct {
	Event      string    `json:"event"`
	RunID      string    `json:"run_id"`
	Count      int       `json:"count"`
	ListingIDs []string  `json:"listing_ids"`
	FinishedAt time.Time `json:"finished_at"`
}

// NotifierAdapter pushes a new-listings notification to a configured HTTP
// endpoint after each reconciliation. Runs without new listings post nothing.
type NotifierAdapter struct {
	url    string
	client *http.Client
	logger port.LoggerPort
}

func NewNotifierAdapter(url string, logger port.LoggerPort) *NotifierAdapter {
	return &NotifierAdapter{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

// Report posts the new-listing ids of one run.
func (a *NotifierAdapter) Report(ctx context.Context, summary domain.ReconcileSummary) error {
	if len(summary.NewListingIDs) == 0 {
		return nil
	}

	body, err := json.Marshal(newListingsEvent{
		Event:      "new_listings",
		RunID:      summary.RunID.String(),
		Count:      len(summary.NewListingIDs),
		ListingIDs: summary.NewListingIDs,
		FinishedAt: summary.FinishedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook responded with status %d", resp.StatusCode)
	}

	a.logger.Info("new-listings webhook delivered", port.Fields{
		"run_id": summary.RunID.String(),
		"count":  len(summary.NewListingIDs),
	})
	return nil
}
