package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"rental-ingest-service/internal/core/domain"
	"rental-ingest-service/internal/core/port"
)

// WriterAdapter buffers classified records during a crawl and flushes them to
// one newline-delimited JSON file per run. The write goes through a temp file
// and a rename, so readers never observe a half-written snapshot. On a failed
// flush the buffer is kept for a retry.
type WriterAdapter struct {
	mu     sync.Mutex
	buffer []domain.SnapshotRecord
	dir    string
	logger port.LoggerPort
}

func NewWriterAdapter(dir string, logger port.LoggerPort) *WriterAdapter {
	return &WriterAdapter{dir: dir, logger: logger}
}

// Add appends one record to the in-memory buffer.
func (w *WriterAdapter) Add(record domain.SnapshotRecord) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buffer = append(w.buffer, record)
}

// Buffered reports how many records the next flush will write.
func (w *WriterAdapter) Buffered() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.buffer)
}

// Flush writes the buffered records and returns the snapshot path. An empty
// buffer flushes to nothing and returns an empty path.
func (w *WriterAdapter) Flush(ctx context.Context, regionLabel string, totalCount int) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.buffer) == 0 {
		w.logger.Info("snapshot buffer empty, nothing to flush", nil)
		return "", nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating snapshot dir %s: %w", w.dir, err)
	}

	name := fmt.Sprintf("%s_%s_%dlistings.jsonl",
		time.Now().Format("20060102_150405"), sanitizeLabel(regionLabel), totalCount)
	finalPath := filepath.Join(w.dir, name)

	tmp, err := os.CreateTemp(w.dir, name+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("creating snapshot temp file: %w", err)
	}
	tmpPath := tmp.Name()

	enc := json.NewEncoder(tmp)
	for _, record := range w.buffer {
		if err := enc.Encode(record); err != nil {
			tmp.Close()
			os.Remove(tmpPath)
			return "", fmt.Errorf("encoding snapshot record %s: %w", record.ListingID, err)
		}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("closing snapshot temp file: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("publishing snapshot %s: %w", finalPath, err)
	}

	w.logger.Info("snapshot flushed", port.Fields{
		"path":    finalPath,
		"records": len(w.buffer),
		"region":  regionLabel,
	})
	w.buffer = nil
	return finalPath, nil
}

var labelCleanPattern = regexp.MustCompile(`[^\w\s-]`)

func sanitizeLabel(label string) string {
	label = labelCleanPattern.ReplaceAllString(label, "")
	label = strings.TrimSpace(label)
	if label == "" {
		return "Unknown"
	}
	return strings.ReplaceAll(label, " ", "_")
}

var rentPathPattern = regexp.MustCompile(`/rent/([^/?]+)`)

// RegionLabelFromURL derives a human-readable area label from a search URL,
// e.g. ".../rent/sydney-region-nsw/..." becomes "Sydney-Region-Nsw".
func RegionLabelFromURL(searchURL string) string {
	m := rentPathPattern.FindStringSubmatch(searchURL)
	if len(m) < 2 {
		return "Unknown"
	}
	return cases.Title(language.English).String(m[1])
}
