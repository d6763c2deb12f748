package snapshot

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"rental-ingest-service/internal/contracts"
	"rental-ingest-service/internal/core/domain"
	"rental-ingest-service/internal/core/port"
)

// line buffers must fit a full listing description plus the image list
const maxLineBytes = 4 * 1024 * 1024

// ReaderAdapter streams records back out of a snapshot file. Every line is
// schema-validated; invalid lines are logged and skipped so one corrupt
// record cannot sink a reconciliation run.
type ReaderAdapter struct {
	logger port.LoggerPort
}

func NewReaderAdapter(logger port.LoggerPort) *ReaderAdapter {
	return &ReaderAdapter{logger: logger}
}

// Read loads all records from the snapshot at path.
func (r *ReaderAdapter) Read(ctx context.Context, path string) ([]domain.SnapshotRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot %s: %w", path, err)
	}
	defer file.Close()

	var records []domain.SnapshotRecord
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	lineNo := 0
	skipped := 0
	for scanner.Scan() {
		lineNo++
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		if err := contracts.ValidateSnapshotRecord(line); err != nil {
			skipped++
			r.logger.Warn("skipping invalid snapshot record", port.Fields{
				"path":  path,
				"line":  lineNo,
				"error": err.Error(),
			})
			continue
		}

		var record domain.SnapshotRecord
		if err := json.Unmarshal(line, &record); err != nil {
			skipped++
			r.logger.Warn("skipping undecodable snapshot record", port.Fields{
				"path":  path,
				"line":  lineNo,
				"error": err.Error(),
			})
			continue
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading snapshot %s: %w", path, err)
	}

	if skipped > 0 {
		r.logger.Warn("snapshot contained invalid records", port.Fields{
			"path":    path,
			"skipped": skipped,
			"loaded":  len(records),
		})
	}
	return records, nil
}
