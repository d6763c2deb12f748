package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rental-ingest-service/internal/contextkeys"
)

func newTestReader() *ReaderAdapter {
	return NewReaderAdapter(contextkeys.LoggerFromContext(context.Background()))
}

func TestReader_RoundTripsWriterOutput(t *testing.T) {
	writer := newTestWriter(t)
	writer.Add(testRecord("1"))
	writer.Add(testRecord("2"))

	path, err := writer.Flush(context.Background(), "Region", 2)
	require.NoError(t, err)

	records, err := newTestReader().Read(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "1", records[0].ListingID)
	assert.Equal(t, "Test listing 2", records[1].Headline)
	assert.True(t, records[1].Classified.Complete())
}

func TestReader_SkipsInvalidLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.jsonl")
	content := `{"listing_id":"1","url":"https://example.com/1"}
not json at all
{"listing_id":"","url":"https://example.com/empty-id"}
{"url":"https://example.com/missing-id"}
{"listing_id":"2","url":"https://example.com/2"}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	records, err := newTestReader().Read(context.Background(), path)
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, "1", records[0].ListingID)
	assert.Equal(t, "2", records[1].ListingID)
}

// A record that only carries soft validation issues (here a negative bedroom
// count) still belongs in the reconcile input; dropping it would off-market a
// live listing on the next run.
func TestReader_KeepsSoftInvalidRecords(t *testing.T) {
	writer := newTestWriter(t)
	record := testRecord("1")
	record.Bedrooms = -1
	record.RentPerWeek = -650
	writer.Add(record)

	path, err := writer.Flush(context.Background(), "Region", 1)
	require.NoError(t, err)

	records, err := newTestReader().Read(context.Background(), path)
	require.NoError(t, err)

	require.Len(t, records, 1)
	assert.Equal(t, "1", records[0].ListingID)
	assert.Equal(t, -1, records[0].Bedrooms)
}

func TestReader_MissingFileIsError(t *testing.T) {
	_, err := newTestReader().Read(context.Background(), filepath.Join(t.TempDir(), "absent.jsonl"))
	require.Error(t, err)
}

func TestReader_EmptyLinesAreIgnored(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.jsonl")
	content := "\n{\"listing_id\":\"1\",\"url\":\"https://example.com/1\"}\n\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	records, err := newTestReader().Read(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}
