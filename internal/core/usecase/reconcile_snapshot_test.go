package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rental-ingest-service/internal/core/domain"
	"rental-ingest-service/internal/core/port"
)

type fakeSnapshotReader struct {
	records []domain.SnapshotRecord
	err     error
}

func (f *fakeSnapshotReader) Read(ctx context.Context, path string) ([]domain.SnapshotRecord, error) {
	return f.records, f.err
}

// fakeStore applies committed writes to an in-memory row map so idempotence
// can be tested by running the same snapshot twice.
type fakeStore struct {
	rows map[string]*fakeRow

	failOn string // name of the operation that should error

	inserted    []string
	updated     map[string]domain.ListingStatus
	deactivated []string
	reactivated []string
	committed   bool
	rolledBack  bool
}

type fakeRow struct {
	key      domain.ChangeKey
	isActive bool
	status   domain.ListingStatus
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: map[string]*fakeRow{}}
}

func (s *fakeStore) EnsureSchema(ctx context.Context) error { return nil }

func (s *fakeStore) BeginRun(ctx context.Context) (port.ReconcileTxPort, error) {
	s.inserted = nil
	s.updated = map[string]domain.ListingStatus{}
	s.deactivated = nil
	s.reactivated = nil
	s.committed = false
	s.rolledBack = false
	return &fakeTx{store: s, staged: map[string]*fakeRow{}}, nil
}

type fakeTx struct {
	store  *fakeStore
	staged map[string]*fakeRow
	done   bool
}

func (t *fakeTx) ListListings(ctx context.Context) ([]domain.StoredListing, error) {
	if t.store.failOn == "list" {
		return nil, domain.ErrStore
	}
	var out []domain.StoredListing
	for id, row := range t.store.rows {
		out = append(out, domain.StoredListing{
			ListingID: id,
			Key:       row.key,
			IsActive:  row.isActive,
			Status:    row.status,
		})
	}
	return out, nil
}

func (t *fakeTx) BatchInsert(ctx context.Context, records []domain.SnapshotRecord, at time.Time) error {
	if t.store.failOn == "insert" {
		return domain.ErrStore
	}
	for _, record := range records {
		t.store.inserted = append(t.store.inserted, record.ListingID)
		t.staged[record.ListingID] = &fakeRow{
			key:      record.ChangeKey(),
			isActive: true,
			status:   domain.StatusNew,
		}
	}
	return nil
}

func (t *fakeTx) BatchUpdate(ctx context.Context, mutations []domain.ListingMutation, at time.Time) error {
	if t.store.failOn == "update" {
		return domain.ErrStore
	}
	for _, m := range mutations {
		t.store.updated[m.Record.ListingID] = m.Status
		t.staged[m.Record.ListingID] = &fakeRow{
			key:      m.Record.ChangeKey(),
			isActive: true,
			status:   m.Status,
		}
	}
	return nil
}

func (t *fakeTx) BatchDeactivate(ctx context.Context, ids []string, at time.Time) error {
	if t.store.failOn == "deactivate" {
		return domain.ErrStore
	}
	for _, id := range ids {
		t.store.deactivated = append(t.store.deactivated, id)
		row := t.rowFor(id)
		row.isActive = false
		switch row.status {
		case domain.StatusNew, domain.StatusUpdated, domain.StatusUnchanged, domain.StatusRelisted:
			row.status = domain.StatusOffMarket
		}
	}
	return nil
}

func (t *fakeTx) BatchReactivate(ctx context.Context, ids []string, at time.Time) error {
	if t.store.failOn == "reactivate" {
		return domain.ErrStore
	}
	for _, id := range ids {
		t.store.reactivated = append(t.store.reactivated, id)
		row := t.rowFor(id)
		row.isActive = true
		row.status = domain.StatusRelisted
	}
	return nil
}

func (t *fakeTx) rowFor(id string) *fakeRow {
	if row, ok := t.staged[id]; ok {
		return row
	}
	if existing, ok := t.store.rows[id]; ok {
		copied := *existing
		t.staged[id] = &copied
		return t.staged[id]
	}
	t.staged[id] = &fakeRow{}
	return t.staged[id]
}

func (t *fakeTx) Commit(ctx context.Context) error {
	if t.store.failOn == "commit" {
		return domain.ErrStore
	}
	for id, row := range t.staged {
		t.store.rows[id] = row
	}
	t.store.committed = true
	t.done = true
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	if !t.done {
		t.store.rolledBack = true
		t.done = true
	}
	return nil
}

func record(id string, rent float64, headline string) domain.SnapshotRecord {
	return domain.SnapshotRecord{
		RawListing: domain.RawListing{
			ListingID:   id,
			URL:         "https://example.com/listing-" + id,
			RentPerWeek: rent,
			Postcode:    "2000",
			Headline:    headline,
		},
		Classified: domain.NewUnclassifiedFeatures(),
	}
}

func storedRow(rec domain.SnapshotRecord, active bool, status domain.ListingStatus) *fakeRow {
	return &fakeRow{key: rec.ChangeKey(), isActive: active, status: status}
}

func TestReconcile_AllFiveBuckets(t *testing.T) {
	unchanged := record("1", 500, "unchanged listing")
	updated := record("2", 600, "updated listing")
	relisted := record("3", 700, "relisted listing")
	fresh := record("4", 800, "brand new listing")
	gone := record("5", 900, "gone listing")

	store := newFakeStore()
	store.rows["1"] = storedRow(unchanged, true, domain.StatusNew)
	store.rows["2"] = storedRow(record("2", 550, "updated listing"), true, domain.StatusUnchanged)
	store.rows["3"] = storedRow(relisted, false, domain.StatusOffMarket)
	store.rows["5"] = storedRow(gone, true, domain.StatusUpdated)

	reader := &fakeSnapshotReader{records: []domain.SnapshotRecord{unchanged, updated, relisted, fresh}}
	uc := NewReconcileSnapshotUseCase(reader, store, nil)

	summary, err := uc.Execute(context.Background(), "snap.jsonl")
	require.NoError(t, err)

	assert.Equal(t, 1, summary.New)
	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, 1, summary.Unchanged)
	assert.Equal(t, 1, summary.Relisted)
	assert.Equal(t, 1, summary.OffMarket)
	assert.Equal(t, []string{"4"}, summary.NewListingIDs)

	assert.True(t, store.committed)
	assert.ElementsMatch(t, []string{"4"}, store.inserted)
	assert.Equal(t, domain.StatusUpdated, store.updated["2"])
	assert.Equal(t, domain.StatusRelisted, store.updated["3"])
	assert.ElementsMatch(t, []string{"3"}, store.reactivated)
	assert.ElementsMatch(t, []string{"5"}, store.deactivated)

	// Unchanged records get no write at all.
	_, wasUpdated := store.updated["1"]
	assert.False(t, wasUpdated)
}

func TestReconcile_SecondRunIsIdempotent(t *testing.T) {
	records := []domain.SnapshotRecord{
		record("1", 500, "first"),
		record("2", 600, "second"),
	}
	store := newFakeStore()
	reader := &fakeSnapshotReader{records: records}
	uc := NewReconcileSnapshotUseCase(reader, store, nil)

	first, err := uc.Execute(context.Background(), "snap.jsonl")
	require.NoError(t, err)
	assert.Equal(t, 2, first.New)

	second, err := uc.Execute(context.Background(), "snap.jsonl")
	require.NoError(t, err)

	assert.Equal(t, 0, second.New)
	assert.Equal(t, 0, second.Updated)
	assert.Equal(t, 2, second.Unchanged)
	assert.Equal(t, 0, second.Relisted)
	assert.Equal(t, 0, second.OffMarket)
}

func TestReconcile_BucketsAreDisjointAndExhaustive(t *testing.T) {
	store := newFakeStore()
	var records []domain.SnapshotRecord
	for _, rec := range []domain.SnapshotRecord{
		record("10", 100, "a"), record("11", 200, "b"), record("12", 300, "c"),
	} {
		records = append(records, rec)
	}
	store.rows["11"] = storedRow(record("11", 250, "b"), true, domain.StatusNew)
	store.rows["12"] = storedRow(records[2], false, domain.StatusOffMarket)
	store.rows["13"] = storedRow(record("13", 400, "d"), true, domain.StatusNew)

	reader := &fakeSnapshotReader{records: records}
	uc := NewReconcileSnapshotUseCase(reader, store, nil)

	summary, err := uc.Execute(context.Background(), "snap.jsonl")
	require.NoError(t, err)

	total := summary.New + summary.Updated + summary.Unchanged + summary.Relisted
	assert.Equal(t, len(records), total)
	assert.Equal(t, 1, summary.OffMarket)
}

func TestReconcile_StoreFailureRollsBack(t *testing.T) {
	store := newFakeStore()
	store.failOn = "update"
	store.rows["1"] = storedRow(record("1", 100, "old"), true, domain.StatusNew)

	reader := &fakeSnapshotReader{records: []domain.SnapshotRecord{record("1", 999, "new price")}}
	uc := NewReconcileSnapshotUseCase(reader, store, nil)

	_, err := uc.Execute(context.Background(), "snap.jsonl")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrStore))

	assert.False(t, store.committed)
	assert.True(t, store.rolledBack)
	// The stored row is untouched.
	assert.Equal(t, 100.0, store.rows["1"].key.RentPerWeek)
}

func TestReconcile_CommitFailureRollsBack(t *testing.T) {
	store := newFakeStore()
	store.failOn = "commit"

	reader := &fakeSnapshotReader{records: []domain.SnapshotRecord{record("1", 100, "x")}}
	uc := NewReconcileSnapshotUseCase(reader, store, nil)

	_, err := uc.Execute(context.Background(), "snap.jsonl")
	require.Error(t, err)
	assert.Empty(t, store.rows)
}

func TestReconcile_DuplicateIDsFirstSeenWins(t *testing.T) {
	first := record("1", 500, "first occurrence")
	second := record("1", 900, "second occurrence")

	store := newFakeStore()
	reader := &fakeSnapshotReader{records: []domain.SnapshotRecord{first, second}}
	uc := NewReconcileSnapshotUseCase(reader, store, nil)

	summary, err := uc.Execute(context.Background(), "snap.jsonl")
	require.NoError(t, err)

	assert.Equal(t, 1, summary.New)
	assert.Equal(t, 500.0, store.rows["1"].key.RentPerWeek)
}

func TestReconcile_NonNumericIDsAreDropped(t *testing.T) {
	store := newFakeStore()
	reader := &fakeSnapshotReader{records: []domain.SnapshotRecord{
		record("abc", 100, "bad id"),
		record("", 200, "empty id"),
		record("42", 300, "good id"),
	}}
	uc := NewReconcileSnapshotUseCase(reader, store, nil)

	summary, err := uc.Execute(context.Background(), "snap.jsonl")
	require.NoError(t, err)

	assert.Equal(t, 1, summary.New)
	assert.ElementsMatch(t, []string{"42"}, store.inserted)
}

func TestReconcile_ReaderErrorAbortsBeforeStore(t *testing.T) {
	store := newFakeStore()
	reader := &fakeSnapshotReader{err: errors.New("missing file")}
	uc := NewReconcileSnapshotUseCase(reader, store, nil)

	_, err := uc.Execute(context.Background(), "snap.jsonl")
	require.Error(t, err)
	assert.False(t, store.committed)
	assert.Empty(t, store.rows)
}

func TestReconcile_InactiveRowsNotDeactivatedAgain(t *testing.T) {
	store := newFakeStore()
	store.rows["7"] = storedRow(record("7", 100, "already off"), false, domain.StatusOffMarket)

	reader := &fakeSnapshotReader{records: nil}
	uc := NewReconcileSnapshotUseCase(reader, store, nil)

	summary, err := uc.Execute(context.Background(), "snap.jsonl")
	require.NoError(t, err)

	assert.Equal(t, 0, summary.OffMarket)
	assert.Empty(t, store.deactivated)
}

func TestReconcile_ChangeKeyFieldsTriggerUpdate(t *testing.T) {
	base := record("1", 500, "headline")
	future := time.Date(2030, 1, 2, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		mutate func(*domain.SnapshotRecord)
	}{
		{"rent", func(r *domain.SnapshotRecord) { r.RentPerWeek = 501 }},
		{"postcode", func(r *domain.SnapshotRecord) { r.Postcode = "2001" }},
		{"headline", func(r *domain.SnapshotRecord) { r.Headline = "new headline" }},
		{"available date set", func(r *domain.SnapshotRecord) { r.AvailableDate = &future }},
		{"inspection times", func(r *domain.SnapshotRecord) { r.InspectionTimes = []string{"Sat 10:00"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			store.rows["1"] = storedRow(base, true, domain.StatusNew)

			changed := base
			tt.mutate(&changed)

			uc := NewReconcileSnapshotUseCase(&fakeSnapshotReader{records: []domain.SnapshotRecord{changed}}, store, nil)
			summary, err := uc.Execute(context.Background(), "snap.jsonl")
			require.NoError(t, err)
			assert.Equal(t, 1, summary.Updated, "field %s should trigger an update", tt.name)
		})
	}
}
