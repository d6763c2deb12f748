package runlog

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rental-ingest-service/internal/core/domain"
)

func TestMemoryRunLog_LatestAndRecent(t *testing.T) {
	log := NewMemoryRunLog()

	_, ok := log.Latest()
	assert.False(t, ok)
	assert.Empty(t, log.Recent(5))

	first := domain.ReconcileSummary{RunID: uuid.New(), SnapshotPath: "a.jsonl"}
	second := domain.ReconcileSummary{RunID: uuid.New(), SnapshotPath: "b.jsonl"}
	log.Record(first)
	log.Record(second)

	latest, ok := log.Latest()
	require.True(t, ok)
	assert.Equal(t, second.RunID, latest.RunID)

	recent := log.Recent(0)
	require.Len(t, recent, 2)
	assert.Equal(t, second.RunID, recent[0].RunID)
	assert.Equal(t, first.RunID, recent[1].RunID)

	assert.Len(t, log.Recent(1), 1)
	assert.Len(t, log.Recent(10), 2)
}

func TestMemoryRunLog_CapacityEvictsOldest(t *testing.T) {
	log := NewMemoryRunLog()

	var ids []uuid.UUID
	for i := 0; i < defaultCapacity+5; i++ {
		id := uuid.New()
		ids = append(ids, id)
		log.Record(domain.ReconcileSummary{RunID: id, SnapshotPath: fmt.Sprintf("%d.jsonl", i)})
	}

	recent := log.Recent(0)
	require.Len(t, recent, defaultCapacity)
	assert.Equal(t, ids[len(ids)-1], recent[0].RunID)
	assert.Equal(t, ids[5], recent[len(recent)-1].RunID)
}
