package runlog

import (
	"sync"

	"rental-ingest-service/internal/core/domain"
)

const defaultCapacity = 50

// MemoryRunLog keeps the most recent reconcile summaries in a ring for the
// ops API. Oldest entries fall off once capacity is reached.
type MemoryRunLog struct {
	mu        sync.RWMutex
	summaries []domain.ReconcileSummary
	capacity  int
}

func NewMemoryRunLog() *MemoryRunLog {
	return &MemoryRunLog{capacity: defaultCapacity}
}

// Record stores one summary, newest first.
func (l *MemoryRunLog) Record(summary domain.ReconcileSummary) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.summaries = append([]domain.ReconcileSummary{summary}, l.summaries...)
	if len(l.summaries) > l.capacity {
		l.summaries = l.summaries[:l.capacity]
	}
}

// Latest returns the newest summary, if any run has completed.
func (l *MemoryRunLog) Latest() (domain.ReconcileSummary, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.summaries) == 0 {
		return domain.ReconcileSummary{}, false
	}
	return l.summaries[0], true
}

// Recent returns up to n summaries, newest first.
func (l *MemoryRunLog) Recent(n int) []domain.ReconcileSummary {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if n <= 0 || n > len(l.summaries) {
		n = len(l.summaries)
	}
	out := make([]domain.ReconcileSummary, n)
	copy(out, l.summaries[:n])
	return out
}
