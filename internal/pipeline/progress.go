package pipeline

import (
	"sync"
	"time"
)

// Tracker aggregates per-worker status and per-category result counts.
// Writes are O(1); Snapshot and Counts return shallow copies so callers
// never hold the lock.
type Tracker struct {
	mu      sync.Mutex
	workers map[string]WorkerStatus
	counts  map[Status]int

	now func() time.Time
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		workers: make(map[string]WorkerStatus),
		counts:  make(map[Status]int),
		now:     time.Now,
	}
}

// UpdateWorker records what workerID is doing. Only the owning worker
// calls this for its own id.
func (t *Tracker) UpdateWorker(workerID string, phase Phase, item string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.workers[workerID] = WorkerStatus{
		WorkerID:  workerID,
		Phase:     phase,
		Item:      item,
		UpdatedAt: t.now(),
	}
}

// Snapshot returns a copy of every worker's current status.
func (t *Tracker) Snapshot() map[string]WorkerStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]WorkerStatus, len(t.workers))
	for id, ws := range t.workers {
		out[id] = ws
	}
	return out
}

// CountResult tallies a terminal result category.
func (t *Tracker) CountResult(status Status) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[status]++
}

// Counts returns a copy of the per-category totals.
func (t *Tracker) Counts() map[Status]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[Status]int, len(t.counts))
	for s, n := range t.counts {
		out[s] = n
	}
	return out
}
