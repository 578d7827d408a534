package telemetry

import (
	"maps"
	"slices"
	"sync"

	"github.com/autopeer-io/agvsim/internal/agv"
)

// Latest keeps the most recent report of every vehicle. It is safe to read
// from other goroutines while the simulation publishes into it.
type Latest struct {
	mu      sync.RWMutex
	reports map[string]agv.StatusReport
	counts  map[string]int
}

func NewLatest() *Latest {
	return &Latest{
		reports: make(map[string]agv.StatusReport),
		counts:  make(map[string]int),
	}
}

func (l *Latest) PublishStatus(r agv.StatusReport) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	// readers must not alias the publisher's slice
	r.Payload = slices.Clone(r.Payload)
	l.reports[r.SourceID] = r
	l.counts[r.SourceID]++
	return nil
}

// Get returns the latest report of id.
func (l *Latest) Get(id string) (agv.StatusReport, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	r, ok := l.reports[id]
	return r, ok
}

// List returns the latest report of every vehicle, ordered by id.
func (l *Latest) List() []agv.StatusReport {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]agv.StatusReport, 0, len(l.reports))
	for _, id := range slices.Sorted(maps.Keys(l.reports)) {
		out = append(out, l.reports[id])
	}
	return out
}

// Count returns how many reports id has published.
func (l *Latest) Count(id string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.counts[id]
}
