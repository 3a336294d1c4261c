package publisher

import (
	"math"
	"slices"
	"sync"
	"time"
)

// latencyWindow keeps the wall time of the most recent sink publishes in
// a fixed-size ring, an operational signal that telemetry itself is not
// silently degrading the hosting process.
type latencyWindow struct {
	mu    sync.Mutex
	ring  []time.Duration
	next  int
	count int
}

func newLatencyWindow(size int) *latencyWindow {
	return &latencyWindow{ring: make([]time.Duration, size)}
}

func (w *latencyWindow) observe(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ring[w.next] = d
	w.next = (w.next + 1) % len(w.ring)
	if w.count < len(w.ring) {
		w.count++
	}
}

// p95 computes the nearest-rank 95th percentile over a snapshot of the
// window. Zero when no publish has been observed yet.
func (w *latencyWindow) p95() time.Duration {
	w.mu.Lock()
	snapshot := make([]time.Duration, w.count)
	copy(snapshot, w.ring[:w.count])
	w.mu.Unlock()

	if len(snapshot) == 0 {
		return 0
	}
	slices.Sort(snapshot)
	rank := int(math.Ceil(0.95*float64(len(snapshot)))) - 1
	return snapshot[rank]
}
