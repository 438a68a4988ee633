package metrics

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/gateway-fm/nodeload/pkg/types"
)

// LatencyTracker keeps streaming RPC latency statistics.
// Percentiles come from a bounded reservoir so memory stays flat over long runs.
type LatencyTracker struct {
	mu sync.RWMutex

	count int64
	sum   float64
	min   float64
	max   float64

	// Algorithm R (Vitter)
	reservoir     []float64
	reservoirSize int
	seen          int64

	buckets      []int64
	bucketBounds []float64

	randState uint64
}

const (
	// DefaultReservoirSize is the number of samples kept for percentile estimation.
	DefaultReservoirSize = 10000

	// RPC round-trip bucket bounds in milliseconds
	bucket0 = 10.0
	bucket1 = 50.0
	bucket2 = 250.0
	bucket3 = 1000.0
)

var bucketLabels = []string{"0-10ms", "10-50ms", "50-250ms", "250ms-1s", "1s+"}

// NewLatencyTracker creates an empty tracker.
func NewLatencyTracker() *LatencyTracker {
	return newLatencyTracker(DefaultReservoirSize)
}

func newLatencyTracker(reservoirSize int) *LatencyTracker {
	return &LatencyTracker{
		min:           math.MaxFloat64,
		reservoir:     make([]float64, 0, reservoirSize),
		reservoirSize: reservoirSize,
		buckets:       make([]int64, len(bucketLabels)),
		bucketBounds:  []float64{bucket0, bucket1, bucket2, bucket3},
		randState:     1,
	}
}

// ObserveCall records the latency of one RPC call regardless of outcome.
func (t *LatencyTracker) ObserveCall(_ string, _ bool, latency time.Duration) {
	t.Add(float64(latency) / float64(time.Millisecond))
}

// Add records a latency sample in milliseconds.
func (t *LatencyTracker) Add(latencyMs float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.count++
	t.sum += latencyMs
	t.seen++

	if latencyMs < t.min {
		t.min = latencyMs
	}
	if latencyMs > t.max {
		t.max = latencyMs
	}

	t.buckets[t.bucketIndex(latencyMs)]++

	if len(t.reservoir) < t.reservoirSize {
		t.reservoir = append(t.reservoir, latencyMs)
		return
	}
	j := t.fastRand() % uint64(t.seen)
	if j < uint64(t.reservoirSize) {
		t.reservoir[j] = latencyMs
	}
}

func (t *LatencyTracker) bucketIndex(latencyMs float64) int {
	for i, bound := range t.bucketBounds {
		if latencyMs < bound {
			return i
		}
	}
	return len(t.bucketBounds)
}

// xorshift64*, per instance so trackers never share state
func (t *LatencyTracker) fastRand() uint64 {
	t.randState ^= t.randState >> 12
	t.randState ^= t.randState << 25
	t.randState ^= t.randState >> 27
	return t.randState * 0x2545F4914F6CDD1D
}

// Stats returns the current statistics, or nil if nothing was recorded.
func (t *LatencyTracker) Stats() *types.LatencyStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.count == 0 {
		return nil
	}

	sorted := make([]float64, len(t.reservoir))
	copy(sorted, t.reservoir)
	sort.Float64s(sorted)

	buckets := make([]types.LatencyBucket, len(bucketLabels))
	for i, label := range bucketLabels {
		buckets[i] = types.LatencyBucket{Label: label, Count: int(t.buckets[i])}
	}

	return &types.LatencyStats{
		Count:   int(t.count),
		Min:     t.min,
		Max:     t.max,
		Avg:     t.sum / float64(t.count),
		P50:     percentile(sorted, 0.50),
		P90:     percentile(sorted, 0.90),
		P95:     percentile(sorted, 0.95),
		P99:     percentile(sorted, 0.99),
		Buckets: buckets,
	}
}

// percentile interpolates linearly within a sorted slice.
func percentile(sorted []float64, p float64) float64 {
	switch len(sorted) {
	case 0:
		return 0
	case 1:
		return sorted[0]
	}

	idx := p * float64(len(sorted)-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}

	frac := idx - float64(lower)
	return sorted[lower]*(1-frac) + sorted[upper]*frac
}

// Count returns the number of recorded samples.
func (t *LatencyTracker) Count() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.count
}
