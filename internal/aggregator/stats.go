package aggregator

import (
	"math"
	"sync"
)

// runningStats computes a running mean/variance/min/max using Welford's
// algorithm, guarded by a single mutex. It is not lock-free, unlike the
// queue-wait histogram, because the statistical summary is a secondary, lower-
// frequency readout than the per-record histograms, and the window for
// contention is a handful of float64 updates.
type runningStats struct {
	mu sync.Mutex
	count int64
	mean float64
	m2 float64
	min float64
	max float64
}

func newRunningStats() *runningStats {
	return &runningStats{
		min: math.Inf(1),
		max: math.Inf(-1),
	}
}

func (r *runningStats) record(value float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.count++
	delta := value - r.mean
	r.mean += delta / float64(r.count)
	delta2 := value - r.mean
	r.m2 += delta * delta2

	if value < r.min {
		r.min = value
	}
	if value > r.max {
		r.max = value
	}
}

func (r *runningStats) snapshot() OutcomeStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := OutcomeStats{
		Count: r.count,
		Mean: r.mean,
	}
	if r.count > 0 {
		stats.Min = r.min
		stats.Max = r.max
	}
	if r.count >= 2 {
		stats.StdDev = math.Sqrt(r.m2 / float64(r.count-1))
	}
	return stats
}
