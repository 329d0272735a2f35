package histogram

import (
	"math"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/influxdata/tdigest"
)

// compression controls the T-Digest's centroid count; 100 matches the
// per-client latency digest this is adapted from (~10KB per shard).
const compression = 100

// Striped is a striped T-Digest: N independent digests, each guarded by
// its own mutex, written round-robin so no two goroutines contend for the
// same shard under typical load. Quantile and Quantiles merge all shards
// into one digest before querying quantiles, the standard striped / per-thread
// latency histogram with periodic merge shape.
//
// Adapted from a per-client tdigest usage pattern, generalized from one
// digest per client to N digests striped across CPUs for a single shared
// aggregator.
type Striped struct {
	shards []stripeShard
	seq atomic.Uint64
	count atomic.Uint64
}

type stripeShard struct {
	mu sync.Mutex
	digest *tdigest.TDigest
}

// NewStriped creates a striped digest with GOMAXPROCS shards (minimum 1).
func NewStriped() *Striped {
	n := runtime.GOMAXPROCS(0)
	if n < 1 {
		n = 1
	}
	s := &Striped{shards: make([]stripeShard, n)}
	for i := range s.shards {
		s.shards[i].digest = tdigest.NewWithCompression(compression)
	}
	return s
}

// Record adds a latency sample in nanoseconds to a round-robin shard.
// Lock contention is bounded to 1/N of callers at any instant.
func (s *Striped) Record(nanos int64) {
	if nanos < 0 {
		nanos = 0
	}
	shard := &s.shards[s.seq.Add(1)%uint64(len(s.shards))]
	shard.mu.Lock()
	shard.digest.Add(float64(nanos), 1)
	shard.mu.Unlock()
	s.count.Add(1)
}

// Count returns the number of samples recorded.
func (s *Striped) Count() uint64 {
	return s.count.Load()
}

// Quantile merges all shards and returns the p-quantile latency in
// nanoseconds. Returns NaN when fewer than 2 samples have been
// recorded.
func (s *Striped) Quantile(p float64) float64 {
	if s.count.Load() < 2 {
		return math.NaN()
	}
	merged := tdigest.NewWithCompression(compression)
	for i := range s.shards {
		s.shards[i].mu.Lock()
		merged.Merge(s.shards[i].digest)
		s.shards[i].mu.Unlock()
	}
	return merged.Quantile(p)
}

// Quantiles evaluates several quantiles against a single merge pass,
// avoiding repeated shard locking for each key in the caller's configured
// percentile set.
func (s *Striped) Quantiles(ps []float64) map[float64]float64 {
	out := make(map[float64]float64, len(ps))
	if s.count.Load() < 2 {
		for _, p := range ps {
			out[p] = math.NaN()
		}
		return out
	}
	merged := tdigest.NewWithCompression(compression)
	for i := range s.shards {
		s.shards[i].mu.Lock()
		merged.Merge(s.shards[i].digest)
		s.shards[i].mu.Unlock()
	}
	for _, p := range ps {
		out[p] = merged.Quantile(p)
	}
	return out
}
