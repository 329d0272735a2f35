// Package aggregator implements the Metrics Aggregator:
// it records per-iteration outcomes and latencies on the hot path and
// produces immutable, point-in-time Aggregated Snapshots.
//
// Grounded in internal/stats.StatsAggregator (sync.Map-free
// lock-free counters, atomic rate snapshots) generalized from per-HLS-
// client aggregation to per-run success/failure/queue-wait aggregation,
// and in internal/stats.ClientStats T-Digest usage for
// percentile recording.
package aggregator

import (
	"errors"
	"math"
	"sort"
	"sync/atomic"
	"time"

	"github.com/happysantoo/vajrapulse-sub008/internal/histogram"
	"github.com/happysantoo/vajrapulse-sub008/internal/task"
)

// ErrRecordingRejected is returned by Record after the aggregator has been
// closed. This is the only failure mode Record has.
var ErrRecordingRejected = errors.New("aggregator: recording rejected, aggregator is closed")

// RecordObserver receives per-iteration timing alongside the
// Aggregator's own digest-based percentile tracking, for callers (a
// Prometheus collector) that want native histogram buckets rather than
// point-in-time quantile snapshots.
type RecordObserver interface {
	RecordQueueWait(d time.Duration)
	RecordDuration(status string, d time.Duration)
}

// ExecutionRecord is the per-iteration record the Engine builds at
// dispatch and finalizes at completion.
type ExecutionRecord struct {
	StartNanos int64
	EndNanos int64
	EnqueueNanos int64
	IterationIndex int64
	Outcome task.Outcome
}

// Snapshot is the immutable Aggregated Snapshot.
type Snapshot struct {
	Total int64
	Success int64
	Failure int64

	SuccessPercentiles map[float64]float64 // nanoseconds
	FailurePercentiles map[float64]float64 // nanoseconds

	SuccessStats OutcomeStats
	FailureStats OutcomeStats

	ElapsedMillis int64

	QueueDepth int64
	QueueWaitPercentiles map[float64]float64 // nanoseconds

	Dropped int64
	Rejected int64
}

// OutcomeStats is the statistical summary per outcome side from
// mean, stddev, min, max, sample count.
type OutcomeStats struct {
	Count int64
	Mean float64
	StdDev float64
	Min float64
	Max float64
}

// Aggregator records execution records and produces snapshots. All
// recording methods are safe for concurrent use from many goroutines.
// Recording is not lock-free: besides atomic counters it takes the mutex
// of the latency histogram shard it writes to and the per-outcome
// running-stats mutex (see stats.go). It does no heap allocation beyond
// the histogram shard it touches.
type Aggregator struct {
	startNanos int64

	totalCount atomic.Int64
	successCount atomic.Int64
	failureCount atomic.Int64
	droppedCount atomic.Int64
	rejectedCount atomic.Int64
	queueDepth atomic.Int64

	successLatency *histogram.Striped
	failureLatency *histogram.Striped

	// queueWait uses the logarithmically-bucketed histogram rather than
	// the striped T-Digest: queue-wait samples are recorded at the same
	// rate as every other outcome but don't need T-Digest's accuracy, so
	// the lower-overhead fixed-memory approximation is the better fit for
	// the hottest path in the Engine's dispatch loop.
	queueWait *histogram.Bucketed

	successStats *runningStats
	failureStats *runningStats

	percentiles []float64

	closed atomic.Bool

	observer RecordObserver
}

// SetObserver installs a RecordObserver receiving every Record call's
// queue-wait and execution duration. Not safe to call concurrently with
// Record; set once before the run starts.
func (a *Aggregator) SetObserver(o RecordObserver) {
	a.observer = o
}

// defaultPercentiles is the key set used when New is given no valid
// percentiles: {0.5, 0.95, 0.99, 0.999}.
var defaultPercentiles = []float64{0.5, 0.95, 0.99, 0.999}

// New creates an Aggregator whose wall clock starts now. percentiles is
// sanitized: clipped to (0,1], deduplicated, sorted,
// rounded to three decimals. An empty slice falls back to
// {0.5, 0.95, 0.99, 0.999}.
func New(percentiles []float64) *Aggregator {
	keys := SanitizePercentiles(percentiles)
	if len(keys) == 0 {
		keys = append([]float64(nil), defaultPercentiles...)
	}
	return &Aggregator{
		startNanos: time.Now().UnixNano(),
		successLatency: histogram.NewStriped(),
		failureLatency: histogram.NewStriped(),
		queueWait: histogram.NewBucketed(),
		successStats: newRunningStats(),
		failureStats: newRunningStats(),
		percentiles: keys,
	}
}

// SanitizePercentiles clips keys to (0,1], rounds to three decimals,
// deduplicates, and sorts ascending invariant 4.
func SanitizePercentiles(in []float64) []float64 {
	seen := make(map[float64]struct{}, len(in))
	out := make([]float64, 0, len(in))
	for _, p := range in {
		if p <= 0 || math.IsNaN(p) {
			continue
		}
		if p > 1 {
			p = 1
		}
		p = math.Round(p*1000) / 1000
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Float64s(out)
	return out
}

// Record records one completed iteration. It never fails except after
// Close. Safe for concurrent use; it takes the latency histogram's
// shard mutex and the outcome's running-stats mutex.
func (a *Aggregator) Record(rec ExecutionRecord) error {
	if a.closed.Load() {
		return ErrRecordingRejected
	}

	a.totalCount.Add(1)
	latencyNanos := rec.EndNanos - rec.StartNanos
	if latencyNanos < 0 {
		latencyNanos = 0
	}

	status := "failure"
	if rec.Outcome.IsSuccess() {
		status = "success"
		a.successCount.Add(1)
		a.successLatency.Record(latencyNanos)
		a.successStats.record(float64(latencyNanos))
	} else {
		a.failureCount.Add(1)
		a.failureLatency.Record(latencyNanos)
		a.failureStats.record(float64(latencyNanos))
	}
	if a.observer != nil {
		a.observer.RecordDuration(status, time.Duration(latencyNanos))
	}

	if rec.EnqueueNanos != 0 {
		queueWaitNanos := rec.StartNanos - rec.EnqueueNanos
		if queueWaitNanos < 0 {
			queueWaitNanos = 0
		}
		a.queueWait.Record(queueWaitNanos)
		if a.observer != nil {
			a.observer.RecordQueueWait(time.Duration(queueWaitNanos))
		}
	}

	return nil
}

// RecordDropped increments the dropped-request counter used by the
// backpressure-aware dispatcher.
func (a *Aggregator) RecordDropped() { a.droppedCount.Add(1) }

// RecordRejected increments the rejected-request counter.
func (a *Aggregator) RecordRejected() { a.rejectedCount.Add(1) }

// SetQueueDepth updates the current queue-depth gauge. Called by the
// Engine as iterations are enqueued and dequeued.
func (a *Aggregator) SetQueueDepth(depth int64) { a.queueDepth.Store(depth) }

// Snapshot returns an immutable, point-in-time Aggregated Snapshot. Never
// fails. Counters are read with consistent-enough (not linearizable)
// semantics
func (a *Aggregator) Snapshot() Snapshot {
	total := a.totalCount.Load()
	success := a.successCount.Load()
	failure := a.failureCount.Load()

	snap := Snapshot{
		Total: total,
		Success: success,
		Failure: failure,
		SuccessPercentiles: a.successLatency.Quantiles(a.percentiles),
		FailurePercentiles: a.failureLatency.Quantiles(a.percentiles),
		QueueWaitPercentiles: a.queueWait.Quantiles(a.percentiles),
		SuccessStats: a.successStats.snapshot(),
		FailureStats: a.failureStats.snapshot(),
		ElapsedMillis: (time.Now().UnixNano() - a.startNanos) / int64(time.Millisecond),
		QueueDepth: a.queueDepth.Load(),
		Dropped: a.droppedCount.Load(),
		Rejected: a.rejectedCount.Load(),
	}
	return snap
}

// Close idempotently stops further recording. Safe to call more than
// once.
func (a *Aggregator) Close() error {
	a.closed.Store(true)
	return nil
}

// Elapsed returns the wall-clock time since the aggregator was created.
func (a *Aggregator) Elapsed() time.Duration {
	return time.Duration(time.Now().UnixNano() - a.startNanos)
}

// Percentiles returns the configured, sanitized percentile keys.
func (a *Aggregator) Percentiles() []float64 {
	return append([]float64(nil), a.percentiles...)
}

// Counts returns total/success/failure without touching the percentile
// digests, for callers (the adaptive controller's metrics provider) that
// only need the failure ratio and would otherwise pay for quantile merges
// on every sample.
func (a *Aggregator) Counts() (total, success, failure int64) {
	return a.totalCount.Load(), a.successCount.Load(), a.failureCount.Load()
}
