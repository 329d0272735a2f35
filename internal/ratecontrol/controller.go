// Package ratecontrol implements the Rate Controller: it
// converts a Load Pattern's target_rate(elapsed) into a schedule of
// iteration releases, using a piecewise-linear integral approximation
// (sample the rate at each tick, accumulate the expected count, release
// the difference against what has actually been dispatched).
//
// Grounded in a ramp scheduler's "rate -> delay" math and in a
// throughput tracker for the
// actual-rate sliding-window telemetry, generalized from bytes/sec to
// iterations/sec.
package ratecontrol

import (
	"sync/atomic"
	"time"

	"github.com/happysantoo/vajrapulse-sub008/internal/pattern"
)

// noProgressThreshold is the "10 iterations worth of 100ms" window for
// the zero-rate edge case: once a rate-0 pattern has been sampled for
// this long without releasing anything, the Engine may decide to treat
// it as exhausted (only for unbounded patterns).
const noProgressThreshold = 10 * 100 * time.Millisecond

// recentRateSpan is the trailing window RecentRate reports over, short
// enough to reflect a rate change within a few ticks rather than being
// smoothed out by the whole run's history the way ActualRate is.
const recentRateSpan = 10 * time.Second

// Controller tracks the cumulative integral of a pattern's target rate and
// tells the caller how many new iterations to release on each tick. A
// single scheduling thread is expected to call Tick; telemetry getters are
// safe for concurrent reads from other goroutines (e.g. a metrics
// exporter).
type Controller struct {
	pat pattern.Pattern

	lastElapsed time.Duration
	integral float64
	dispatched int64

	noProgressSince time.Duration
	inNoProgress bool

	recent *Window

	// Telemetry, read by other goroutines.
	targetRateBits atomic.Uint64
	actualRateBits atomic.Uint64
	errorBits atomic.Uint64
}

// New creates a Controller driving pat.
func New(pat pattern.Pattern) *Controller {
	return &Controller{pat: pat, recent: NewWindow(recentRateSpan)}
}

// Tick advances the controller to elapsed (time since the run started)
// and returns how many new iterations should be released now. The caller
// must report every release back via the returned count accumulating into
// subsequent calls — Tick itself updates the dispatched counter by the
// amount it returns.
func (c *Controller) Tick(elapsed time.Duration) int64 {
	rate := pattern.Pattern(c.pat).TargetRate(elapsed)

	if elapsed > c.lastElapsed {
		dt := (elapsed - c.lastElapsed).Seconds()
		// Trapezoidal-ish: using the newly sampled rate over the step is
		// the "sample the rate at interval boundaries" approximation
		// explicitly allows.
		c.integral += rate * dt
	}
	c.lastElapsed = elapsed

	expected := int64(c.integral)
	release := expected - c.dispatched
	if release < 0 {
		release = 0
	}
	c.dispatched += release

	c.updateTelemetry(rate, elapsed)
	c.updateNoProgress(rate, elapsed)
	c.recent.Observe(elapsed, c.dispatched)

	return release
}

func (c *Controller) updateTelemetry(targetRate float64, elapsed time.Duration) {
	var actual float64
	if elapsed > 0 {
		actual = float64(c.dispatched) / elapsed.Seconds()
	}
	c.targetRateBits.Store(floatBits(targetRate))
	c.actualRateBits.Store(floatBits(actual))
	c.errorBits.Store(floatBits(targetRate - actual))
}

func (c *Controller) updateNoProgress(rate float64, elapsed time.Duration) {
	if rate > 0 {
		c.inNoProgress = false
		c.noProgressSince = 0
		return
	}
	if !c.inNoProgress {
		c.inNoProgress = true
		c.noProgressSince = elapsed
	}
}

// NoProgressExceeded reports whether the controller has observed a
// continuous run of zero target rate for at least the 10-iterations-at-
// 100ms window names.
func (c *Controller) NoProgressExceeded(elapsed time.Duration) bool {
	if !c.inNoProgress {
		return false
	}
	return elapsed-c.noProgressSince >= noProgressThreshold
}

// TargetRate returns the most recently sampled target rate.
func (c *Controller) TargetRate() float64 { return floatFromBits(c.targetRateBits.Load()) }

// ActualRate returns dispatched/elapsed as of the most recent Tick: a
// since-start average that a long-running adaptive or steady-state run
// can take minutes to reflect a recent rate change.
func (c *Controller) ActualRate() float64 { return floatFromBits(c.actualRateBits.Load()) }

// RecentRate returns the dispatch rate over the trailing recentRateSpan,
// which reflects a rate change within a few ticks rather than waiting for
// it to show up in the since-start ActualRate average.
func (c *Controller) RecentRate() float64 { return c.recent.Rate() }

// Error returns TargetRate() - ActualRate() as of the most recent Tick.
func (c *Controller) Error() float64 { return floatFromBits(c.errorBits.Load()) }

// Dispatched returns the total number of iterations released so far.
func (c *Controller) Dispatched() int64 { return c.dispatched }
