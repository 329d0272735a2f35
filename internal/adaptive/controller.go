package adaptive

import (
	"sync"
	"time"

	"github.com/happysantoo/vajrapulse-sub008/internal/pattern"
)

// Controller is the Adaptive Load Controller. It
// implements pattern.Pattern, so the Execution Engine drives it exactly
// like any other load pattern; internally it samples a cached
// MetricsProvider on its own ramp-interval cadence and moves through
// RampUp -> RampDown -> Sustain (-> RampUp again) ->
// Complete.
//
// State writes are confined to whichever goroutine calls TargetRate,
// serialized by a mutex that is never held across the MetricsProvider
// call, so no reentrant locking is needed.
type Controller struct {
	cfg Config
	provider MetricsProvider

	mu sync.Mutex
	state State

	lastIntervalTick time.Duration
	sustainStart time.Duration
	completedAt time.Duration
	completed bool

	stepIncrement float64
	stepDecrement float64

	bestStableRate float64
	unstableCycles int
}

var _ pattern.Pattern = (*Controller)(nil)

// New builds a Controller in the RampUp phase at the configured initial
// rate, sampling provider for failure-ratio readings. cfg must already be
// valid (see Config.Validate).
func New(cfg Config, provider MetricsProvider) *Controller {
	return &Controller{
		cfg: cfg,
		provider: provider,
		state: State{
			Phase: PhaseRampUp,
			CurrentRate: cfg.InitialRate,
		},
		stepIncrement: cfg.RampIncrement,
		stepDecrement: cfg.RampDecrement,
	}
}

// TargetRate advances the phase machine if enough elapsed time has passed
// since the last advance, then returns the current rate. Pure with
// respect to repeated calls at the same elapsed value within an interval.
func (c *Controller) TargetRate(elapsed time.Duration) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.advanceLocked(elapsed)
	if c.state.Phase == PhaseComplete {
		return 0
	}
	return c.state.CurrentRate
}

// TotalDuration is unbounded until the controller reaches Complete, at
// which point it reports the elapsed time of completion: the pattern
// then reports rate 0 and its duration becomes the elapsed time.
func (c *Controller) TotalDuration() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.completed {
		return c.completedAt
	}
	return pattern.UnboundedDuration
}

// Snapshot returns the controller's telemetry (phase ordinal, current
// rate, stable rate, cumulative transition count)
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) advanceLocked(elapsed time.Duration) {
	switch c.state.Phase {
	case PhaseRampUp, PhaseRampDown:
		c.advanceRampLocked(elapsed)
	case PhaseSustain:
		c.advanceSustainLocked(elapsed)
	case PhaseComplete:
		// terminal
	}
}

func (c *Controller) advanceRampLocked(elapsed time.Duration) {
	if elapsed-c.lastIntervalTick < c.cfg.RampInterval {
		return
	}
	c.lastIntervalTick = elapsed

	ratio, ok := c.sampleLocked()
	if !ok {
		return
	}

	if c.state.Phase == PhaseRampUp {
		if ratio < c.cfg.ErrorThreshold && c.state.CurrentRate < c.cfg.MaxRate {
			c.state.CurrentRate = clampRate(c.state.CurrentRate+c.stepIncrement, c.cfg.MinRate, c.cfg.MaxRate)
			c.state.ConsecutiveStable = 0
			return
		}
		// Failure ratio breached threshold, or we've hit the ceiling with
		// no failures: either way, probe downward next.
		c.transitionLocked(PhaseRampDown, elapsed)
		return
	}

	// PhaseRampDown.
	c.state.CurrentRate = clampRate(c.state.CurrentRate-c.stepDecrement, c.cfg.MinRate, c.cfg.MaxRate)
	if ratio < c.cfg.ErrorThreshold {
		c.state.ConsecutiveStable++
		if c.state.ConsecutiveStable >= c.cfg.StableIntervalsRequired {
			c.state.StableRate = c.state.CurrentRate
			if c.state.StableRate > c.bestStableRate {
				c.bestStableRate = c.state.StableRate
				c.unstableCycles = 0
			}
			c.transitionLocked(PhaseSustain, elapsed)
		}
		return
	}
	c.state.ConsecutiveStable = 0
}

func (c *Controller) advanceSustainLocked(elapsed time.Duration) {
	ratio, ok := c.sampleLocked()
	if ok && ratio >= c.cfg.ErrorThreshold {
		c.transitionLocked(PhaseRampDown, elapsed)
		return
	}

	if elapsed-c.sustainStart < c.cfg.SustainDuration {
		return
	}

	// Sustain expired without a breach: re-probe for additional headroom
	// with halved step sizes, floored at 1 request/sec, instead of
	// holding the rate indefinitely.
	c.stepIncrement = halveFloor1(c.stepIncrement)
	c.stepDecrement = halveFloor1(c.stepDecrement)
	c.state.CurrentRate = c.state.StableRate
	c.state.ConsecutiveStable = 0
	c.unstableCycles++
	c.transitionLocked(PhaseRampUp, elapsed)

	if c.unstableCycles >= c.cfg.maxUnstableCycles() {
		c.transitionLocked(PhaseComplete, elapsed)
	}
}

func (c *Controller) transitionLocked(next Phase, elapsed time.Duration) {
	c.state.Phase = next
	c.state.TransitionCount++
	c.lastIntervalTick = elapsed
	switch next {
	case PhaseSustain:
		c.sustainStart = elapsed
	case PhaseComplete:
		c.completed = true
		c.completedAt = elapsed
		c.state.CurrentRate = 0
	}
}

// sampleLocked queries the (cached) provider. A provider error is treated
// as "no new information": the caller should hold the current rate.
func (c *Controller) sampleLocked() (ratio float64, ok bool) {
	m, err := c.provider.Sample()
	if err != nil {
		return 0, false
	}
	return m.FailureRatio, true
}

func halveFloor1(step float64) float64 {
	half := step / 2
	if half < 1 {
		return 1
	}
	return half
}
