package adaptive

import (
	"errors"
	"fmt"
	"time"
)

// Config is the immutable Adaptive Config.
type Config struct {
	InitialRate float64
	RampIncrement float64
	RampDecrement float64
	RampInterval time.Duration
	MinRate float64
	MaxRate float64
	SustainDuration time.Duration
	StableIntervalsRequired int
	ErrorThreshold float64

	// MaxUnstableCycles bounds the RampUp/RampDown/Sustain search: this
	// many consecutive sustain-driven RampUp re-entries that fail to beat
	// the best stable rate found so far move the controller to Complete.
	// Zero means "use the default of 3".
	MaxUnstableCycles int
}

// defaultMaxUnstableCycles is the default cap on unstable ramp cycles.
const defaultMaxUnstableCycles = 3

// Validate checks the configured invariants: min ≤ initial ≤ max,
// increment > 0, decrement > 0, ramp interval > 0, sustain duration > 0,
// 0 ≤ threshold ≤ 1.
func (c Config) Validate() error {
	switch {
	case c.MinRate > c.InitialRate:
		return errors.New("adaptive: min rate must be <= initial rate")
	case c.InitialRate > c.MaxRate:
		return errors.New("adaptive: initial rate must be <= max rate")
	case c.RampIncrement <= 0:
		return errors.New("adaptive: ramp increment must be > 0")
	case c.RampDecrement <= 0:
		return errors.New("adaptive: ramp decrement must be > 0")
	case c.RampInterval <= 0:
		return errors.New("adaptive: ramp interval must be > 0")
	case c.SustainDuration <= 0:
		return errors.New("adaptive: sustain duration must be > 0")
	case c.ErrorThreshold < 0 || c.ErrorThreshold > 1:
		return errors.New("adaptive: error threshold must be within [0, 1]")
	case c.StableIntervalsRequired <= 0:
		return errors.New("adaptive: stable intervals required must be > 0")
	}
	return nil
}

func (c Config) maxUnstableCycles() int {
	if c.MaxUnstableCycles <= 0 {
		return defaultMaxUnstableCycles
	}
	return c.MaxUnstableCycles
}

func (c Config) String() string {
	return fmt.Sprintf(
		"adaptive.Config{initial=%.1f incr=%.1f decr=%.1f interval=%s min=%.1f max=%.1f sustain=%s stableIntervals=%d threshold=%.3f}",
		c.InitialRate, c.RampIncrement, c.RampDecrement, c.RampInterval,
		c.MinRate, c.MaxRate, c.SustainDuration, c.StableIntervalsRequired, c.ErrorThreshold,
	)
}

func clampRate(rate, min, max float64) float64 {
	if rate < min {
		return min
	}
	if rate > max {
		return max
	}
	return rate
}
