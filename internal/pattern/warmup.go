package pattern

import "time"

// WarmupCooldown wraps another pattern, zeroing its rate outside the
// steady window [Warmup, TotalDuration-Cooldown) and suppressing metric
// recording there too.
type WarmupCooldown struct {
	Inner Pattern
	Warmup time.Duration
	Cooldown time.Duration
}

// NewWarmupCooldown wraps inner with warmup and cooldown windows during
// which the target rate is zero and recording is suppressed.
func NewWarmupCooldown(inner Pattern, warmup, cooldown time.Duration) *WarmupCooldown {
	return &WarmupCooldown{Inner: inner, Warmup: warmup, Cooldown: cooldown}
}

func (w *WarmupCooldown) steadyEnd() time.Duration {
	total := w.Inner.TotalDuration()
	if total == UnboundedDuration {
		return UnboundedDuration
	}
	end := total - w.Cooldown
	if end < w.Warmup {
		end = w.Warmup
	}
	return end
}

func (w *WarmupCooldown) inSteadyWindow(elapsed time.Duration) bool {
	if elapsed < w.Warmup {
		return false
	}
	end := w.steadyEnd()
	if end == UnboundedDuration {
		return true
	}
	return elapsed < end
}

func (w *WarmupCooldown) TargetRate(elapsed time.Duration) float64 {
	if !w.inSteadyWindow(elapsed) {
		return 0
	}
	return w.Inner.TargetRate(elapsed)
}

func (w *WarmupCooldown) TotalDuration() time.Duration {
	return w.Inner.TotalDuration()
}

// SuppressRecording reports true outside the steady window, so the Engine
// skips recording warmup/cooldown iterations into the Aggregator.
func (w *WarmupCooldown) SuppressRecording(elapsed time.Duration) bool {
	return !w.inSteadyWindow(elapsed)
}

var _ Suppressor = (*WarmupCooldown)(nil)
