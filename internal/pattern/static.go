package pattern

import "time"

// Static emits a constant rate for a fixed duration.
type Static struct {
	Rate     float64
	Duration time.Duration
}

// NewStatic builds a Static pattern. A non-positive duration makes the
// pattern unbounded.
func NewStatic(rate float64, duration time.Duration) *Static {
	return &Static{Rate: clampRate(rate), Duration: duration}
}

func (s *Static) TargetRate(_ time.Duration) float64 {
	return s.Rate
}

func (s *Static) TotalDuration() time.Duration {
	if s.Duration <= 0 {
		return UnboundedDuration
	}
	return s.Duration
}
