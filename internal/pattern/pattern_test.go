package pattern

import (
	"testing"
	"time"
)

func TestStaticRate(t *testing.T) {
	s := NewStatic(100, time.Second)
	if s.TargetRate(0) != 100 {
		t.Errorf("TargetRate(0) = %v, want 100", s.TargetRate(0))
	}
	if s.TargetRate(500*time.Millisecond) != 100 {
		t.Errorf("TargetRate mid = %v, want 100", s.TargetRate(500*time.Millisecond))
	}
	if s.TotalDuration() != time.Second {
		t.Errorf("TotalDuration = %v, want 1s", s.TotalDuration())
	}
}

func TestStaticUnbounded(t *testing.T) {
	s := NewStatic(10, 0)
	if s.TotalDuration() != UnboundedDuration {
		t.Errorf("TotalDuration = %v, want unbounded", s.TotalDuration())
	}
}

func TestRampUpLinear(t *testing.T) {
	r := NewRampUp(100, 10*time.Second)
	if rate := r.TargetRate(0); rate != 0 {
		t.Errorf("TargetRate(0) = %v, want 0", rate)
	}
	if rate := r.TargetRate(5 * time.Second); rate != 50 {
		t.Errorf("TargetRate(5s) = %v, want 50", rate)
	}
	if rate := r.TargetRate(20 * time.Second); rate != 100 {
		t.Errorf("TargetRate(20s) = %v, want 100 (held at peak)", rate)
	}
}

func TestRampSustainDuration(t *testing.T) {
	r := NewRampSustain(100, 10*time.Second, 5*time.Second)
	if r.TotalDuration() != 15*time.Second {
		t.Errorf("TotalDuration = %v, want 15s", r.TotalDuration())
	}
	if rate := r.TargetRate(12 * time.Second); rate != 100 {
		t.Errorf("TargetRate in sustain = %v, want 100", rate)
	}
}

func TestStepSegments(t *testing.T) {
	s := NewStep([]Segment{
		{Rate: 10, Duration: time.Second},
		{Rate: 20, Duration: time.Second},
		{Rate: 30, Duration: time.Second},
	})
	cases := []struct {
		elapsed time.Duration
		want    float64
	}{
		{0, 10},
		{999 * time.Millisecond, 10},
		{time.Second, 20},
		{2 * time.Second, 30},
		{10 * time.Second, 30},
	}
	for _, c := range cases {
		if got := s.TargetRate(c.elapsed); got != c.want {
			t.Errorf("TargetRate(%v) = %v, want %v", c.elapsed, got, c.want)
		}
	}
	if s.TotalDuration() != 3*time.Second {
		t.Errorf("TotalDuration = %v, want 3s", s.TotalDuration())
	}
}

func TestSineWaveBounds(t *testing.T) {
	s := NewSineWave(100, 50, 4*time.Second, 10*time.Second)
	// Quarter period: sin(pi/2) = 1 -> mean + amplitude.
	if rate := s.TargetRate(time.Second); rate < 149 || rate > 151 {
		t.Errorf("TargetRate at quarter period = %v, want ~150", rate)
	}
	// Rate must never be negative even with amplitude > mean.
	s2 := NewSineWave(10, 50, 4*time.Second, 10*time.Second)
	for ms := 0; ms < 10000; ms += 100 {
		if r := s2.TargetRate(time.Duration(ms) * time.Millisecond); r < 0 {
			t.Fatalf("TargetRate(%dms) = %v, want >= 0", ms, r)
		}
	}
}

func TestSpikeIntervals(t *testing.T) {
	s := NewSpike(10, 100, 5*time.Second, time.Second, 0)
	if rate := s.TargetRate(0); rate != 100 {
		t.Errorf("TargetRate(0) = %v, want 100 (spike)", rate)
	}
	if rate := s.TargetRate(2 * time.Second); rate != 10 {
		t.Errorf("TargetRate(2s) = %v, want 10 (base)", rate)
	}
	if rate := s.TargetRate(5 * time.Second); rate != 100 {
		t.Errorf("TargetRate(5s) = %v, want 100 (next spike)", rate)
	}
}

func TestWarmupCooldownSuppression(t *testing.T) {
	inner := NewStatic(100, time.Second)
	w := NewWarmupCooldown(inner, 200*time.Millisecond, 200*time.Millisecond)

	if rate := w.TargetRate(100 * time.Millisecond); rate != 0 {
		t.Errorf("TargetRate during warmup = %v, want 0", rate)
	}
	if !w.SuppressRecording(100 * time.Millisecond) {
		t.Error("SuppressRecording should be true during warmup")
	}

	if rate := w.TargetRate(500 * time.Millisecond); rate != 100 {
		t.Errorf("TargetRate during steady state = %v, want 100", rate)
	}
	if w.SuppressRecording(500 * time.Millisecond) {
		t.Error("SuppressRecording should be false during steady state")
	}

	if rate := w.TargetRate(900 * time.Millisecond); rate != 0 {
		t.Errorf("TargetRate during cooldown = %v, want 0", rate)
	}
	if !w.SuppressRecording(900 * time.Millisecond) {
		t.Error("SuppressRecording should be true during cooldown")
	}
}

func TestWarmupCooldownUnboundedInner(t *testing.T) {
	inner := NewStatic(100, 0)
	w := NewWarmupCooldown(inner, 100*time.Millisecond, 0)
	if !w.inSteadyWindow(200 * time.Millisecond) {
		t.Error("expected steady window for unbounded inner pattern past warmup")
	}
}
