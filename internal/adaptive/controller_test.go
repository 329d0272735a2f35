package adaptive

import (
	"errors"
	"testing"
	"time"
)

type fakeProvider struct {
	ratio float64
	err   error
}

func (f *fakeProvider) Sample() (Metrics, error) {
	if f.err != nil {
		return Metrics{}, f.err
	}
	return Metrics{FailureRatio: f.ratio}, nil
}

func baseConfig() Config {
	return Config{
		InitialRate:             10,
		RampIncrement:           10,
		RampDecrement:           10,
		RampInterval:            time.Second,
		MinRate:                 1,
		MaxRate:                 100,
		SustainDuration:         5 * time.Second,
		StableIntervalsRequired: 2,
		ErrorThreshold:          0.1,
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := baseConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	bad := cfg
	bad.MinRate = 50
	if err := bad.Validate(); err == nil {
		t.Error("expected error for min > initial")
	}
}

func TestControllerRampsUpWhileHealthy(t *testing.T) {
	p := &fakeProvider{ratio: 0}
	c := New(baseConfig(), p)

	rate := c.TargetRate(0)
	if rate != 10 {
		t.Fatalf("initial rate = %v, want 10", rate)
	}
	rate = c.TargetRate(time.Second)
	if rate != 20 {
		t.Fatalf("rate after one healthy interval = %v, want 20", rate)
	}
	rate = c.TargetRate(2 * time.Second)
	if rate != 30 {
		t.Fatalf("rate after two healthy intervals = %v, want 30", rate)
	}
	if c.Snapshot().Phase != PhaseRampUp {
		t.Errorf("phase = %v, want RampUp", c.Snapshot().Phase)
	}
}

func TestControllerTransitionsToRampDownOnFailure(t *testing.T) {
	p := &fakeProvider{ratio: 0}
	c := New(baseConfig(), p)

	c.TargetRate(0)
	p.ratio = 0.5
	c.TargetRate(time.Second)
	if got := c.Snapshot().Phase; got != PhaseRampDown {
		t.Errorf("phase = %v, want RampDown", got)
	}
}

func TestControllerFindsStableRateAndSustains(t *testing.T) {
	p := &fakeProvider{ratio: 0.5}
	c := New(baseConfig(), p)

	c.TargetRate(0)        // RampUp at 10
	c.TargetRate(time.Second) // breach -> RampDown, rate still 10 at this tick
	p.ratio = 0
	c.TargetRate(2 * time.Second) // stable interval 1
	c.TargetRate(3 * time.Second) // stable interval 2 -> Sustain

	snap := c.Snapshot()
	if snap.Phase != PhaseSustain {
		t.Fatalf("phase = %v, want Sustain", snap.Phase)
	}
	if snap.StableRate <= 0 {
		t.Errorf("stable rate = %v, want > 0", snap.StableRate)
	}
	if snap.StableRate != snap.CurrentRate {
		t.Errorf("current rate should equal stable rate while sustaining")
	}
}

func TestControllerSustainBreachReturnsToRampDown(t *testing.T) {
	p := &fakeProvider{ratio: 0.5}
	c := New(baseConfig(), p)
	c.TargetRate(0)
	c.TargetRate(time.Second)
	p.ratio = 0
	c.TargetRate(2 * time.Second)
	c.TargetRate(3 * time.Second)
	if c.Snapshot().Phase != PhaseSustain {
		t.Fatalf("expected Sustain before breach test")
	}

	p.ratio = 0.9
	c.TargetRate(4 * time.Second)
	if c.Snapshot().Phase != PhaseRampDown {
		t.Errorf("phase = %v, want RampDown after sustain breach", c.Snapshot().Phase)
	}
}

func TestControllerSustainExpiryReentersRampUpWithHalvedStep(t *testing.T) {
	cfg := baseConfig()
	cfg.SustainDuration = time.Second
	p := &fakeProvider{ratio: 0.5}
	c := New(cfg, p)
	c.TargetRate(0)
	c.TargetRate(time.Second)
	p.ratio = 0
	c.TargetRate(2 * time.Second)
	c.TargetRate(3 * time.Second)
	if c.Snapshot().Phase != PhaseSustain {
		t.Fatalf("expected Sustain")
	}

	// Sustain duration (1s) has elapsed since sustainStart (3s): the next
	// sample at 4s should trip re-entry into RampUp.
	c.TargetRate(4 * time.Second)
	if c.Snapshot().Phase != PhaseRampUp {
		t.Errorf("phase = %v, want RampUp after sustain expiry", c.Snapshot().Phase)
	}
	if c.stepIncrement != 5 {
		t.Errorf("stepIncrement = %v, want 5 (halved from 10)", c.stepIncrement)
	}
}

func TestControllerCompletesAfterMaxUnstableCycles(t *testing.T) {
	cfg := baseConfig()
	cfg.SustainDuration = time.Second
	cfg.MaxUnstableCycles = 1
	p := &fakeProvider{ratio: 0.5}
	c := New(cfg, p)
	c.TargetRate(0)
	c.TargetRate(time.Second)
	p.ratio = 0
	c.TargetRate(2 * time.Second)
	c.TargetRate(3 * time.Second) // -> Sustain
	c.TargetRate(4 * time.Second) // sustain expires, unstableCycles=1 >= max -> Complete

	snap := c.Snapshot()
	if snap.Phase != PhaseComplete {
		t.Fatalf("phase = %v, want Complete", snap.Phase)
	}
	if rate := c.TargetRate(5 * time.Second); rate != 0 {
		t.Errorf("TargetRate after Complete = %v, want 0", rate)
	}
	if d := c.TotalDuration(); d != 4*time.Second {
		t.Errorf("TotalDuration = %v, want 4s (elapsed at completion)", d)
	}
}

func TestControllerRateStaysWithinBounds(t *testing.T) {
	cfg := baseConfig()
	p := &fakeProvider{ratio: 0}
	c := New(cfg, p)
	for i := int64(0); i < 20; i++ {
		rate := c.TargetRate(time.Duration(i) * time.Second)
		if rate < cfg.MinRate || rate > cfg.MaxRate {
			t.Fatalf("rate %v out of [%v, %v] at tick %d", rate, cfg.MinRate, cfg.MaxRate, i)
		}
	}
}

func TestControllerHoldsRateOnProviderError(t *testing.T) {
	p := &fakeProvider{err: errors.New("scrape failed")}
	c := New(baseConfig(), p)
	rate0 := c.TargetRate(0)
	rate1 := c.TargetRate(time.Second)
	if rate0 != rate1 {
		t.Errorf("rate changed despite provider error: %v -> %v", rate0, rate1)
	}
}

func TestCachedProviderRespectsTTL(t *testing.T) {
	calls := 0
	inner := providerFunc(func() (Metrics, error) {
		calls++
		return Metrics{FailureRatio: float64(calls)}, nil
	})
	cached := NewCachedProviderTTL(inner, 50*time.Millisecond)

	m1, _ := cached.Sample()
	m2, _ := cached.Sample()
	if m1 != m2 {
		t.Errorf("expected cached value within TTL, got %v then %v", m1, m2)
	}
	if calls != 1 {
		t.Errorf("inner provider called %d times, want 1", calls)
	}

	time.Sleep(60 * time.Millisecond)
	m3, _ := cached.Sample()
	if m3 == m1 {
		t.Error("expected a fresh sample after TTL expiry")
	}
}

func TestCachedProviderServesLastValueOnError(t *testing.T) {
	var fail bool
	inner := providerFunc(func() (Metrics, error) {
		if fail {
			return Metrics{}, errors.New("boom")
		}
		return Metrics{FailureRatio: 0.25}, nil
	})
	cached := NewCachedProviderTTL(inner, time.Millisecond)
	m1, err := cached.Sample()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	time.Sleep(2 * time.Millisecond)
	fail = true
	m2, err := cached.Sample()
	if err != nil {
		t.Fatalf("expected cached error fallback, got err: %v", err)
	}
	if m2 != m1 {
		t.Errorf("expected stale-but-good value on error, got %v want %v", m2, m1)
	}
}

type providerFunc func() (Metrics, error)

func (f providerFunc) Sample() (Metrics, error) { return f() }
