package backpressure

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/happysantoo/vajrapulse-sub008/internal/aggregator"
	"github.com/happysantoo/vajrapulse-sub008/internal/task"
)

type constProvider struct {
	reading Reading
	err     error
}

func (c constProvider) Sample(ctx context.Context) (Reading, error) { return c.reading, c.err }

func TestCompositeReturnsMaxLevel(t *testing.T) {
	c := NewComposite(
		constProvider{reading: Reading{Level: 0.2, Description: "a"}},
		constProvider{reading: Reading{Level: 0.8, Description: "b"}},
		constProvider{reading: Reading{Level: 0.5, Description: "c"}},
	)
	r, err := c.Sample(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Level != 0.8 || r.Description != "b" {
		t.Errorf("got %+v, want level 0.8 from provider b", r)
	}
}

func TestCompositeSkipsErroringProviders(t *testing.T) {
	c := NewComposite(
		constProvider{err: errors.New("down")},
		constProvider{reading: Reading{Level: 0.4, Description: "ok"}},
	)
	r, err := c.Sample(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Level != 0.4 {
		t.Errorf("Level = %v, want 0.4", r.Level)
	}
}

func TestCompositeErrorsWhenAllFail(t *testing.T) {
	c := NewComposite(
		constProvider{err: errors.New("down")},
		constProvider{err: errors.New("also down")},
	)
	if _, err := c.Sample(context.Background()); err == nil {
		t.Error("expected error when every provider fails")
	}
}

func TestQueueDepthProviderReportsRatio(t *testing.T) {
	agg := aggregator.New(nil)
	agg.SetQueueDepth(50)
	p := &QueueDepthProvider{Agg: agg, Capacity: 100}

	r, err := p.Sample(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Level != 0.5 {
		t.Errorf("Level = %v, want 0.5", r.Level)
	}
}

func TestQueueDepthProviderClampsAboveCapacity(t *testing.T) {
	agg := aggregator.New(nil)
	agg.SetQueueDepth(500)
	p := &QueueDepthProvider{Agg: agg, Capacity: 100}

	r, _ := p.Sample(context.Background())
	if r.Level != 1 {
		t.Errorf("Level = %v, want 1 (clamped)", r.Level)
	}
}

func TestLatencyProviderNoSamplesReportsZero(t *testing.T) {
	agg := aggregator.New([]float64{0.99})
	p := &LatencyProvider{Agg: agg, Percentile: 0.99, ThresholdNanos: 1e6}

	r, err := p.Sample(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Level != 0 {
		t.Errorf("Level = %v, want 0 with no samples", r.Level)
	}
}

func TestLatencyProviderRatio(t *testing.T) {
	agg := aggregator.New([]float64{0.5})
	for i := 0; i < 10; i++ {
		agg.Record(aggregator.ExecutionRecord{
			StartNanos: 0,
			EndNanos:   1_000_000, // 1ms
			Outcome:    task.Success(nil),
		})
	}
	p := &LatencyProvider{Agg: agg, Percentile: 0.5, ThresholdNanos: 2_000_000}
	r, err := p.Sample(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Level < 0.4 || r.Level > 0.6 {
		t.Errorf("Level = %v, want ~0.5", r.Level)
	}
}

func TestScrapeProviderParsesGauge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		w.Write([]byte("# HELP origin_load current load\n# TYPE origin_load gauge\norigin_load 0.73\n"))
	}))
	defer srv.Close()

	p := NewScrapeProvider(srv.URL, "origin_load")
	r, err := p.Sample(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Level < 0.72 || r.Level > 0.74 {
		t.Errorf("Level = %v, want ~0.73", r.Level)
	}
}

func TestScrapeProviderMissingMetricErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("# TYPE other gauge\nother 1\n"))
	}))
	defer srv.Close()

	p := NewScrapeProvider(srv.URL, "missing_metric")
	if _, err := p.Sample(context.Background()); err == nil {
		t.Error("expected error for missing metric")
	}
}

func TestScrapeProviderClampsAboveOne(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("# TYPE saturated gauge\nsaturated 42\n"))
	}))
	defer srv.Close()

	p := NewScrapeProvider(srv.URL, "saturated")
	r, err := p.Sample(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Level != 1 {
		t.Errorf("Level = %v, want 1 (clamped)", r.Level)
	}
}
