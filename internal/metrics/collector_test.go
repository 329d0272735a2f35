package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/happysantoo/vajrapulse-sub008/internal/adaptive"
	"github.com/happysantoo/vajrapulse-sub008/internal/aggregator"
	"github.com/happysantoo/vajrapulse-sub008/internal/engine"
	"github.com/happysantoo/vajrapulse-sub008/internal/pattern"
	"github.com/happysantoo/vajrapulse-sub008/internal/ratecontrol"
	"github.com/happysantoo/vajrapulse-sub008/internal/task"
)

// newTestRegistry creates a new registry for isolated testing.
func newTestRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// newTestCollector creates a collector with a test registry.
func newTestCollector(cfg CollectorConfig) (*Collector, *prometheus.Registry) {
	registry := newTestRegistry()
	c := NewCollectorWithRegistry(cfg, registry)
	return c, registry
}

type noopTask struct{}

func (noopTask) Init(context.Context) error { return nil }
func (noopTask) Execute(context.Context, int64) (task.Outcome, error) {
	return task.Outcome{}, nil
}
func (noopTask) Teardown(context.Context) error { return nil }
func (noopTask) ConcurrencyHint() task.ConcurrencyHint { return task.IoBound }

func TestNewCollectorRegistersWithRunIDLabel(t *testing.T) {
	c, registry := newTestCollector(CollectorConfig{RunID: "run-123"})
	c.ObserveSnapshot(aggregator.Snapshot{Total: 1, Success: 1}, nil)

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	found := false
	for _, fam := range families {
		if fam.GetName() != "vajrapulse_execution_total" {
			continue
		}
		found = true
		for _, m := range fam.GetMetric() {
			var hasRunID bool
			for _, l := range m.GetLabel() {
				if l.GetName() == "run_id" && l.GetValue() == "run-123" {
					hasRunID = true
				}
			}
			if !hasRunID {
				t.Errorf("metric %v missing run_id label", m)
			}
		}
	}
	if !found {
		t.Fatal("vajrapulse_execution_total not registered")
	}
}

func TestObserveSnapshotAccumulatesCounterDeltas(t *testing.T) {
	c, _ := newTestCollector(CollectorConfig{})

	c.ObserveSnapshot(aggregator.Snapshot{Total: 5, Success: 4, Failure: 1, Dropped: 1, Rejected: 0}, nil)
	c.ObserveSnapshot(aggregator.Snapshot{Total: 9, Success: 7, Failure: 2, Dropped: 1, Rejected: 1}, nil)

	if got := testutil.ToFloat64(c.executionTotal.WithLabelValues("success")); got != 7 {
		t.Errorf("success total = %v, want 7", got)
	}
	if got := testutil.ToFloat64(c.executionTotal.WithLabelValues("failure")); got != 2 {
		t.Errorf("failure total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.backpressureDropped); got != 1 {
		t.Errorf("dropped total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.backpressureRejected); got != 1 {
		t.Errorf("rejected total = %v, want 1", got)
	}
}

func TestObserveSnapshotSetsQueueAndRateGauges(t *testing.T) {
	c, _ := newTestCollector(CollectorConfig{})
	rc := ratecontrol.New(pattern.NewStatic(10, 0))
	rc.Tick(time.Second)

	c.ObserveSnapshot(aggregator.Snapshot{QueueDepth: 3}, rc)

	if got := testutil.ToFloat64(c.queueSize); got != 3 {
		t.Errorf("queue size = %v, want 3", got)
	}
	if got := testutil.ToFloat64(c.rateTarget); got != rc.TargetRate() {
		t.Errorf("rate target = %v, want %v", got, rc.TargetRate())
	}
}

func TestObserveSnapshotComputesTPSGauges(t *testing.T) {
	c, _ := newTestCollector(CollectorConfig{})
	c.ObserveSnapshot(aggregator.Snapshot{Total: 20, Success: 18, Failure: 2, ElapsedMillis: 2000}, nil)

	if got := testutil.ToFloat64(c.requestTPS.WithLabelValues("total")); got != 10 {
		t.Errorf("request tps total = %v, want 10", got)
	}
	if got := testutil.ToFloat64(c.requestTPS.WithLabelValues("success")); got != 9 {
		t.Errorf("request tps success = %v, want 9", got)
	}
}

func TestObserveEngineSetsStateAndUptime(t *testing.T) {
	c, _ := newTestCollector(CollectorConfig{})
	agg := aggregator.New([]float64{0.5})
	eng := engine.New(noopTask{}, pattern.NewStatic(1, 0), agg, engine.Options{})

	c.ObserveEngine(eng)

	if got := testutil.ToFloat64(c.engineState); got != float64(engine.StateStopped) {
		t.Errorf("engine state = %v, want %v", got, engine.StateStopped)
	}
	if got := testutil.ToFloat64(c.engineUptimeSeconds); got <= 0 {
		t.Errorf("engine uptime = %v, want > 0", got)
	}
}

func TestObserveSubstrateSetsExecutorGauges(t *testing.T) {
	c, _ := newTestCollector(CollectorConfig{})
	c.ObserveSubstrate("io_bound", 4, 8, 1, 16, 2)

	if got := testutil.ToFloat64(c.executorActiveThreads.WithLabelValues("io_bound")); got != 4 {
		t.Errorf("active threads = %v, want 4", got)
	}
	if got := testutil.ToFloat64(c.executorQueueSize.WithLabelValues("io_bound")); got != 2 {
		t.Errorf("queue size = %v, want 2", got)
	}
}

func TestRecordLifecycleEventIncrementsPerEvent(t *testing.T) {
	c, _ := newTestCollector(CollectorConfig{})
	c.RecordLifecycleEvent("start")
	c.RecordLifecycleEvent("start")
	c.RecordLifecycleEvent("stop")

	if got := testutil.ToFloat64(c.engineLifecycleEvents.WithLabelValues("start")); got != 2 {
		t.Errorf("start events = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.engineLifecycleEvents.WithLabelValues("stop")); got != 1 {
		t.Errorf("stop events = %v, want 1", got)
	}
}

func TestObserveAdaptiveAccumulatesPhaseTransitions(t *testing.T) {
	c, _ := newTestCollector(CollectorConfig{})

	c.ObserveAdaptive(adaptive.State{Phase: adaptive.PhaseRampUp, CurrentRate: 5, StableRate: 0, TransitionCount: 1})
	c.ObserveAdaptive(adaptive.State{Phase: adaptive.PhaseSustain, CurrentRate: 8, StableRate: 8, TransitionCount: 3})

	if got := testutil.ToFloat64(c.adaptivePhase); got != float64(adaptive.PhaseSustain) {
		t.Errorf("phase = %v, want %v", got, adaptive.PhaseSustain)
	}
	if got := testutil.ToFloat64(c.adaptiveCurrentTPS); got != 8 {
		t.Errorf("current tps = %v, want 8", got)
	}
	if got := testutil.ToFloat64(c.adaptivePhaseTransitions); got != 3 {
		t.Errorf("phase transitions = %v, want 3", got)
	}
}

func TestObserveRuntimePopulatesGauges(t *testing.T) {
	c, _ := newTestCollector(CollectorConfig{})
	c.ObserveRuntime()

	if got := testutil.ToFloat64(c.runtimeGCCollections); got < 0 {
		t.Errorf("gc collections = %v, want >= 0", got)
	}
	if got := testutil.ToFloat64(c.runtimeHeapUsed); got <= 0 {
		t.Errorf("heap used = %v, want > 0", got)
	}
}

func TestRecordDurationAndQueueWaitObserveHistograms(t *testing.T) {
	c, _ := newTestCollector(CollectorConfig{})
	c.RecordDuration("success", 50*time.Millisecond)
	c.RecordQueueWait(5 * time.Millisecond)

	if got := testutil.CollectAndCount(c.executionDuration); got == 0 {
		t.Error("expected at least one duration sample")
	}
	if got := testutil.CollectAndCount(c.queueWaitTime); got == 0 {
		t.Error("expected at least one queue wait sample")
	}
}

func TestCollectorConcurrentObserveIsRaceFree(t *testing.T) {
	c, _ := newTestCollector(CollectorConfig{})
	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func(n int64) {
			c.ObserveSnapshot(aggregator.Snapshot{Total: n, Success: n}, nil)
			c.RecordLifecycleEvent("start")
			done <- struct{}{}
		}(int64(i))
	}
	for i := 0; i < 8; i++ {
		<-done
	}
}
