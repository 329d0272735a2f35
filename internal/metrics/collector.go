package metrics

import (
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/happysantoo/vajrapulse-sub008/internal/adaptive"
	"github.com/happysantoo/vajrapulse-sub008/internal/aggregator"
	"github.com/happysantoo/vajrapulse-sub008/internal/engine"
	"github.com/happysantoo/vajrapulse-sub008/internal/ratecontrol"
)

// CollectorConfig configures a Collector.
type CollectorConfig struct {
	RunID string
}

// Collector publishes a run's live state under the vajrapulse_* metric
// names. Counters are derived from the Aggregator's cumulative totals by
// tracking the last-observed value and adding the delta on each Observe
// call, since the Aggregator itself only exposes point-in-time totals.
type Collector struct {
	mu sync.Mutex

	executionTotal       *prometheus.CounterVec
	executionDuration    *prometheus.HistogramVec
	backpressureDropped  prometheus.Counter
	backpressureRejected prometheus.Counter
	queueSize            prometheus.Gauge
	queueWaitTime        prometheus.Histogram

	requestTPS  *prometheus.GaugeVec
	responseTPS *prometheus.GaugeVec

	rateTarget prometheus.Gauge
	rateActual prometheus.Gauge
	rateError  prometheus.Gauge

	executorActiveThreads *prometheus.GaugeVec
	executorPoolSize      *prometheus.GaugeVec
	executorPoolCoreSize  *prometheus.GaugeVec
	executorPoolMaxSize   *prometheus.GaugeVec
	executorQueueSize     *prometheus.GaugeVec

	engineState           prometheus.Gauge
	engineUptimeSeconds   prometheus.Gauge
	engineUptimeMillis    prometheus.Gauge
	engineLifecycleEvents *prometheus.CounterVec

	adaptivePhase            prometheus.Gauge
	adaptiveCurrentTPS       prometheus.Gauge
	adaptiveStableTPS        prometheus.Gauge
	adaptivePhaseTransitions prometheus.Gauge

	runtimeHeapUsed      prometheus.Gauge
	runtimeHeapCommitted prometheus.Gauge
	runtimeHeapMax       prometheus.Gauge
	runtimeNonHeapUsed   prometheus.Gauge
	runtimeGCCollections prometheus.Gauge

	lastSuccess, lastFailure   int64
	lastDropped, lastRejected  int64
	lastTransitions            int64
	startedAt                  time.Time
}

// NewCollector registers the vajrapulse metric set on the default
// registry, tagging every metric with run_id when cfg.RunID is set.
func NewCollector(cfg CollectorConfig) *Collector {
	return NewCollectorWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewCollectorWithRegistry is NewCollector against an explicit registry,
// used by tests to avoid colliding with the process-global default.
func NewCollectorWithRegistry(cfg CollectorConfig, registry prometheus.Registerer) *Collector {
	labels := prometheus.Labels{}
	if cfg.RunID != "" {
		labels["run_id"] = cfg.RunID
	}

	factory := prometheus.WrapRegistererWith(labels, registry)

	c := &Collector{
		executionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vajrapulse_execution_total",
			Help: "Total iterations dispatched, by outcome status.",
		}, []string{"status"}),
		executionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vajrapulse_execution_duration_seconds",
			Help:    "Iteration execution duration, by outcome status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"status"}),
		backpressureDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vajrapulse_execution_backpressure_dropped_total",
			Help: "Iterations dropped by a backpressure handler.",
		}),
		backpressureRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vajrapulse_execution_backpressure_rejected_total",
			Help: "Iterations rejected with no handler accepting them.",
		}),
		queueSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vajrapulse_execution_queue_size",
			Help: "Current in-flight iteration queue depth.",
		}),
		queueWaitTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "vajrapulse_execution_queue_wait_time_seconds",
			Help:    "Time an iteration spent queued before executing.",
			Buckets: prometheus.DefBuckets,
		}),
		requestTPS: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vajrapulse_request_tps",
			Help: "Iterations dispatched per second, by type.",
		}, []string{"type"}),
		responseTPS: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vajrapulse_response_tps",
			Help: "Iterations completed per second, by type.",
		}, []string{"type"}),
		rateTarget: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vajrapulse_rate_target_tps",
			Help: "Current load pattern target rate.",
		}),
		rateActual: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vajrapulse_rate_actual_tps",
			Help: "Measured actual dispatch rate.",
		}),
		rateError: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vajrapulse_rate_tps_error",
			Help: "Target rate minus actual rate.",
		}),
		executorActiveThreads: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vajrapulse_executor_active_threads",
			Help: "Goroutines currently executing an iteration.",
		}, []string{"thread_type"}),
		executorPoolSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vajrapulse_executor_pool_size",
			Help: "Current concurrency substrate worker count.",
		}, []string{"thread_type"}),
		executorPoolCoreSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vajrapulse_executor_pool_core_size",
			Help: "Minimum concurrency substrate worker count.",
		}, []string{"thread_type"}),
		executorPoolMaxSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vajrapulse_executor_pool_max_size",
			Help: "Maximum concurrency substrate worker count.",
		}, []string{"thread_type"}),
		executorQueueSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vajrapulse_executor_queue_size",
			Help: "Pending submissions queued in the concurrency substrate.",
		}, []string{"thread_type"}),
		engineState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vajrapulse_engine_state",
			Help: "Engine lifecycle state (0=stopped,1=starting,2=running,3=stopping).",
		}),
		engineUptimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vajrapulse_engine_uptime",
			Help: "Seconds since the metrics collector was created.",
		}),
		engineUptimeMillis: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vajrapulse_engine_uptime_ms",
			Help: "Milliseconds since the metrics collector was created.",
		}),
		engineLifecycleEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vajrapulse_engine_lifecycle_events_total",
			Help: "Engine lifecycle transitions, by event.",
		}, []string{"event"}),
		adaptivePhase: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vajrapulse_adaptive_phase",
			Help: "Adaptive controller phase (0=ramp_up,1=ramp_down,2=sustain,3=complete).",
		}),
		adaptiveCurrentTPS: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vajrapulse_adaptive_current_tps",
			Help: "Adaptive controller's current target rate.",
		}),
		adaptiveStableTPS: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vajrapulse_adaptive_stable_tps",
			Help: "Last rate the adaptive controller found stable.",
		}),
		adaptivePhaseTransitions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vajrapulse_adaptive_phase_transitions",
			Help: "Cumulative adaptive controller phase transitions.",
		}),
		runtimeHeapUsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vajrapulse_runtime_memory_heap_used",
			Help: "Go runtime heap bytes in use, the platform analogue of a JVM heap.used gauge.",
		}),
		runtimeHeapCommitted: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vajrapulse_runtime_memory_heap_committed",
			Help: "Go runtime heap bytes obtained from the OS.",
		}),
		runtimeHeapMax: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vajrapulse_runtime_memory_heap_max",
			Help: "Go runtime heap bytes idle plus in use.",
		}),
		runtimeNonHeapUsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vajrapulse_runtime_memory_nonheap_used",
			Help: "Go runtime non-heap (stack + off-heap) bytes in use.",
		}),
		runtimeGCCollections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vajrapulse_runtime_gc_collections",
			Help: "Completed garbage collection cycles.",
		}),
		startedAt: time.Now(),
	}

	for _, coll := range []prometheus.Collector{
		c.executionTotal, c.executionDuration, c.backpressureDropped, c.backpressureRejected,
		c.queueSize, c.queueWaitTime, c.requestTPS, c.responseTPS,
		c.rateTarget, c.rateActual, c.rateError,
		c.executorActiveThreads, c.executorPoolSize, c.executorPoolCoreSize, c.executorPoolMaxSize, c.executorQueueSize,
		c.engineState, c.engineUptimeSeconds, c.engineUptimeMillis, c.engineLifecycleEvents,
		c.adaptivePhase, c.adaptiveCurrentTPS, c.adaptiveStableTPS, c.adaptivePhaseTransitions,
		c.runtimeHeapUsed, c.runtimeHeapCommitted, c.runtimeHeapMax, c.runtimeNonHeapUsed, c.runtimeGCCollections,
	} {
		factory.MustRegister(coll)
	}

	return c
}

// ObserveSnapshot updates the execution/queue/rate family of metrics
// from an Aggregator snapshot and a Rate Controller's telemetry.
func (c *Collector) ObserveSnapshot(snap aggregator.Snapshot, rc *ratecontrol.Controller) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.executionTotal.WithLabelValues("success").Add(float64(snap.Success - c.lastSuccess))
	c.executionTotal.WithLabelValues("failure").Add(float64(snap.Failure - c.lastFailure))
	c.lastSuccess, c.lastFailure = snap.Success, snap.Failure

	c.backpressureDropped.Add(float64(snap.Dropped - c.lastDropped))
	c.backpressureRejected.Add(float64(snap.Rejected - c.lastRejected))
	c.lastDropped, c.lastRejected = snap.Dropped, snap.Rejected

	c.queueSize.Set(float64(snap.QueueDepth))

	if rc != nil {
		c.rateTarget.Set(rc.TargetRate())
		c.rateActual.Set(rc.ActualRate())
		c.rateError.Set(rc.Error())
	}

	elapsed := time.Duration(snap.ElapsedMillis) * time.Millisecond
	if elapsed > 0 {
		seconds := elapsed.Seconds()
		c.requestTPS.WithLabelValues("total").Set(float64(snap.Total) / seconds)
		c.requestTPS.WithLabelValues("success").Set(float64(snap.Success) / seconds)
		c.requestTPS.WithLabelValues("failure").Set(float64(snap.Failure) / seconds)
		c.responseTPS.WithLabelValues("total").Set(float64(snap.Total) / seconds)
	}
}

// ObserveEngine updates the engine.* family from an Engine's current
// lifecycle state.
func (c *Collector) ObserveEngine(eng *engine.Engine) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.engineState.Set(float64(eng.State()))
	uptime := time.Since(c.startedAt)
	c.engineUptimeSeconds.Set(uptime.Seconds())
	c.engineUptimeMillis.Set(float64(uptime.Milliseconds()))
}

// ObserveSubstrate updates the executor.* family for a named concurrency
// substrate (e.g. "io_bound" or "cpu_bound").
func (c *Collector) ObserveSubstrate(threadType string, active, poolSize, coreSize, maxSize, queued int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.executorActiveThreads.WithLabelValues(threadType).Set(float64(active))
	c.executorPoolSize.WithLabelValues(threadType).Set(float64(poolSize))
	c.executorPoolCoreSize.WithLabelValues(threadType).Set(float64(coreSize))
	c.executorPoolMaxSize.WithLabelValues(threadType).Set(float64(maxSize))
	c.executorQueueSize.WithLabelValues(threadType).Set(float64(queued))
}

// RecordLifecycleEvent increments the engine lifecycle event counter.
func (c *Collector) RecordLifecycleEvent(event string) {
	c.engineLifecycleEvents.WithLabelValues(event).Inc()
}

// ObserveAdaptive updates the adaptive.* family from an adaptive
// controller's state snapshot.
func (c *Collector) ObserveAdaptive(state adaptive.State) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.adaptivePhase.Set(float64(state.Phase))
	c.adaptiveCurrentTPS.Set(state.CurrentRate)
	c.adaptiveStableTPS.Set(state.StableRate)
	c.adaptivePhaseTransitions.Add(float64(state.TransitionCount - c.lastTransitions))
	c.lastTransitions = state.TransitionCount
}

// ObserveRuntime samples the Go runtime's own memory/GC counters as the
// platform analogue of a JVM heap/GC metric family.
func (c *Collector) ObserveRuntime() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.runtimeHeapUsed.Set(float64(m.HeapAlloc))
	c.runtimeHeapCommitted.Set(float64(m.HeapSys))
	c.runtimeHeapMax.Set(float64(m.HeapIdle + m.HeapInuse))
	c.runtimeNonHeapUsed.Set(float64(m.StackInuse + m.MSpanInuse + m.MCacheInuse))
	c.runtimeGCCollections.Set(float64(m.NumGC))
}

// RecordQueueWait observes a single iteration's queue wait time.
func (c *Collector) RecordQueueWait(d time.Duration) {
	c.queueWaitTime.Observe(d.Seconds())
}

// RecordDuration observes a single iteration's execution duration under
// the given outcome status ("success" or "failure").
func (c *Collector) RecordDuration(status string, d time.Duration) {
	c.executionDuration.WithLabelValues(status).Observe(d.Seconds())
}
