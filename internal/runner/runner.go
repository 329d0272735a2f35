// Package runner implements the Test Runner / Pipeline:
// it binds an aggregator, a set of exporters, an optional periodic
// reporter, and the execution engine into one run.
//
// Grounded in internal/orchestrator.Orchestrator.Run() for
// the top-level setup/wait/shutdown/summary sequence and in
// printExitSummary for the "issue one final report before returning"
// shape, generalized from the FFmpeg client-swarm lifecycle to a single
// Task/Pattern run.
package runner

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/happysantoo/vajrapulse-sub008/internal/adaptive"
	"github.com/happysantoo/vajrapulse-sub008/internal/aggregator"
	"github.com/happysantoo/vajrapulse-sub008/internal/engine"
	"github.com/happysantoo/vajrapulse-sub008/internal/exporter"
	"github.com/happysantoo/vajrapulse-sub008/internal/pattern"
	"github.com/happysantoo/vajrapulse-sub008/internal/task"
)

// MetricsObserver receives live run telemetry for export as Prometheus
// metrics. *metrics.Collector implements it structurally; runner doesn't
// import the metrics package so a caller that doesn't want Prometheus
// exposure can leave this nil at no cost.
type MetricsObserver interface {
	RecordLifecycleEvent(event string)
	RecordQueueWait(d time.Duration)
	RecordDuration(status string, d time.Duration)
	ObserveSubstrate(threadType string, active, poolSize, coreSize, maxSize, queued int)
	ObserveEngine(eng *engine.Engine)
}

// substrateSampleInterval is how often the runner polls the engine's
// concurrency substrate for Observer.ObserveSubstrate, independent of
// Reporter.Interval (which governs exporter output, not Prometheus gauges).
const substrateSampleInterval = time.Second

// Reporter configures the optional periodic export
type Reporter struct {
	// Interval between periodic exports. Zero or negative disables
	// periodic reporting; only the final export still happens.
	Interval time.Duration
	// FireImmediately issues one periodic export right after the run
	// starts, instead of waiting for the first interval tick.
	FireImmediately bool
}

// Options configures a Runner at build time.
type Options struct {
	RunID string
	TaskType string
	BackpressureHandler engine.BackpressureHandler
	DrainTimeout time.Duration
	ForceTimeout time.Duration
	QueueSize int
	Percentiles []float64
	Reporter Reporter
	Logger *slog.Logger
	Observer MetricsObserver
}

// Runner composes the aggregator, engine, and exporters for a single run,
//
type Runner struct {
	opts Options
	log *slog.Logger
	agg *aggregator.Aggregator
	exporters []exporter.Exporter
}

// New builds a Runner that will export to each of exporters, in the order
// given; Close (when implemented) is invoked in reverse order after the
// final export.
func New(opts Options, exporters...exporter.Exporter) *Runner {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	agg := aggregator.New(opts.Percentiles)
	if opts.Observer != nil {
		agg.SetObserver(opts.Observer)
	}
	return &Runner{
		opts: opts,
		log: opts.Logger.With("run_id", opts.RunID),
		agg: agg,
		exporters: exporters,
	}
}

// MetricsProvider returns a read-only view over the runner's aggregator
// suitable for wiring into an adaptive.Controller before Run, per
// `metrics_provider()`.
func (r *Runner) MetricsProvider() adaptive.MetricsProvider {
	return adaptive.NewCachedProvider(adaptive.NewAggregatorProvider(r.agg))
}

// Snapshot returns the runner's current aggregate snapshot, for callers
// (the TUI, a Prometheus collector) that poll run state outside the
// export pipeline.
func (r *Runner) Snapshot() aggregator.Snapshot {
	return r.agg.Snapshot()
}

// Aggregator returns the runner's underlying Aggregator, for callers
// (a backpressure.QueueDepthProvider or backpressure.LatencyProvider)
// that need to sample queue depth or latency percentiles directly
// rather than through a Snapshot copy.
func (r *Runner) Aggregator() *aggregator.Aggregator {
	return r.agg
}

// SetBackpressureHandler installs h as the Engine's backpressure
// handler. Exists because building a backpressure.Provider typically
// needs the runner's own Aggregator (see Aggregator above), which
// isn't available until after New returns — so the handler can't
// always be supplied through Options at construction time.
func (r *Runner) SetBackpressureHandler(h engine.BackpressureHandler) {
	r.opts.BackpressureHandler = h
}

// Run builds a run context, drives an engine over t and pat to
// completion, then issues one final export to every exporter with the
// final snapshot. An exporter error is logged as ExporterError and the
// run continues; Close is called on every exporter that implements it,
// in reverse registration order, regardless of earlier export errors.
func (r *Runner) Run(ctx context.Context, t task.Task, pat pattern.Pattern) error {
	runCtx := r.buildRunContext(pat)

	r.log.Info("run_starting",
		"pattern_type", runCtx.PatternType,
		"task_type", runCtx.TaskType,
	)

	engOpts := engine.Options{
		RunID: r.opts.RunID,
		BackpressureHandler: r.opts.BackpressureHandler,
		DrainTimeout: r.opts.DrainTimeout,
		ForceTimeout: r.opts.ForceTimeout,
		QueueSize: r.opts.QueueSize,
		Logger: r.opts.Logger,
	}
	if r.opts.Observer != nil {
		engOpts.OnLifecycleEvent = r.opts.Observer.RecordLifecycleEvent
	}
	eng := engine.New(t, pat, r.agg, engOpts)

	stopReporter := r.startPeriodicReporter(runCtx, eng)
	stopSubstrateSampler := r.startSubstrateSampler(eng)
	runErr := eng.Run(ctx)
	stopSubstrateSampler()
	stopReporter()

	r.export("final", runCtx)
	r.closeExporters()

	if runErr != nil {
		r.log.Error("run_failed", "error", runErr)
	} else {
		r.log.Info("run_complete")
	}
	return runErr
}

func (r *Runner) buildRunContext(pat pattern.Pattern) exporter.RunContext {
	return exporter.RunContext{
		RunID: r.opts.RunID,
		StartedAtMs: time.Now().UnixMilli(),
		PatternType: patternTypeName(pat),
		TaskType: r.opts.TaskType,
		GOOS: runtime.GOOS,
		GOARCH: runtime.GOARCH,
		NumCPU: runtime.NumCPU(),
		GoVersion: runtime.Version(),
	}
}

// startPeriodicReporter launches the optional periodic export goroutine
// and returns a function that stops it and waits for it
// to exit. A disabled reporter (Interval <= 0) returns a no-op stopper.
func (r *Runner) startPeriodicReporter(runCtx exporter.RunContext, eng *engine.Engine) func() {
	if r.opts.Reporter.Interval <= 0 {
		return func() {}
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(r.opts.Reporter.Interval)
		defer ticker.Stop()

		if r.opts.Reporter.FireImmediately {
			r.export("periodic", runCtx)
		}

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if eng.State() == engine.StateStopped {
					return
				}
				r.export("periodic", runCtx)
			}
		}
	}()

	return func() {
		close(done)
		wg.Wait()
	}
}

// startSubstrateSampler polls the engine's concurrency substrate sizing
// into Observer.ObserveSubstrate at substrateSampleInterval. A nil
// Observer returns a no-op stopper.
func (r *Runner) startSubstrateSampler(eng *engine.Engine) func() {
	if r.opts.Observer == nil {
		return func() {}
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(substrateSampleInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				stats := eng.SubstrateStats()
				r.opts.Observer.ObserveSubstrate(eng.ThreadType(),
					stats.Active, stats.PoolSize, stats.CoreSize, stats.MaxSize, stats.Queued)
				r.opts.Observer.ObserveEngine(eng)
			}
		}
	}()

	return func() {
		close(done)
		wg.Wait()
	}
}

func (r *Runner) export(title string, runCtx exporter.RunContext) {
	snap := r.agg.Snapshot()
	for _, exp := range r.exporters {
		if err := exp.Export(title, snap, runCtx); err != nil {
			r.log.Error("exporter_error",
				"error_kind", task.ErrorKindExporterError,
				"error", err,
			)
		}
	}
}

func (r *Runner) closeExporters() {
	for i := len(r.exporters) - 1; i >= 0; i-- {
		closer, ok := r.exporters[i].(exporter.Closer)
		if !ok {
			continue
		}
		if err := closer.Close(); err != nil {
			r.log.Error("exporter_close_error",
				"error_kind", task.ErrorKindExporterError,
				"error", err,
			)
		}
	}
}

// patternTypeName returns a stable, lower-snake-case label for a
// pattern's concrete type, used as the TaskType/PatternType tag on
// exports. Falls back to "custom" for user-supplied pattern types the
// core doesn't recognize.
func patternTypeName(pat pattern.Pattern) string {
	switch pat.(type) {
	case *pattern.Static:
		return "static"
	case *pattern.RampUp:
		return "ramp_up"
	case *pattern.RampSustain:
		return "ramp_sustain"
	case *pattern.Step:
		return "step"
	case *pattern.SineWave:
		return "sine"
	case *pattern.Spike:
		return "spike"
	case *pattern.WarmupCooldown:
		return "warmup_cooldown"
	case *adaptive.Controller:
		return "adaptive"
	default:
		return "custom"
	}
}
