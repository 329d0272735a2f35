// Command vajrapulse drives a load generation run from the command
// line: it resolves a task, builds the requested load pattern (or the
// adaptive controller), and hands both to the Test Runner until the
// pattern completes or it's interrupted.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/google/uuid"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/happysantoo/vajrapulse-sub008/examples/tasks"
	"github.com/happysantoo/vajrapulse-sub008/internal/adaptive"
	"github.com/happysantoo/vajrapulse-sub008/internal/backpressure"
	"github.com/happysantoo/vajrapulse-sub008/internal/config"
	"github.com/happysantoo/vajrapulse-sub008/internal/exporter"
	"github.com/happysantoo/vajrapulse-sub008/internal/logging"
	"github.com/happysantoo/vajrapulse-sub008/internal/metrics"
	"github.com/happysantoo/vajrapulse-sub008/internal/pattern"
	"github.com/happysantoo/vajrapulse-sub008/internal/preflight"
	"github.com/happysantoo/vajrapulse-sub008/internal/runner"
	"github.com/happysantoo/vajrapulse-sub008/internal/task"
	"github.com/happysantoo/vajrapulse-sub008/internal/tui"
)

// Exit codes per the documented CLI contract: 0 on normal completion,
// non-zero on invalid arguments or lifecycle failure.
const (
	exitOK             = 0
	exitInvalidArgs    = 1
	exitPreflightFailed = 2
	exitRunFailed      = 3
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg := config.DefaultConfig()

	if err := config.LoadFile(cfg, peekConfigPath(args)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitInvalidArgs
	}
	if err := config.ApplyEnv(cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitInvalidArgs
	}
	if _, err := config.ParseFlags(cfg, args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitInvalidArgs
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitInvalidArgs
	}

	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()[:8]
	}

	logger := logging.WithRunID(logging.NewLogger(cfg.LogFormat, "info", cfg.Verbose), cfg.RunID)
	logging.SetDefault(logger)

	registry := task.NewRegistry()
	tasks.Register(registry)
	t, err := registry.Resolve(cfg.TaskID)
	if err != nil {
		logger.Error("task_resolve_failed", "task_id", cfg.TaskID, "error", err)
		return exitInvalidArgs
	}

	maxConcurrency := estimateMaxConcurrency(cfg)
	preflightResult := preflight.RunAll(maxConcurrency, cfg.QueueSize)
	preflight.PrintResults(preflightResult)
	if !preflightResult.Passed {
		return exitPreflightFailed
	}

	metricsCollector := metrics.NewCollector(metrics.CollectorConfig{RunID: cfg.RunID})
	metricsServer := metrics.NewServer(cfg.MetricsAddr, logger)
	metricsServer.SetRunInfo(cfg.RunID, cfg.TaskID)
	if err := metricsServer.Start(); err != nil {
		logger.Error("metrics_server_start_failed", "error", err)
		return exitRunFailed
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		metricsServer.Shutdown(ctx)
	}()

	exporters := []exporter.Exporter{exporter.NewLogExporter(logger)}
	if cfg.JSONExportPath != "" {
		f, err := os.OpenFile(cfg.JSONExportPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			logger.Error("json_export_open_failed", "path", cfg.JSONExportPath, "error", err)
			return exitInvalidArgs
		}
		defer f.Close()
		exporters = append(exporters, exporter.NewJSONExporter(f))
	}

	r := runner.New(runner.Options{
		RunID:        cfg.RunID,
		TaskType:     cfg.TaskID,
		DrainTimeout: cfg.DrainTimeout,
		ForceTimeout: cfg.ForceTimeout,
		QueueSize:    cfg.QueueSize,
		Percentiles:  cfg.Percentiles,
		Reporter: runner.Reporter{
			Interval:        cfg.ReportInterval,
			FireImmediately: cfg.ReportFireImmediately,
		},
		Logger:   logger,
		Observer: metricsCollector,
	}, exporters...)

	r.SetBackpressureHandler(buildBackpressureHandler(cfg, r))

	pat, adaptiveCtl, err := buildPattern(cfg, r.MetricsProvider())
	if err != nil {
		logger.Error("pattern_build_failed", "error", err)
		return exitInvalidArgs
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stopMetricsLoop := startMetricsLoop(ctx, metricsCollector, r, adaptiveCtl)
	defer stopMetricsLoop()

	var program *tea.Program
	if os.Getenv("VAJRAPULSE_TUI") != "" {
		model := tui.New(tui.Config{
			TaskType:       cfg.TaskID,
			TargetRate:     cfg.TPS,
			MetricsAddr:    cfg.MetricsAddr,
			StatsSource:    r,
			AdaptiveSource: adaptiveSource{adaptiveCtl},
		})
		program = tea.NewProgram(model, tea.WithAltScreen())
		go func() {
			if _, err := program.Run(); err != nil {
				logger.Error("tui_error", "error", err)
			}
			stop()
		}()
	}

	metricsServer.SetReady(true)
	runErr := r.Run(ctx, t, pat)
	metricsServer.SetReady(false)
	if program != nil {
		tui.SendQuit(program)
	}

	if runErr != nil {
		logger.Error("run_failed", "error", runErr)
		return exitRunFailed
	}
	return exitOK
}

// buildBackpressureHandler composes a queue-depth provider over r's
// aggregator with an optional origin scrape provider, and wraps the
// result in a backpressure.Handler shedding at cfg.BackpressureThreshold.
func buildBackpressureHandler(cfg *config.Config, r *runner.Runner) *backpressure.Handler {
	providers := []backpressure.Provider{
		&backpressure.QueueDepthProvider{Agg: r.Aggregator(), Capacity: int64(cfg.QueueSize)},
	}
	if cfg.BackpressureOriginURL != "" {
		providers = append(providers, backpressure.NewScrapeProvider(cfg.BackpressureOriginURL, cfg.BackpressureOriginMetric))
	}
	if cfg.BackpressureLatencyThresholdMS > 0 {
		providers = append(providers, &backpressure.LatencyProvider{
			Agg:            r.Aggregator(),
			Percentile:     cfg.BackpressureLatencyPercentile,
			ThresholdNanos: cfg.BackpressureLatencyThresholdMS * float64(time.Millisecond),
		})
	}
	return backpressure.NewHandler(backpressure.NewComposite(providers...), cfg.BackpressureThreshold)
}

// adaptiveSource adapts a possibly-nil *adaptive.Controller to
// tui.AdaptiveSource, so the TUI wiring above works whether or not the
// run uses adaptive mode.
type adaptiveSource struct {
	ctl *adaptive.Controller
}

func (a adaptiveSource) Snapshot() adaptive.State {
	if a.ctl == nil {
		return adaptive.State{}
	}
	return a.ctl.Snapshot()
}

// buildPattern constructs the pattern.Pattern selected by cfg.Mode,
// wrapping it in WarmupCooldown when either duration is set. For
// mode=adaptive it samples provider and also returns the Controller, so
// the caller can poll its phase state for reporting.
func buildPattern(cfg *config.Config, provider adaptive.MetricsProvider) (pattern.Pattern, *adaptive.Controller, error) {
	var pat pattern.Pattern
	var ctl *adaptive.Controller

	switch cfg.Mode {
	case "static":
		pat = pattern.NewStatic(cfg.TPS, cfg.Duration)
	case "ramp":
		pat = pattern.NewRampUp(cfg.TPS, cfg.RampDuration)
	case "ramp-sustain":
		pat = pattern.NewRampSustain(cfg.TPS, cfg.RampDuration, cfg.Duration-cfg.RampDuration)
	case "step":
		segments, err := pattern.ParseSteps(cfg.Steps)
		if err != nil {
			return nil, nil, err
		}
		pat = pattern.NewStep(segments)
	case "sine":
		pat = pattern.NewSineWave(cfg.MeanRate, cfg.Amplitude, cfg.Period, cfg.Duration)
	case "spike":
		pat = pattern.NewSpike(cfg.BaseRate, cfg.SpikeRate, cfg.SpikeInterval, cfg.SpikeDuration, cfg.Duration)
	case "adaptive":
		adaptiveCfg := adaptive.Config{
			InitialRate:             cfg.InitialTPS,
			RampIncrement:           cfg.RampIncrement,
			RampDecrement:           cfg.RampDecrement,
			RampInterval:            cfg.RampInterval,
			MinRate:                 0,
			MaxRate:                 config.ResolveMaxTPS(cfg, runtime.GOMAXPROCS(0)),
			SustainDuration:         cfg.SustainDuration,
			StableIntervalsRequired: 3,
			ErrorThreshold:          cfg.ErrorThreshold,
		}
		if err := adaptiveCfg.Validate(); err != nil {
			return nil, nil, err
		}
		ctl = adaptive.New(adaptiveCfg, provider)
		pat = ctl
	default:
		return nil, nil, fmt.Errorf("config: unknown mode %q", cfg.Mode)
	}

	if cfg.WarmupDuration > 0 || cfg.CooldownDuration > 0 {
		pat = pattern.NewWarmupCooldown(pat, cfg.WarmupDuration, cfg.CooldownDuration)
	}

	return pat, ctl, nil
}

// startMetricsLoop periodically pushes the runner's latest snapshot and
// (when the run is adaptive) controller state into the Prometheus
// collector. It returns a function that stops the loop and waits for it
// to exit.
func startMetricsLoop(ctx context.Context, collector *metrics.Collector, r *runner.Runner, ctl *adaptive.Controller) func() {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				collector.ObserveSnapshot(r.Snapshot(), nil)
				collector.ObserveRuntime()
				if ctl != nil {
					collector.ObserveAdaptive(ctl.Snapshot())
				}
			}
		}
	}()
	return func() { <-done }
}

// peekConfigPath scans args for -config/--config ahead of the full flag
// parse, since LoadFile must run before ParseFlags in the precedence
// chain (file overrides defaults, flags override everything).
func peekConfigPath(args []string) string {
	for i, a := range args {
		switch {
		case a == "-config" || a == "--config":
			if i+1 < len(args) {
				return args[i+1]
			}
		case len(a) > 8 && a[:8] == "-config=":
			return a[8:]
		case len(a) > 9 && a[:9] == "--config=":
			return a[9:]
		}
	}
	return ""
}

// estimateMaxConcurrency approximates the concurrent in-flight
// iterations a run at cfg's peak configured rate will sustain, for the
// preflight resource checks. It assumes a generous 2-second average
// iteration latency as a worst-case planning figure.
func estimateMaxConcurrency(cfg *config.Config) int {
	peak := cfg.TPS
	for _, v := range []float64{cfg.MeanRate + cfg.Amplitude, cfg.SpikeRate, cfg.InitialTPS} {
		if v > peak {
			peak = v
		}
	}
	if peak <= 0 {
		peak = 10
	}
	return int(peak*2) + 1
}

