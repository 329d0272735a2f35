package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"
)

// durationValue is a flag.Value wrapping a time.Duration that also
// accepts a bare number (interpreted as seconds) alongside Go's normal
// "300ms"/"1h30m" syntax, since scripts driving this CLI commonly pass
// "--duration 30" meaning thirty seconds rather than "30ns".
type durationValue time.Duration

func (d *durationValue) String() string {
	return time.Duration(*d).String()
}

func (d *durationValue) Set(s string) error {
	if v, err := time.ParseDuration(s); err == nil {
		*d = durationValue(v)
		return nil
	}
	if v, err := time.ParseDuration(s + "s"); err == nil {
		*d = durationValue(v)
		return nil
	}
	return fmt.Errorf("invalid duration %q", s)
}

// durationVar registers a duration flag accepting bare-number-as-seconds
// input, mirroring flag.FlagSet.DurationVar's signature.
func durationVar(fs *flag.FlagSet, p *time.Duration, name string, value time.Duration, usage string) {
	*p = value
	fs.Var((*durationValue)(p), name, usage)
}

// ParseFlags parses command-line flags on top of defaults overlaid with
// any config file and environment variables, and returns the resulting
// Config. The precedence order is defaults -> config file -> env ->
// flags, so this must run after LoadFile/ApplyEnv have populated cfg.
func ParseFlags(cfg *Config, args []string) (*Config, error) {
	fs := flag.NewFlagSet("vajrapulse", flag.ContinueOnError)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `vajrapulse - distributed load generation engine

Usage:
  vajrapulse [flags] <task-id>

Load Pattern:
`)
		printFlagCategory(fs, []string{"mode", "tps", "duration", "ramp-duration", "steps"})

		fmt.Fprintf(os.Stderr, "\nSine Wave:\n")
		printFlagCategory(fs, []string{"mean-rate", "amplitude", "period"})

		fmt.Fprintf(os.Stderr, "\nSpike:\n")
		printFlagCategory(fs, []string{"base-rate", "spike-rate", "spike-interval", "spike-duration"})

		fmt.Fprintf(os.Stderr, "\nWarmup / Cooldown:\n")
		printFlagCategory(fs, []string{"warmup-duration", "cooldown-duration"})

		fmt.Fprintf(os.Stderr, "\nAdaptive:\n")
		printFlagCategory(fs, []string{"initial-tps", "ramp-increment", "ramp-decrement", "ramp-interval", "max-tps", "sustain-duration", "error-threshold"})

		fmt.Fprintf(os.Stderr, "\nRun / Config:\n")
		printFlagCategory(fs, []string{"run-id", "config", "percentiles"})

		fmt.Fprintf(os.Stderr, "\nEngine:\n")
		printFlagCategory(fs, []string{"queue-size", "drain-timeout", "force-timeout"})

		fmt.Fprintf(os.Stderr, "\nBackpressure:\n")
		printFlagCategory(fs, []string{"backpressure-threshold", "backpressure-origin-url", "backpressure-origin-metric", "backpressure-latency-threshold-ms", "backpressure-latency-percentile"})

		fmt.Fprintf(os.Stderr, "\nReporting:\n")
		printFlagCategory(fs, []string{"report-interval", "report-fire-immediately", "json-export"})

		fmt.Fprintf(os.Stderr, "\nObservability:\n")
		printFlagCategory(fs, []string{"metrics", "v", "log-format"})

		fmt.Fprintf(os.Stderr, `
Examples:
  # Static 50 iterations/second for 30 seconds
  vajrapulse -mode static -tps 50 -duration 30s echo.noop

  # Ramp to 200 tps over 1 minute, then hold
  vajrapulse -mode ramp-sustain -tps 200 -ramp-duration 1m -duration 5m echo.noop

  # Adaptive: find and sustain the stable rate
  vajrapulse -mode adaptive -initial-tps 10 -ramp-increment 10 -error-threshold 0.02 echo.noop

`)
	}

	fs.StringVar(&cfg.Mode, "mode", cfg.Mode, `Load pattern: static|ramp|ramp-sustain|step|sine|spike|adaptive`)
	fs.Float64Var(&cfg.TPS, "tps", cfg.TPS, "Base target rate in iterations/second")
	durationVar(fs, &cfg.Duration, "duration", cfg.Duration, "Run duration (0 = unbounded)")
	durationVar(fs, &cfg.RampDuration, "ramp-duration", cfg.RampDuration, "Ramp duration for ramp/ramp-sustain modes")
	fs.StringVar(&cfg.Steps, "steps", cfg.Steps, "Step segments: rate:duration,rate:duration,...")

	fs.Float64Var(&cfg.MeanRate, "mean-rate", cfg.MeanRate, "Sine wave mean rate")
	fs.Float64Var(&cfg.Amplitude, "amplitude", cfg.Amplitude, "Sine wave amplitude")
	durationVar(fs, &cfg.Period, "period", cfg.Period, "Sine wave period")

	fs.Float64Var(&cfg.BaseRate, "base-rate", cfg.BaseRate, "Spike baseline rate")
	fs.Float64Var(&cfg.SpikeRate, "spike-rate", cfg.SpikeRate, "Spike peak rate")
	durationVar(fs, &cfg.SpikeInterval, "spike-interval", cfg.SpikeInterval, "Interval between spikes")
	durationVar(fs, &cfg.SpikeDuration, "spike-duration", cfg.SpikeDuration, "Duration of each spike")

	durationVar(fs, &cfg.WarmupDuration, "warmup-duration", cfg.WarmupDuration, "Suppress recording for this long at run start")
	durationVar(fs, &cfg.CooldownDuration, "cooldown-duration", cfg.CooldownDuration, "Suppress recording for this long before run end")

	fs.Float64Var(&cfg.InitialTPS, "initial-tps", cfg.InitialTPS, "Adaptive: starting rate")
	fs.Float64Var(&cfg.RampIncrement, "ramp-increment", cfg.RampIncrement, "Adaptive: rate increase per healthy interval")
	fs.Float64Var(&cfg.RampDecrement, "ramp-decrement", cfg.RampDecrement, "Adaptive: rate decrease per unhealthy interval")
	durationVar(fs, &cfg.RampInterval, "ramp-interval", cfg.RampInterval, "Adaptive: interval between rate adjustments")
	fs.StringVar(&cfg.MaxTPS, "max-tps", cfg.MaxTPS, `Adaptive: rate ceiling, a number or "unlimited"`)
	durationVar(fs, &cfg.SustainDuration, "sustain-duration", cfg.SustainDuration, "Adaptive: how long to hold a stable rate before re-probing")
	fs.Float64Var(&cfg.ErrorThreshold, "error-threshold", cfg.ErrorThreshold, "Adaptive: failure ratio considered unhealthy, 0..1")

	fs.StringVar(&cfg.RunID, "run-id", cfg.RunID, "Run identifier (default: generated UUID prefix)")
	fs.StringVar(&cfg.ConfigPath, "config", cfg.ConfigPath, "Path to a YAML or JSON config file")
	percentiles := fs.String("percentiles", "", "Comma-separated percentile list, e.g. 0.5,0.95,0.99")

	fs.IntVar(&cfg.QueueSize, "queue-size", cfg.QueueSize, "CpuBound worker pool queue size")
	durationVar(fs, &cfg.DrainTimeout, "drain-timeout", cfg.DrainTimeout, "Graceful drain timeout on stop")
	durationVar(fs, &cfg.ForceTimeout, "force-timeout", cfg.ForceTimeout, "Forced shutdown timeout after drain")

	fs.Float64Var(&cfg.BackpressureThreshold, "backpressure-threshold", cfg.BackpressureThreshold, "Queue-depth ratio (0..1) at which the engine starts shedding iterations")
	fs.StringVar(&cfg.BackpressureOriginURL, "backpressure-origin-url", cfg.BackpressureOriginURL, "Optional Prometheus exposition endpoint to scrape into the backpressure decision")
	fs.StringVar(&cfg.BackpressureOriginMetric, "backpressure-origin-metric", cfg.BackpressureOriginMetric, "Metric name to read from -backpressure-origin-url")
	fs.Float64Var(&cfg.BackpressureLatencyThresholdMS, "backpressure-latency-threshold-ms", cfg.BackpressureLatencyThresholdMS, "Success-latency threshold in milliseconds above which the engine starts shedding (0 disables)")
	fs.Float64Var(&cfg.BackpressureLatencyPercentile, "backpressure-latency-percentile", cfg.BackpressureLatencyPercentile, "Percentile sampled against -backpressure-latency-threshold-ms")

	durationVar(fs, &cfg.ReportInterval, "report-interval", cfg.ReportInterval, "Periodic report interval (0 disables)")
	fs.BoolVar(&cfg.ReportFireImmediately, "report-fire-immediately", cfg.ReportFireImmediately, "Issue one report immediately at run start")
	fs.StringVar(&cfg.JSONExportPath, "json-export", cfg.JSONExportPath, "Path to append newline-delimited JSON snapshots (empty disables)")

	fs.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "Prometheus metrics listen address")
	fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Verbose logging")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, `Log format: "json" or "text"`)

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if *percentiles != "" {
		cfg.Percentiles = nil
		for _, p := range strings.Split(*percentiles, ",") {
			var v float64
			if _, err := fmt.Sscanf(strings.TrimSpace(p), "%g", &v); err != nil {
				return nil, fmt.Errorf("config: invalid -percentiles value %q: %w", p, err)
			}
			cfg.Percentiles = append(cfg.Percentiles, v)
		}
	}

	if rest := fs.Args(); len(rest) >= 1 {
		cfg.TaskID = rest[0]
	}

	return cfg, nil
}

// printFlagCategory prints flags matching the given names, in the order
// given, for the grouped usage message.
func printFlagCategory(fs *flag.FlagSet, names []string) {
	for _, name := range names {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		fmt.Fprintf(os.Stderr, "  -%s\n    \t%s", f.Name, f.Usage)
		if f.DefValue != "" && f.DefValue != "false" && f.DefValue != "0" && f.DefValue != "0s" {
			fmt.Fprintf(os.Stderr, " (default %s)", f.DefValue)
		}
		fmt.Fprintln(os.Stderr)
	}
}
