// Package config loads and validates the CLI/config-file surface a
// vajrapulse run is built from: load pattern selection and parameters,
// adaptive controller tuning, run identity, and exporter/metrics wiring.
//
// Precedence, low to high: built-in defaults, config file, environment
// variables (VAJRAPULSE_*), command-line flags.
package config

import "time"

// Config holds every option a vajrapulse run can be configured with.
type Config struct {
	// Positional: the fully qualified task identifier the registry
	// resolves against.
	TaskID string `json:"task_id" yaml:"task_id"`

	// Load pattern selection.
	Mode         string        `json:"mode" yaml:"mode"`
	TPS          float64       `json:"tps" yaml:"tps"`
	Duration     time.Duration `json:"duration" yaml:"duration"`
	RampDuration time.Duration `json:"ramp_duration" yaml:"ramp_duration"`
	Steps        string        `json:"steps" yaml:"steps"`

	// Sine wave.
	MeanRate  float64       `json:"mean_rate" yaml:"mean_rate"`
	Amplitude float64       `json:"amplitude" yaml:"amplitude"`
	Period    time.Duration `json:"period" yaml:"period"`

	// Spike.
	BaseRate      float64       `json:"base_rate" yaml:"base_rate"`
	SpikeRate     float64       `json:"spike_rate" yaml:"spike_rate"`
	SpikeInterval time.Duration `json:"spike_interval" yaml:"spike_interval"`
	SpikeDuration time.Duration `json:"spike_duration" yaml:"spike_duration"`

	// Warmup/cooldown suppression window, applicable to any mode.
	WarmupDuration  time.Duration `json:"warmup_duration" yaml:"warmup_duration"`
	CooldownDuration time.Duration `json:"cooldown_duration" yaml:"cooldown_duration"`

	// Adaptive controller.
	InitialTPS      float64       `json:"initial_tps" yaml:"initial_tps"`
	RampIncrement   float64       `json:"ramp_increment" yaml:"ramp_increment"`
	RampDecrement   float64       `json:"ramp_decrement" yaml:"ramp_decrement"`
	RampInterval    time.Duration `json:"ramp_interval" yaml:"ramp_interval"`
	MaxTPS          string        `json:"max_tps" yaml:"max_tps"` // number, or "unlimited"
	SustainDuration time.Duration `json:"sustain_duration" yaml:"sustain_duration"`
	ErrorThreshold  float64       `json:"error_threshold" yaml:"error_threshold"`

	// Run identity and persistence.
	RunID      string   `json:"run_id" yaml:"run_id"`
	ConfigPath string   `json:"-" yaml:"-"`
	Percentiles []float64 `json:"percentiles" yaml:"percentiles"`

	// Concurrency substrate / engine.
	QueueSize    int           `json:"queue_size" yaml:"queue_size"`
	DrainTimeout time.Duration `json:"drain_timeout" yaml:"drain_timeout"`
	ForceTimeout time.Duration `json:"force_timeout" yaml:"force_timeout"`

	// Backpressure shedding. BackpressureThreshold is the [0,1] queue-depth
	// ratio at which the engine starts dropping rather than rejecting
	// submissions; BackpressureOriginURL, when set, adds a scraped remote
	// Prometheus gauge to the same decision via a Composite provider.
	BackpressureThreshold float64 `json:"backpressure_threshold" yaml:"backpressure_threshold"`
	BackpressureOriginURL string  `json:"backpressure_origin_url" yaml:"backpressure_origin_url"`
	BackpressureOriginMetric string `json:"backpressure_origin_metric" yaml:"backpressure_origin_metric"`

	// BackpressureLatencyThresholdMS, when > 0, adds a success-latency
	// provider to the same Composite: once BackpressureLatencyPercentile's
	// observed latency reaches this many milliseconds, it contributes to
	// the shed decision alongside queue depth. 0 disables it.
	BackpressureLatencyThresholdMS float64 `json:"backpressure_latency_threshold_ms" yaml:"backpressure_latency_threshold_ms"`
	BackpressureLatencyPercentile  float64 `json:"backpressure_latency_percentile" yaml:"backpressure_latency_percentile"`

	// Reporting / exporters.
	ReportInterval        time.Duration `json:"report_interval" yaml:"report_interval"`
	ReportFireImmediately bool          `json:"report_fire_immediately" yaml:"report_fire_immediately"`
	JSONExportPath        string        `json:"json_export_path" yaml:"json_export_path"`

	// Observability.
	MetricsAddr string `json:"metrics_addr" yaml:"metrics_addr"`
	LogFormat   string `json:"log_format" yaml:"log_format"`
	Verbose     bool   `json:"verbose" yaml:"verbose"`
}

// DefaultConfig returns a Config populated with the documented defaults.
func DefaultConfig() *Config {
	return &Config{
		Mode:     "static",
		TPS:      10,
		Duration: 30 * time.Second,

		RampDuration: 10 * time.Second,

		Period: time.Second,

		SpikeInterval: 10 * time.Second,
		SpikeDuration: time.Second,

		InitialTPS:      1,
		RampIncrement:   1,
		RampDecrement:   1,
		RampInterval:    time.Second,
		MaxTPS:          "unlimited",
		SustainDuration: 10 * time.Second,
		ErrorThreshold:  0.05,

		Percentiles: []float64{0.5, 0.95, 0.99, 0.999},

		QueueSize:    4096,
		DrainTimeout: 5 * time.Second,
		ForceTimeout: 2 * time.Second,

		BackpressureThreshold:         0.9,
		BackpressureLatencyPercentile: 0.99,

		MetricsAddr: "0.0.0.0:17091",
		LogFormat:   "json",
	}
}
