package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// ApplyEnv overlays VAJRAPULSE_* environment variables onto cfg, between
// the config file and flag layers of the precedence chain. Each
// supported variable is the upper-snake-case of its config key (the
// json/yaml field name), which can differ from the flag name.
func ApplyEnv(cfg *Config) error {
	var err error
	getString(&cfg.Mode, "VAJRAPULSE_MODE")
	getFloat(&cfg.TPS, "VAJRAPULSE_TPS", &err)
	getDuration(&cfg.Duration, "VAJRAPULSE_DURATION", &err)
	getDuration(&cfg.RampDuration, "VAJRAPULSE_RAMP_DURATION", &err)
	getString(&cfg.Steps, "VAJRAPULSE_STEPS")

	getFloat(&cfg.MeanRate, "VAJRAPULSE_MEAN_RATE", &err)
	getFloat(&cfg.Amplitude, "VAJRAPULSE_AMPLITUDE", &err)
	getDuration(&cfg.Period, "VAJRAPULSE_PERIOD", &err)

	getFloat(&cfg.BaseRate, "VAJRAPULSE_BASE_RATE", &err)
	getFloat(&cfg.SpikeRate, "VAJRAPULSE_SPIKE_RATE", &err)
	getDuration(&cfg.SpikeInterval, "VAJRAPULSE_SPIKE_INTERVAL", &err)
	getDuration(&cfg.SpikeDuration, "VAJRAPULSE_SPIKE_DURATION", &err)

	getDuration(&cfg.WarmupDuration, "VAJRAPULSE_WARMUP_DURATION", &err)
	getDuration(&cfg.CooldownDuration, "VAJRAPULSE_COOLDOWN_DURATION", &err)

	getFloat(&cfg.InitialTPS, "VAJRAPULSE_INITIAL_TPS", &err)
	getFloat(&cfg.RampIncrement, "VAJRAPULSE_RAMP_INCREMENT", &err)
	getFloat(&cfg.RampDecrement, "VAJRAPULSE_RAMP_DECREMENT", &err)
	getDuration(&cfg.RampInterval, "VAJRAPULSE_RAMP_INTERVAL", &err)
	getString(&cfg.MaxTPS, "VAJRAPULSE_MAX_TPS")
	getDuration(&cfg.SustainDuration, "VAJRAPULSE_SUSTAIN_DURATION", &err)
	getFloat(&cfg.ErrorThreshold, "VAJRAPULSE_ERROR_THRESHOLD", &err)

	getString(&cfg.RunID, "VAJRAPULSE_RUN_ID")

	getInt(&cfg.QueueSize, "VAJRAPULSE_QUEUE_SIZE", &err)
	getDuration(&cfg.DrainTimeout, "VAJRAPULSE_DRAIN_TIMEOUT", &err)
	getDuration(&cfg.ForceTimeout, "VAJRAPULSE_FORCE_TIMEOUT", &err)

	getFloat(&cfg.BackpressureThreshold, "VAJRAPULSE_BACKPRESSURE_THRESHOLD", &err)
	getString(&cfg.BackpressureOriginURL, "VAJRAPULSE_BACKPRESSURE_ORIGIN_URL")
	getString(&cfg.BackpressureOriginMetric, "VAJRAPULSE_BACKPRESSURE_ORIGIN_METRIC")
	getFloat(&cfg.BackpressureLatencyThresholdMS, "VAJRAPULSE_BACKPRESSURE_LATENCY_THRESHOLD_MS", &err)
	getFloat(&cfg.BackpressureLatencyPercentile, "VAJRAPULSE_BACKPRESSURE_LATENCY_PERCENTILE", &err)

	getDuration(&cfg.ReportInterval, "VAJRAPULSE_REPORT_INTERVAL", &err)
	getString(&cfg.JSONExportPath, "VAJRAPULSE_JSON_EXPORT_PATH")

	getString(&cfg.MetricsAddr, "VAJRAPULSE_METRICS_ADDR")
	getString(&cfg.LogFormat, "VAJRAPULSE_LOG_FORMAT")

	return err
}

func getString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func getFloat(dst *float64, key string, errOut *error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		*errOut = firstErr(*errOut, fmt.Errorf("%w: %s=%q: %v", ErrConfigInvalid, key, v, err))
		return
	}
	*dst = f
}

func getInt(dst *int, key string, errOut *error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errOut = firstErr(*errOut, fmt.Errorf("%w: %s=%q: %v", ErrConfigInvalid, key, v, err))
		return
	}
	*dst = n
}

func getDuration(dst *time.Duration, key string, errOut *error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errOut = firstErr(*errOut, fmt.Errorf("%w: %s=%q: %v", ErrConfigInvalid, key, v, err))
		return
	}
	*dst = d
}

func firstErr(existing, next error) error {
	if existing != nil {
		return existing
	}
	return next
}
