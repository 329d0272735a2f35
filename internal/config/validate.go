package config

import (
	"errors"
	"fmt"
	"strconv"
)

// ValidationError reports one invalid Config field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var validModes = map[string]bool{
	"static": true, "ramp": true, "ramp-sustain": true,
	"step": true, "sine": true, "spike": true, "adaptive": true,
}

// Validate checks cfg for errors and inconsistencies, returning a joined
// ErrConfigInvalid-wrapping error listing every problem found, or nil.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.TaskID == "" {
		errs = append(errs, ValidationError{"task_id", "a task identifier is required"})
	}

	if !validModes[cfg.Mode] {
		errs = append(errs, ValidationError{"mode", fmt.Sprintf("must be one of static, ramp, ramp-sustain, step, sine, spike, adaptive (got %q)", cfg.Mode)})
	}

	switch cfg.Mode {
	case "static", "ramp", "ramp-sustain":
		if cfg.TPS <= 0 {
			errs = append(errs, ValidationError{"tps", "must be positive"})
		}
		if cfg.Mode == "ramp-sustain" && cfg.RampDuration >= cfg.Duration {
			errs = append(errs, ValidationError{"ramp_duration", "must be less than duration for mode=ramp-sustain"})
		}
	case "sine":
		if cfg.MeanRate < 0 {
			errs = append(errs, ValidationError{"mean_rate", "must not be negative"})
		}
		if cfg.Period <= 0 {
			errs = append(errs, ValidationError{"period", "must be positive"})
		}
	case "spike":
		if cfg.BaseRate < 0 {
			errs = append(errs, ValidationError{"base_rate", "must not be negative"})
		}
		if cfg.SpikeInterval <= 0 {
			errs = append(errs, ValidationError{"spike_interval", "must be positive"})
		}
		if cfg.SpikeDuration <= 0 || cfg.SpikeDuration > cfg.SpikeInterval {
			errs = append(errs, ValidationError{"spike_duration", "must be positive and not exceed spike_interval"})
		}
	case "step":
		if cfg.Steps == "" {
			errs = append(errs, ValidationError{"steps", "required for mode=step"})
		}
	case "adaptive":
		if cfg.InitialTPS <= 0 {
			errs = append(errs, ValidationError{"initial_tps", "must be positive"})
		}
		if cfg.RampIncrement <= 0 {
			errs = append(errs, ValidationError{"ramp_increment", "must be positive"})
		}
		if cfg.RampDecrement <= 0 {
			errs = append(errs, ValidationError{"ramp_decrement", "must be positive"})
		}
		if cfg.RampInterval <= 0 {
			errs = append(errs, ValidationError{"ramp_interval", "must be positive"})
		}
		if cfg.SustainDuration <= 0 {
			errs = append(errs, ValidationError{"sustain_duration", "must be positive"})
		}
		if cfg.ErrorThreshold < 0 || cfg.ErrorThreshold > 1 {
			errs = append(errs, ValidationError{"error_threshold", "must be within 0..1"})
		}
		if cfg.MaxTPS != "unlimited" {
			if v, err := strconv.ParseFloat(cfg.MaxTPS, 64); err != nil || v <= cfg.InitialTPS {
				errs = append(errs, ValidationError{"max_tps", `must be "unlimited" or a number greater than initial_tps`})
			}
		}
	}

	if cfg.WarmupDuration < 0 {
		errs = append(errs, ValidationError{"warmup_duration", "must not be negative"})
	}
	if cfg.CooldownDuration < 0 {
		errs = append(errs, ValidationError{"cooldown_duration", "must not be negative"})
	}
	if cfg.Duration > 0 && cfg.WarmupDuration+cfg.CooldownDuration >= cfg.Duration {
		errs = append(errs, ValidationError{"warmup_duration", "warmup+cooldown must be less than duration"})
	}

	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		errs = append(errs, ValidationError{"log_format", fmt.Sprintf("must be json or text (got %q)", cfg.LogFormat)})
	}

	if cfg.QueueSize <= 0 {
		errs = append(errs, ValidationError{"queue_size", "must be positive"})
	}
	if cfg.DrainTimeout <= 0 {
		errs = append(errs, ValidationError{"drain_timeout", "must be positive"})
	}
	if cfg.ForceTimeout <= 0 {
		errs = append(errs, ValidationError{"force_timeout", "must be positive"})
	}
	if cfg.BackpressureThreshold < 0 || cfg.BackpressureThreshold > 1 {
		errs = append(errs, ValidationError{"backpressure_threshold", "must be within 0..1"})
	}
	if cfg.BackpressureOriginURL != "" && cfg.BackpressureOriginMetric == "" {
		errs = append(errs, ValidationError{"backpressure_origin_metric", "required when backpressure_origin_url is set"})
	}
	if cfg.BackpressureLatencyThresholdMS > 0 && (cfg.BackpressureLatencyPercentile <= 0 || cfg.BackpressureLatencyPercentile >= 1) {
		errs = append(errs, ValidationError{"backpressure_latency_percentile", "must be within (0,1) when backpressure_latency_threshold_ms is set"})
	}

	for _, p := range cfg.Percentiles {
		if p <= 0 || p > 1 {
			errs = append(errs, ValidationError{"percentiles", fmt.Sprintf("each entry must be within (0, 1] (got %v)", p)})
			break
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %v", ErrConfigInvalid, errors.Join(errs...))
	}
	return nil
}

// ResolveMaxTPS returns cfg.MaxTPS as a float64, applying the unbounded
// clamp of 10000 * GOMAXPROCS when the field is "unlimited".
func ResolveMaxTPS(cfg *Config, gomaxprocs int) float64 {
	if cfg.MaxTPS == "unlimited" {
		return float64(10000 * gomaxprocs)
	}
	v, _ := strconv.ParseFloat(cfg.MaxTPS, 64)
	return v
}
