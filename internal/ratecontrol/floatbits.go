package ratecontrol

import "math"

// floatBits/floatFromBits let the telemetry gauges live in atomic.Uint64
// fields without a mutex, matching the lock-free style the rest of the
// codebase uses for hot-path counters.

func floatBits(v float64) uint64 { return math.Float64bits(v) }

func floatFromBits(b uint64) float64 { return math.Float64frombits(b) }
