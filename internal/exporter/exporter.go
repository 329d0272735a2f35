// Package exporter defines the Exporter contract and a couple of
// concrete implementations. Report/file writers are external
// collaborators the CORE never depends on for its
// own correctness — the interface lives here so the Test Runner can call
// it, but the concrete exporters below are ambient, swappable
// collaborators, not core logic.
package exporter

import (
	"github.com/happysantoo/vajrapulse-sub008/internal/aggregator"
)

// RunContext is the per-run metadata the Test Runner builds once at
// start and passes to every export call.
type RunContext struct {
	RunID string
	StartedAtMs int64
	PatternType string
	TaskType string
	GOOS string
	GOARCH string
	NumCPU int
	GoVersion string
}

// Exporter is the consumed interface. Export may
// return an error; the runner logs it as ExporterError and continues —
// an exporter failure never aborts a run.
type Exporter interface {
	Export(title string, snapshot aggregator.Snapshot, runCtx RunContext) error
}

// Closer is an optional interface an Exporter may additionally
// implement; the runner calls Close after issuing the final export.
type Closer interface {
	Close() error
}
