package exporter

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/happysantoo/vajrapulse-sub008/internal/aggregator"
)

func TestLogExporterExportNeverErrors(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	e := NewLogExporter(logger)

	snap := aggregator.Snapshot{Total: 10, Success: 8, Failure: 2}
	if err := e.Export("final", snap, RunContext{RunID: "abc123"}); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if buf.Len() == 0 {
		t.Error("expected a log line to be written")
	}
}

func TestJSONExporterWritesOneLinePerExport(t *testing.T) {
	var buf bytes.Buffer
	e := NewJSONExporter(&buf)

	snap := aggregator.Snapshot{
		Total:              5,
		Success:            5,
		SuccessPercentiles: map[float64]float64{0.5: 100, 0.99: 500},
	}
	runCtx := RunContext{RunID: "run-1", PatternType: "static", TaskType: "noop"}

	if err := e.Export("periodic", snap, runCtx); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if err := e.Export("final", snap, runCtx); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	dec := json.NewDecoder(&buf)
	var count int
	for {
		var rec jsonRecord
		if err := dec.Decode(&rec); err != nil {
			break
		}
		count++
		if rec.RunID != "run-1" {
			t.Errorf("RunID = %q, want run-1", rec.RunID)
		}
	}
	if count != 2 {
		t.Errorf("decoded %d records, want 2", count)
	}
}

func TestJSONExporterPercentileKeysStringified(t *testing.T) {
	var buf bytes.Buffer
	e := NewJSONExporter(&buf)
	snap := aggregator.Snapshot{SuccessPercentiles: map[float64]float64{0.5: 123.0}}

	if err := e.Export("t", snap, RunContext{}); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	var rec jsonRecord
	if err := json.NewDecoder(&buf).Decode(&rec); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	v, ok := rec.SuccessP["0.500"]
	if !ok || v != 123.0 {
		t.Errorf("SuccessP[\"0.500\"] = %v, ok=%v, want 123.0", v, ok)
	}
}
