package exporter

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/happysantoo/vajrapulse-sub008/internal/aggregator"
)

// jsonRecord is the on-wire shape written by JSONExporter: one JSON
// object per export call, newline-delimited. Field names are the
// exporter's own concern, independent of the in-process Snapshot layout.
type jsonRecord struct {
	Title       string             `json:"title"`
	RunID       string             `json:"run_id"`
	PatternType string             `json:"pattern_type"`
	TaskType    string             `json:"task_type"`
	ElapsedMs   int64              `json:"elapsed_ms"`
	Total       int64              `json:"total"`
	Success     int64              `json:"success"`
	Failure     int64              `json:"failure"`
	Dropped     int64              `json:"dropped"`
	Rejected    int64              `json:"rejected"`
	QueueDepth  int64              `json:"queue_depth"`
	SuccessP    map[string]float64 `json:"success_percentiles_ns"`
	FailureP    map[string]float64 `json:"failure_percentiles_ns"`
}

// JSONExporter writes one newline-delimited JSON object per export call
// to an underlying io.Writer (typically an *os.File opened by the
// caller). Closing the file, if any, is the caller's responsibility
// unless the writer also implements io.Closer, in which case Close
// forwards to it.
type JSONExporter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewJSONExporter wraps w.
func NewJSONExporter(w io.Writer) *JSONExporter {
	return &JSONExporter{w: w}
}

func (e *JSONExporter) Export(title string, snap aggregator.Snapshot, runCtx RunContext) error {
	rec := jsonRecord{
		Title:       title,
		RunID:       runCtx.RunID,
		PatternType: runCtx.PatternType,
		TaskType:    runCtx.TaskType,
		ElapsedMs:   snap.ElapsedMillis,
		Total:       snap.Total,
		Success:     snap.Success,
		Failure:     snap.Failure,
		Dropped:     snap.Dropped,
		Rejected:    snap.Rejected,
		QueueDepth:  snap.QueueDepth,
		SuccessP:    stringifyKeys(snap.SuccessPercentiles),
		FailureP:    stringifyKeys(snap.FailurePercentiles),
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	enc := json.NewEncoder(e.w)
	if err := enc.Encode(rec); err != nil {
		return fmt.Errorf("exporter: encode snapshot: %w", err)
	}
	return nil
}

// Close forwards to the underlying writer if it is an io.Closer.
func (e *JSONExporter) Close() error {
	if closer, ok := e.w.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func stringifyKeys(m map[float64]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[fmt.Sprintf("%.3f", k)] = v
	}
	return out
}
