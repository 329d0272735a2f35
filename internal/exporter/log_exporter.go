package exporter

import (
	"log/slog"

	"github.com/happysantoo/vajrapulse-sub008/internal/aggregator"
)

// LogExporter writes a snapshot as one structured log line, in the
// teacher's logging idiom (deferred key/value pairs, never formatted
// strings — though exports happen off the hot path, the style is kept
// consistent throughout).
type LogExporter struct {
	Logger *slog.Logger
}

// NewLogExporter builds a LogExporter writing through logger.
func NewLogExporter(logger *slog.Logger) *LogExporter {
	return &LogExporter{Logger: logger}
}

func (e *LogExporter) Export(title string, snap aggregator.Snapshot, runCtx RunContext) error {
	e.Logger.Info(title,
		"run_id", runCtx.RunID,
		"pattern_type", runCtx.PatternType,
		"task_type", runCtx.TaskType,
		"total", snap.Total,
		"success", snap.Success,
		"failure", snap.Failure,
		"dropped", snap.Dropped,
		"rejected", snap.Rejected,
		"queue_depth", snap.QueueDepth,
		"elapsed_ms", snap.ElapsedMillis,
	)
	return nil
}
