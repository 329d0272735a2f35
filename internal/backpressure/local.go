package backpressure

import (
	"context"
	"fmt"
	"math"

	"github.com/happysantoo/vajrapulse-sub008/internal/aggregator"
)

// QueueDepthProvider reports backpressure as the Engine's current queue
// depth relative to a configured capacity.
type QueueDepthProvider struct {
	Agg *aggregator.Aggregator
	Capacity int64
}

func (p *QueueDepthProvider) Sample(ctx context.Context) (Reading, error) {
	depth := p.Agg.Snapshot().QueueDepth
	var level float64
	if p.Capacity > 0 {
		level = clampLevel(float64(depth) / float64(p.Capacity))
	}
	return Reading{
		Level: level,
		Description: fmt.Sprintf("queue_depth=%d/%d", depth, p.Capacity),
	}, nil
}

// LatencyProvider reports backpressure as the ratio of a configured
// success-latency percentile to a threshold.
type LatencyProvider struct {
	Agg *aggregator.Aggregator
	Percentile float64
	ThresholdNanos float64
}

func (p *LatencyProvider) Sample(ctx context.Context) (Reading, error) {
	snap := p.Agg.Snapshot()
	latency, ok := snap.SuccessPercentiles[p.Percentile]
	if !ok || math.IsNaN(latency) || p.ThresholdNanos <= 0 {
		return Reading{Level: 0, Description: "latency: insufficient samples"}, nil
	}
	level := clampLevel(latency / p.ThresholdNanos)
	return Reading{
		Level: level,
		Description: fmt.Sprintf("p%.3f_latency_ns=%.0f threshold_ns=%.0f", p.Percentile, latency, p.ThresholdNanos),
	}, nil
}
