package backpressure

import (
	"context"

	"github.com/happysantoo/vajrapulse-sub008/internal/engine"
)

// Handler adapts a Provider into an engine.BackpressureHandler: on every
// submission the concurrency substrate couldn't accept, it samples the
// provider and sheds (drops) once the reading is at or above Threshold.
// Below threshold it defers to the engine's default reject-and-record
// behavior, since a momentarily full queue under low backpressure reads
// as a transient burst rather than sustained saturation.
type Handler struct {
	Provider  Provider
	Threshold float64
}

var _ engine.BackpressureHandler = (*Handler)(nil)

// NewHandler builds a Handler sampling provider against threshold.
func NewHandler(provider Provider, threshold float64) *Handler {
	return &Handler{Provider: provider, Threshold: threshold}
}

// Decide samples the provider with a background context: the Engine's
// dispatch loop calls Decide from inside its scheduling hot path, where
// there is no per-submission context to thread through, only the
// submission error itself (which this decision ignores — the provider's
// own reading, not the specific error, drives the shed/reject choice).
func (h *Handler) Decide(submitErr error) engine.Decision {
	r, err := h.Provider.Sample(context.Background())
	if err != nil || r.Level < h.Threshold {
		return engine.DecisionReject
	}
	return engine.DecisionDrop
}
