package backpressure

import (
	"errors"
	"testing"

	"github.com/happysantoo/vajrapulse-sub008/internal/engine"
)

func TestHandlerDropsAboveThreshold(t *testing.T) {
	h := NewHandler(constProvider{reading: Reading{Level: 0.95}}, 0.9)
	if got := h.Decide(nil); got != engine.DecisionDrop {
		t.Errorf("Decide() = %v, want DecisionDrop", got)
	}
}

func TestHandlerRejectsBelowThreshold(t *testing.T) {
	h := NewHandler(constProvider{reading: Reading{Level: 0.1}}, 0.9)
	if got := h.Decide(errors.New("full")); got != engine.DecisionReject {
		t.Errorf("Decide() = %v, want DecisionReject", got)
	}
}

func TestHandlerRejectsOnProviderError(t *testing.T) {
	h := NewHandler(constProvider{err: errors.New("down")}, 0.1)
	if got := h.Decide(nil); got != engine.DecisionReject {
		t.Errorf("Decide() = %v, want DecisionReject on provider error", got)
	}
}
