// Package adaptive implements the Adaptive Load Controller: a Load
// Pattern whose target rate is produced by a RampUp/RampDown/Sustain/
// Complete phase state machine driven by observed failure ratio.
//
// Grounded in internal/supervisor package for the phase enum
// style (supervisor/state.go) and backoff step math (supervisor/backoff.go),
// generalized from connection-retry backoff to load-ramp step sizing.
package adaptive

import (
	"sync"
	"time"

	"github.com/happysantoo/vajrapulse-sub008/internal/aggregator"
)

// Metrics is the sample a MetricsProvider reports: the current failure
// ratio and total execution count.
type Metrics struct {
	FailureRatio float64
	Total int64
}

// MetricsProvider is the consumed interface. A provider
// that errors is treated by the controller as "no new information" — rate
// is held rather than adjusted.
type MetricsProvider interface {
	Sample() (Metrics, error)
}

// AggregatorProvider adapts an *aggregator.Aggregator into a
// MetricsProvider, reading only the cheap counters (never the percentile
// digests) so sampling stays inexpensive on the adaptive controller's
// polling cadence.
type AggregatorProvider struct {
	Agg *aggregator.Aggregator
}

// NewAggregatorProvider wraps agg.
func NewAggregatorProvider(agg *aggregator.Aggregator) *AggregatorProvider {
	return &AggregatorProvider{Agg: agg}
}

func (p *AggregatorProvider) Sample() (Metrics, error) {
	total, _, failure := p.Agg.Counts()
	if total == 0 {
		return Metrics{FailureRatio: 0, Total: 0}, nil
	}
	return Metrics{FailureRatio: float64(failure) / float64(total), Total: total}, nil
}

// defaultTTL is the cache lifetime; the adaptive
// controller must never sample the underlying provider more than once per
// TTL, to avoid contending the hot path.
const defaultTTL = 100 * time.Millisecond

// CachedProvider wraps a MetricsProvider so repeated Sample calls within
// the TTL window return the same cached value instead of re-querying the
// inner provider. This is the enforcement mechanism requires,
// not an optimization the caller may skip.
type CachedProvider struct {
	inner MetricsProvider
	ttl time.Duration

	mu sync.Mutex
	cached Metrics
	cachedAt time.Time
	hasValue bool
}

// NewCachedProvider wraps inner with the default 100ms TTL. Use
// NewCachedProviderTTL for a custom lifetime.
func NewCachedProvider(inner MetricsProvider) *CachedProvider {
	return NewCachedProviderTTL(inner, defaultTTL)
}

// NewCachedProviderTTL wraps inner with an explicit TTL.
func NewCachedProviderTTL(inner MetricsProvider, ttl time.Duration) *CachedProvider {
	return &CachedProvider{inner: inner, ttl: ttl}
}

func (c *CachedProvider) Sample() (Metrics, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if c.hasValue && now.Sub(c.cachedAt) < c.ttl {
		return c.cached, nil
	}

	m, err := c.inner.Sample()
	if err != nil {
		// A failing provider reports "no new information": keep serving the
		// last known-good value if one exists.
		if c.hasValue {
			return c.cached, nil
		}
		return Metrics{}, err
	}

	c.cached = m
	c.cachedAt = now
	c.hasValue = true
	return m, nil
}
