package backpressure

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// ScrapeProvider reports backpressure by scraping a remote Prometheus
// exposition endpoint and reading a single named gauge or counter value,
// clamped to [0, 1]. Adapted from an origin scraper,
// (internal/metrics/origin_scraper.go), generalized from a fixed
// node_exporter/nginx_exporter field set to an arbitrary configured
// metric name — this is the "remote process load" backpressure source a
// real deployment uses when the task under test proxies to an origin
// whose own saturation should throttle the generator.
type ScrapeProvider struct {
	URL string
	MetricName string

	httpClient *http.Client
}

// NewScrapeProvider builds a ScrapeProvider against url, reading
// metricName from the scraped exposition text.
func NewScrapeProvider(url, metricName string) *ScrapeProvider {
	return &ScrapeProvider{
		URL: url,
		MetricName: metricName,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

func (s *ScrapeProvider) Sample(ctx context.Context) (Reading, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return Reading{}, fmt.Errorf("backpressure: build request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return Reading{}, fmt.Errorf("backpressure: scrape %s: %w", s.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Reading{}, fmt.Errorf("backpressure: scrape %s: status %d", s.URL, resp.StatusCode)
	}

	decoder := expfmt.NewDecoder(resp.Body, expfmt.FmtText)
	for {
		var mf dto.MetricFamily
		if err := decoder.Decode(&mf); err != nil {
			if err == io.EOF {
				break
			}
			return Reading{}, fmt.Errorf("backpressure: decode %s: %w", s.URL, err)
		}
		if mf.GetName() != s.MetricName {
			continue
		}
		metrics := mf.GetMetric()
		if len(metrics) == 0 {
			continue
		}
		value := metricValue(metrics[0])
		return Reading{
			Level: clampLevel(value),
			Description: fmt.Sprintf("%s=%.3f from %s", s.MetricName, value, s.URL),
		}, nil
	}

	return Reading{}, fmt.Errorf("backpressure: metric %q not found at %s", s.MetricName, s.URL)
}

func metricValue(m *dto.Metric) float64 {
	switch {
	case m.GetGauge() != nil:
		return m.GetGauge().GetValue()
	case m.GetCounter() != nil:
		return m.GetCounter().GetValue()
	default:
		return 0
	}
}
