package collector

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// Families is a parsed Prometheus text exposition keyed by metric name.
type Families map[string]*dto.MetricFamily

// Value returns the first sample of the named metric whose labels include
// all of labels. A "quantile" label selects a summary quantile. Missing
// metrics read as 0.
func (f Families) Value(name string, labels map[string]string) float64 {
	mf, ok := f[name]
	if !ok {
		return 0
	}

	quantile, hasQuantile := labels["quantile"]
	for _, m := range mf.GetMetric() {
		if !matchLabels(m, labels) {
			continue
		}

		switch mf.GetType() {
		case dto.MetricType_GAUGE:
			return m.GetGauge().GetValue()
		case dto.MetricType_COUNTER:
			return m.GetCounter().GetValue()
		case dto.MetricType_UNTYPED:
			return m.GetUntyped().GetValue()
		case dto.MetricType_SUMMARY:
			if !hasQuantile {
				return m.GetSummary().GetSampleSum()
			}
			q, err := strconv.ParseFloat(quantile, 64)
			if err != nil {
				return 0
			}
			for _, sq := range m.GetSummary().GetQuantile() {
				if sq.GetQuantile() == q {
					return sq.GetValue()
				}
			}
		}
	}
	return 0
}

func matchLabels(m *dto.Metric, want map[string]string) bool {
	for k, v := range want {
		if k == "quantile" {
			continue
		}
		found := false
		for _, lp := range m.GetLabel() {
			if lp.GetName() == k && lp.GetValue() == v {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Scrape fetches and parses a Prometheus text endpoint.
func Scrape(ctx context.Context, client *http.Client, url string) (Families, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}

	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse metrics: %w", err)
	}
	return Families(families), nil
}

// ProbeLatency returns the GET round-trip time of url in milliseconds,
// body included. Any failure reads as 0.
func ProbeLatency(ctx context.Context, client *http.Client, url string) float64 {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return 0
	}
	defer resp.Body.Close()

	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return 0
	}
	if resp.StatusCode >= 400 {
		return 0
	}
	return float64(time.Since(start).Microseconds()) / 1000
}
