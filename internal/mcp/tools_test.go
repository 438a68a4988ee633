package mcp

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestClientGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/stats":
			w.Write([]byte(`{"total":1}`))
		case "/ready":
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"ready":false}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL + "/")

	raw, err := c.Get("/v1/stats")
	if err != nil {
		t.Fatalf("Get(/v1/stats) error = %v", err)
	}
	if string(raw) != `{"total":1}` {
		t.Errorf("body = %s", raw)
	}

	if _, err := c.Get("/ready"); err == nil || !strings.Contains(err.Error(), "HTTP 503") {
		t.Errorf("Get(/ready) error = %v, want HTTP 503", err)
	}
}

func TestClientUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	if _, err := NewClient(url).Get("/v1/stats"); err == nil {
		t.Error("expected error for closed server")
	}
}

func TestNewClientDefaultURL(t *testing.T) {
	if c := NewClient(""); c.baseURL != DefaultURL {
		t.Errorf("baseURL = %q, want %q", c.baseURL, DefaultURL)
	}
}

func TestFormatStats(t *testing.T) {
	raw := []byte(`{
		"run": {"id": "run-42", "endpoint": "http://localhost:8565", "workers": 10},
		"status": "running",
		"elapsedSec": 3725,
		"total": 1234567,
		"errors": 12,
		"currentRps": 331.5,
		"averageRps": 331.43,
		"latency": {"count": 900, "min": 0.4, "max": 80, "avg": 3.2, "p50": 2.1, "p95": 9.9, "p99": 40}
	}`)

	out := formatStats(raw)

	for _, want := range []string{
		"## Load Generator",
		"run-42",
		"running",
		"1h02m05s",
		"1,234,567",
		"331.50",
		"## RPC Latency",
		"2.1ms / 9.9ms / 40.0ms",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestFormatStatsWithoutLatency(t *testing.T) {
	out := formatStats([]byte(`{"run":{"id":"run-1"},"status":"starting"}`))
	if strings.Contains(out, "RPC Latency") {
		t.Errorf("unexpected latency section:\n%s", out)
	}
}

func TestFormatHistory(t *testing.T) {
	raw := []byte(`{
		"run": {"id": "run-7"},
		"samples": [
			{"timestamp": "2024-01-02T03:04:05Z", "rps": 10, "total": 50, "errors": 1},
			{"timestamp": "2024-01-02T03:04:10Z", "rps": 12.5, "total": 1100, "errors": 1}
		],
		"total": 40, "limit": 2, "offset": 10
	}`)

	out := formatHistory(raw)

	for _, want := range []string{
		"History for run-7 (11-12 of 40)",
		"2024-01-02T03:04:05Z  RPS: 10.00  Total: 50  Errors: 1",
		"Total: 1,100",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	if out := formatHistory([]byte(`{"run":{"id":"run-7"},"samples":[],"total":0}`)); !strings.Contains(out, "No samples") {
		t.Errorf("empty history = %q", out)
	}
}

func TestFormatHealth(t *testing.T) {
	raw := []byte(`{"ready": true, "checks": [{"name": "rpc", "status": "ok", "latency_ms": 4}]}`)
	out := formatHealth(raw)
	if !strings.Contains(out, "Health: READY") || !strings.Contains(out, "- rpc: ok (4.0ms)") {
		t.Errorf("unexpected output:\n%s", out)
	}

	raw = []byte(`{"ready": false, "checks": [{"name": "rpc", "status": "failed", "latency_ms": 1, "error": "connection refused"}]}`)
	out = formatHealth(raw)
	if !strings.Contains(out, "NOT READY") || !strings.Contains(out, "connection refused") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestFormatFallsBackToRaw(t *testing.T) {
	if got := formatStats([]byte("not json")); got != "not json" {
		t.Errorf("formatStats = %q", got)
	}
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{float64(0), "0"},
		{float64(999), "999"},
		{float64(1000), "1,000"},
		{uint64(1234567), "1,234,567"},
		{int(-1234), "-1,234"},
		{float64(12.5), "12.50"},
	}
	for _, tt := range tests {
		if got := formatNumber(tt.in); got != tt.want {
			t.Errorf("formatNumber(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := map[float64]string{
		0:    "0s",
		59.9: "59s",
		61:   "1m01s",
		3725: "1h02m05s",
	}
	for in, want := range tests {
		if got := formatDuration(in); got != want {
			t.Errorf("formatDuration(%v) = %q, want %q", in, got, want)
		}
	}
}
