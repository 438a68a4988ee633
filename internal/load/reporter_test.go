package load

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gateway-fm/nodeload/internal/metrics"
	"github.com/gateway-fm/nodeload/pkg/types"
)

type recordingSink struct {
	mu      sync.Mutex
	samples []types.ReportSample
	err     error
}

func (s *recordingSink) Publish(_ context.Context, sample types.ReportSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, sample)
	return s.err
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestReporterDeltaArithmetic(t *testing.T) {
	stats := metrics.NewStatistics()
	var out bytes.Buffer
	r := NewReporter(ReporterConfig{
		Stats:    stats,
		Interval: 5 * time.Second,
		Out:      &out,
		Now:      fixedClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)),
	})

	if r.Latest() != nil {
		t.Error("Latest() should be nil before the first report")
	}

	for i := 0; i < 10; i++ {
		stats.IncRequests()
	}
	first := r.Report(context.Background())

	for i := 0; i < 5; i++ {
		stats.IncRequests()
	}
	stats.IncErrors()
	second := r.Report(context.Background())

	third := r.Report(context.Background())

	tests := []struct {
		name       string
		got        types.ReportSample
		wantRPS    float64
		wantTotal  uint64
		wantErrors uint64
	}{
		{"first interval", first, 2, 10, 0},
		{"second interval", second, 1, 15, 1},
		{"idle interval", third, 0, 15, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got.RPS != tt.wantRPS {
				t.Errorf("RPS = %v, want %v", tt.got.RPS, tt.wantRPS)
			}
			if tt.got.Total != tt.wantTotal {
				t.Errorf("Total = %d, want %d", tt.got.Total, tt.wantTotal)
			}
			if tt.got.Errors != tt.wantErrors {
				t.Errorf("Errors = %d, want %d", tt.got.Errors, tt.wantErrors)
			}
		})
	}

	wantOut := "[12:00:00] RPS: 2.00 | Total: 10 | Errors: 0\n" +
		"[12:00:00] RPS: 1.00 | Total: 15 | Errors: 1\n" +
		"[12:00:00] RPS: 0.00 | Total: 15 | Errors: 1\n"
	if out.String() != wantOut {
		t.Errorf("output =\n%s\nwant\n%s", out.String(), wantOut)
	}

	if latest := r.Latest(); latest == nil || latest.Total != 15 {
		t.Errorf("Latest() = %+v, want Total 15", latest)
	}
}

func TestReporterSinkFailureDoesNotStopOthers(t *testing.T) {
	failing := &recordingSink{err: errors.New("disk full")}
	ok := &recordingSink{}

	r := NewReporter(ReporterConfig{
		Stats:    metrics.NewStatistics(),
		Interval: time.Second,
		Out:      &bytes.Buffer{},
		Sinks:    []Sink{failing},
	})
	r.AddSink(ok)

	r.Report(context.Background())
	r.Report(context.Background())

	if len(failing.samples) != 2 || len(ok.samples) != 2 {
		t.Errorf("sinks received %d and %d samples, want 2 each", len(failing.samples), len(ok.samples))
	}
}

func TestSinkFunc(t *testing.T) {
	var got types.ReportSample
	s := SinkFunc(func(_ context.Context, sample types.ReportSample) error {
		got = sample
		return nil
	})

	want := types.ReportSample{RPS: 3.5, Total: 7}
	if err := s.Publish(context.Background(), want); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestReporterRunTicksUntilCancelled(t *testing.T) {
	stats := metrics.NewStatistics()
	sink := &recordingSink{}
	var out bytes.Buffer

	r := NewReporter(ReporterConfig{
		Stats:    stats,
		Interval: 10 * time.Millisecond,
		Out:      &out,
		Sinks:    []Sink{sink},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 75*time.Millisecond)
	defer cancel()
	r.Run(ctx)

	lines := strings.Count(out.String(), "\n")
	if lines < 2 {
		t.Errorf("expected several report lines, got %d", lines)
	}
	if len(sink.samples) != lines {
		t.Errorf("sink got %d samples for %d lines", len(sink.samples), lines)
	}
}

func TestReporterDefaults(t *testing.T) {
	r := NewReporter(ReporterConfig{Stats: metrics.NewStatistics()})
	if r.Interval() != DefaultReportInterval {
		t.Errorf("Interval() = %v, want %v", r.Interval(), DefaultReportInterval)
	}
}
