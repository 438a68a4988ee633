package load

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/gateway-fm/nodeload/internal/metrics"
	"github.com/gateway-fm/nodeload/pkg/types"
)

// DefaultReportInterval is the time between report lines.
const DefaultReportInterval = 5 * time.Second

// Sink consumes report samples.
type Sink interface {
	Publish(ctx context.Context, sample types.ReportSample) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, sample types.ReportSample) error

// Publish calls f.
func (f SinkFunc) Publish(ctx context.Context, sample types.ReportSample) error {
	return f(ctx, sample)
}

// ReporterConfig holds reporter settings.
type ReporterConfig struct {
	Stats    *metrics.Statistics
	Interval time.Duration
	Out      io.Writer // defaults to os.Stdout
	Sinks    []Sink
	Logger   *slog.Logger
	Now      func() time.Time
}

// Reporter periodically prints throughput and cumulative counters.
// Throughput is computed from the delta of the request counter, so an
// iteration finishing just after a tick lands in the next interval.
type Reporter struct {
	stats    *metrics.Statistics
	interval time.Duration
	out      io.Writer
	sinks    []Sink
	logger   *slog.Logger
	now      func() time.Time

	last   uint64 // owned by the reporting goroutine
	latest atomic.Pointer[types.ReportSample]
}

// NewReporter creates a reporter.
func NewReporter(cfg ReporterConfig) *Reporter {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultReportInterval
	}

	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Reporter{
		stats:    cfg.Stats,
		interval: interval,
		out:      out,
		sinks:    cfg.Sinks,
		logger:   logger,
		now:      now,
	}
}

// AddSink registers a sink. Not safe once Run has started.
func (r *Reporter) AddSink(s Sink) {
	r.sinks = append(r.sinks, s)
}

// Interval returns the reporting interval.
func (r *Reporter) Interval() time.Duration {
	return r.interval
}

// Run reports once per interval until ctx is cancelled.
func (r *Reporter) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Report(ctx)
		}
	}
}

// Report takes one sample, prints it and hands it to every sink.
func (r *Reporter) Report(ctx context.Context) types.ReportSample {
	snap := r.stats.Snapshot()

	delta := snap.Requests - r.last
	r.last = snap.Requests

	sample := types.ReportSample{
		Timestamp: r.now(),
		RPS:       float64(delta) / r.interval.Seconds(),
		Total:     snap.Requests,
		Errors:    snap.Errors,
	}
	r.latest.Store(&sample)

	fmt.Fprintf(r.out, "[%s] RPS: %.2f | Total: %d | Errors: %d\n",
		sample.Timestamp.Format("15:04:05"), sample.RPS, sample.Total, sample.Errors)

	for _, s := range r.sinks {
		if err := s.Publish(ctx, sample); err != nil {
			r.logger.Warn("report sink failed", "error", err)
		}
	}
	return sample
}

// Latest returns the most recent sample, or nil before the first report.
func (r *Reporter) Latest() *types.ReportSample {
	return r.latest.Load()
}
