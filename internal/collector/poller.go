package collector

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultInterval matches the node dashboards' scrape interval.
const DefaultInterval = 10 * time.Second

// PollerConfig configures a Poller.
type PollerConfig struct {
	Collector *Collector
	Interval  time.Duration
	OutputDir string
	Out       io.Writer // progress lines, os.Stdout when nil
	Logger    *slog.Logger
	Now       func() time.Time
}

// Poller appends one CSV row per interval until its context ends.
type Poller struct {
	collector *Collector
	interval  time.Duration
	outputDir string
	out       io.Writer
	logger    *slog.Logger
	now       func() time.Time
}

// NewPoller creates a poller.
func NewPoller(cfg PollerConfig) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Poller{
		collector: cfg.Collector,
		interval:  cfg.Interval,
		outputDir: cfg.OutputDir,
		out:       cfg.Out,
		logger:    cfg.Logger,
		now:       cfg.Now,
	}
}

// FileName returns the CSV name for a collection started at t.
func FileName(t time.Time) string {
	return "node_metrics_" + t.Format("20060102_150405") + ".csv"
}

// Run creates the CSV file, writes the header and then one row per
// interval. Errors collecting a row never stop the loop; only failing to
// write the file does. Returns nil when ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	if err := os.MkdirAll(p.outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(p.outputDir, FileName(p.now()))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := writeRecord(w, Header); err != nil {
		return err
	}

	fmt.Fprintf(p.out, "Starting metrics collection. Saving to %s...\n", path)
	fmt.Fprintln(p.out, "Press Ctrl+C to stop.")
	p.logger.Info("collector started",
		slog.String("file", path),
		slog.Duration("interval", p.interval),
	)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		row := p.collector.Collect(ctx)
		if ctx.Err() != nil {
			return nil
		}

		record := row.Record()
		if err := writeRecord(w, record); err != nil {
			return err
		}
		fmt.Fprintf(p.out, "Collected: [%s]\n", strings.Join(record, ", "))

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// writeRecord writes and flushes so a killed process keeps every row.
func writeRecord(w *csv.Writer, record []string) error {
	if err := w.Write(record); err != nil {
		return fmt.Errorf("failed to write CSV row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return nil
}
