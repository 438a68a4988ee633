// nodeload drives a fixed pool of workers issuing randomized read-only
// JSON-RPC calls against an Ethereum node and reports throughput.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/gateway-fm/nodeload/internal/config"
	"github.com/gateway-fm/nodeload/internal/load"
	"github.com/gateway-fm/nodeload/internal/metrics"
	"github.com/gateway-fm/nodeload/internal/pattern"
	"github.com/gateway-fm/nodeload/internal/ratelimit"
	"github.com/gateway-fm/nodeload/internal/rpc"
	"github.com/gateway-fm/nodeload/internal/storage"
	"github.com/gateway-fm/nodeload/internal/transport"
	"github.com/gateway-fm/nodeload/pkg/types"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	level, _ := config.ParseLogLevel(cfg.LogLevel)
	// stdout carries the report lines
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, os.Stdout); err != nil {
		logger.Error("load generator failed", "error", err)
		stop()
		os.Exit(1)
	}
}

// run wires the load generator and blocks until ctx is cancelled.
// Only startup failures are returned.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer) error {
	reg := prometheus.NewRegistry()
	prom := metrics.NewPrometheusMetrics(reg)
	prom.SetWorkers(cfg.Workers)
	latency := metrics.NewLatencyTracker()

	client := rpc.NewHTTPClient(rpc.ClientConfig{
		URL:      cfg.RPCURL,
		Timeout:  cfg.RPCTimeout,
		Logger:   logger,
		Observer: rpc.MultiObserver{prom, latency},
	})

	stats := metrics.NewStatistics()
	reporter := load.NewReporter(load.ReporterConfig{
		Stats:    stats,
		Interval: cfg.ReportInterval,
		Out:      out,
		Logger:   logger,
	})
	reporter.AddSink(load.SinkFunc(func(_ context.Context, s types.ReportSample) error {
		prom.SetCurrentRPS(s.RPS)
		return nil
	}))

	loadRun := &storage.LoadRun{
		ID:               fmt.Sprintf("run-%d", time.Now().UnixNano()),
		StartedAt:        time.Now().UTC(),
		Endpoint:         cfg.RPCURL,
		Workers:          cfg.Workers,
		ReportIntervalMs: cfg.ReportInterval.Milliseconds(),
	}

	var store storage.Storage
	if cfg.DatabasePath != "" {
		sqlite, err := storage.NewSQLiteStorage(cfg.DatabasePath)
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		defer sqlite.Close()

		if err := sqlite.CreateRun(ctx, loadRun); err != nil {
			return fmt.Errorf("failed to record run: %w", err)
		}
		store = sqlite
		reporter.AddSink(storage.NewSampleRecorder(sqlite, loadRun.ID))
		logger.Info("initialized storage", "path", cfg.DatabasePath, "runId", loadRun.ID)
	}

	limiter, scheduler, err := newRateControl(cfg, prom, logger)
	if err != nil {
		return err
	}

	supervisor := load.NewSupervisor(load.SupervisorConfig{
		Workers:   cfg.Workers,
		CacheSize: cfg.CacheSize,
		Client:    client,
		Stats:     stats,
		Reporter:  reporter,
		Limiter:   limiter,
		Recorder:  prom,
		Logger:    logger,
	})

	service := load.NewService(load.ServiceConfig{
		Run:        loadRun.Info(),
		Supervisor: supervisor,
		Latency:    latency,
		Store:      store,
		Client:     client,
	})

	var shutdown func() error
	if cfg.ListenAddr != "" {
		ln, err := net.Listen("tcp", cfg.ListenAddr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", cfg.ListenAddr, err)
		}

		ws := transport.NewWebSocketServer(logger)
		ws.Start()
		reporter.AddSink(ws)

		server := transport.NewServer(transport.ServerConfig{
			API:                service,
			Health:             service,
			Gatherer:           reg,
			WebSocket:          ws,
			CORSAllowedOrigins: cfg.AllowedOrigins(),
			Logger:             logger,
		})
		httpServer := &http.Server{
			Handler:           server.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			logger.Info("starting HTTP server", "addr", ln.Addr().String())
			if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server failed", "error", err)
			}
		}()

		shutdown = func() error {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			var g errgroup.Group
			g.Go(func() error {
				return httpServer.Shutdown(shutdownCtx)
			})
			g.Go(func() error {
				ws.Stop()
				return nil
			})
			return g.Wait()
		}
	}

	fmt.Fprintf(out, "Starting Load Generator on %s with %d workers...\n", cfg.RPCURL, cfg.Workers)
	fmt.Fprintln(out, "Press Ctrl+C to stop.")

	if scheduler != nil {
		go scheduler.Run(ctx)
	}

	// returns once ctx is cancelled
	_ = supervisor.Run(ctx)

	fmt.Fprintln(out, "Stopping...")

	if shutdown != nil {
		if err := shutdown(); err != nil {
			logger.Warn("shutdown error", "error", err)
		}
	}
	return nil
}

// newRateControl builds the shared limiter. A constant schedule without
// -max-rps leaves the load unlimited; other schedules get a Scheduler
// driving the limiter.
func newRateControl(cfg *config.Config, prom *metrics.PrometheusMetrics, logger *slog.Logger) (*ratelimit.Limiter, *pattern.Scheduler, error) {
	name := pattern.Name(cfg.Pattern)
	if name == "" || name == pattern.Constant {
		if cfg.MaxRPS <= 0 {
			return nil, nil, nil
		}
		prom.SetTargetRPS(cfg.MaxRPS)
		return ratelimit.New(cfg.MaxRPS), nil, nil
	}

	p, err := pattern.NewRegistry().Get(name, pattern.Config{
		RampStart:     cfg.RampStartRPS,
		RampEnd:       cfg.RampEndRPS,
		RampDuration:  cfg.RampDuration,
		BaselineRate:  cfg.MaxRPS,
		SpikeRate:     cfg.SpikeRPS,
		SpikeDuration: cfg.SpikeDuration,
		SpikeInterval: cfg.SpikeInterval,
	})
	if err != nil {
		return nil, nil, err
	}

	limiter := ratelimit.New(math.Max(p.Rate(0), pattern.MinRate))
	scheduler := pattern.NewScheduler(pattern.SchedulerConfig{
		Pattern:  p,
		Limiter:  limiter,
		OnChange: prom.SetTargetRPS,
		Logger:   logger,
	})
	logger.Info("rate schedule enabled", "pattern", string(name))
	return limiter, scheduler, nil
}
