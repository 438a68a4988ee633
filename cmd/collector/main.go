// collector samples an execution node and a beacon node into a CSV file
// until interrupted.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gateway-fm/nodeload/internal/collector"
	"github.com/gateway-fm/nodeload/internal/config"
	"github.com/gateway-fm/nodeload/internal/rpc"
)

func main() {
	cfg, err := config.LoadCollector(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	level, _ := config.ParseLogLevel(cfg.LogLevel)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := collector.New(collector.Config{
		GethMetricsURL:  cfg.GethMetricsURL,
		PrysmMetricsURL: cfg.PrysmMetricsURL,
		PrysmHealthURL:  cfg.PrysmHealthURL,
		RPC: rpc.NewHTTPClient(rpc.ClientConfig{
			URL:     cfg.RPCURL,
			Timeout: cfg.Timeout,
			Logger:  logger,
		}),
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
		Logger:     logger,
	})

	poller := collector.NewPoller(collector.PollerConfig{
		Collector: c,
		Interval:  cfg.Interval,
		OutputDir: cfg.OutputDir,
		Out:       os.Stdout,
		Logger:    logger,
	})

	if err := poller.Run(ctx); err != nil {
		logger.Error("collector failed", "error", err)
		stop()
		os.Exit(1)
	}
	fmt.Println("\nStopping collection.")
}
