// Package collector samples an execution node and a beacon node into CSV rows.
package collector

import (
	"context"
	"log/slog"
	"math/big"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gateway-fm/nodeload/internal/rpc"
)

var weiPerGwei = big.NewFloat(1e9)

// Config configures a Collector.
type Config struct {
	GethMetricsURL  string
	PrysmMetricsURL string
	PrysmHealthURL  string
	RPC             rpc.Caller
	HTTPClient      *http.Client
	Logger          *slog.Logger
	Now             func() time.Time
}

// Collector gathers one Row per call.
type Collector struct {
	gethMetricsURL  string
	prysmMetricsURL string
	prysmHealthURL  string
	rpc             rpc.Caller
	http            *http.Client
	logger          *slog.Logger
	now             func() time.Time
}

// New creates a collector.
func New(cfg Config) *Collector {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 5 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Collector{
		gethMetricsURL:  cfg.GethMetricsURL,
		prysmMetricsURL: cfg.PrysmMetricsURL,
		prysmHealthURL:  cfg.PrysmHealthURL,
		rpc:             cfg.RPC,
		http:            cfg.HTTPClient,
		logger:          cfg.Logger,
		now:             cfg.Now,
	}
}

// Collect probes every source concurrently. A failed source leaves its
// fields at zero and never fails the row.
func (c *Collector) Collect(ctx context.Context) Row {
	row := Row{Timestamp: c.now()}

	var g errgroup.Group

	g.Go(func() error {
		row.GethLatencyMs = ProbeLatency(ctx, c.http, c.gethMetricsURL)
		return nil
	})
	g.Go(func() error {
		row.PrysmLatencyMs = ProbeLatency(ctx, c.http, c.prysmHealthURL)
		return nil
	})
	g.Go(func() error {
		fams, err := Scrape(ctx, c.http, c.gethMetricsURL)
		if err != nil {
			c.logger.Debug("geth metrics scrape failed", slog.String("error", err.Error()))
			return nil
		}
		row.GethPeers = int64(fams.Value("p2p_peers", nil))
		row.GethBlock = int64(fams.Value("chain_head_block", nil))
		row.GethTxPending = int64(fams.Value("txpool_pending", nil))
		row.GethInternalLatencyUs = fams.Value("rpc_duration_all", map[string]string{"quantile": "0.95"})
		return nil
	})
	g.Go(func() error {
		fams, err := Scrape(ctx, c.http, c.prysmMetricsURL)
		if err != nil {
			c.logger.Debug("prysm metrics scrape failed", slog.String("error", err.Error()))
			return nil
		}
		row.PrysmPeers = int64(fams.Value("p2p_peer_count", nil))
		row.PrysmSlot = int64(fams.Value("beacon_head_slot", nil))
		row.PrysmFinalized = int64(fams.Value("beacon_finalized_epoch", nil))
		row.PrysmValidators = int64(fams.Value("beacon_current_active_validators", nil))
		row.PrysmReorgs = int64(fams.Value("beacon_reorgs_total", nil))
		return nil
	})
	g.Go(func() error {
		price, err := rpc.GetGasPrice(ctx, c.rpc)
		if err != nil {
			c.logger.Debug("eth_gasPrice failed", slog.String("error", err.Error()))
			return nil
		}
		row.GasPriceGwei = toGwei(price)
		return nil
	})
	g.Go(func() error {
		block, err := rpc.GetLatestBlockSummary(ctx, c.rpc)
		if err != nil {
			c.logger.Debug("eth_getBlockByNumber failed", slog.String("error", err.Error()))
			return nil
		}
		if block.BaseFeePerGas != nil {
			row.BaseFeeGwei = toGwei(block.BaseFeePerGas.ToInt())
		}
		row.GasUsed = uint64(block.GasUsed)
		row.GasLimit = uint64(block.GasLimit)
		row.GasUsagePct = block.GasUsagePercent()
		row.TxCount = block.TxCount()
		return nil
	})

	// every probe swallows its own error
	_ = g.Wait()
	return row
}

func toGwei(wei *big.Int) float64 {
	if wei == nil {
		return 0
	}
	gwei, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), weiPerGwei).Float64()
	return gwei
}
