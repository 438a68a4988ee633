package load

import (
	"context"
	"log/slog"
	"math/rand/v2"

	"github.com/gateway-fm/nodeload/internal/blockcache"
	"github.com/gateway-fm/nodeload/internal/metrics"
	"github.com/gateway-fm/nodeload/internal/ratelimit"
	"github.com/gateway-fm/nodeload/internal/rpc"
)

// IterationRecorder is notified of each completed iteration.
type IterationRecorder interface {
	RecordIteration(operation string)
}

// WorkerConfig holds the collaborators of a Worker.
type WorkerConfig struct {
	ID       int
	Client   rpc.Caller
	Stats    *metrics.Statistics
	Cache    *blockcache.Cache  // owned by this worker only
	Rand     *rand.Rand         // owned by this worker only
	Limiter  *ratelimit.Limiter // optional, shared
	Recorder IterationRecorder  // optional
	Logger   *slog.Logger
}

// Worker issues one randomly selected read operation per iteration.
type Worker struct {
	id       int
	client   rpc.Caller
	stats    *metrics.Statistics
	cache    *blockcache.Cache
	rng      *rand.Rand
	limiter  *ratelimit.Limiter
	recorder IterationRecorder
	logger   *slog.Logger
}

// NewWorker creates a worker. A nil cache or RNG is replaced with a fresh one.
func NewWorker(cfg WorkerConfig) *Worker {
	cache := cfg.Cache
	if cache == nil {
		cache = blockcache.New(blockcache.DefaultCapacity)
	}

	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Worker{
		id:       cfg.ID,
		client:   cfg.Client,
		stats:    cfg.Stats,
		cache:    cache,
		rng:      rng,
		limiter:  cfg.Limiter,
		recorder: cfg.Recorder,
		logger:   logger.With("worker", cfg.ID),
	}
}

// Run loops until ctx is cancelled. Call failures never stop it.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := w.limiter.Wait(ctx); err != nil {
			return
		}
		w.Step(ctx)
	}
}

// Step performs exactly one iteration and returns the operation it ran.
func (w *Worker) Step(ctx context.Context) Operation {
	op := SelectOperation(w.rng.Float64(), w.cache.Empty())

	switch op {
	case OpLatestBlock:
		w.fetchLatestBlock(ctx)
	case OpConfirmBlock:
		w.confirmCachedBlock(ctx)
	case OpTxLookup:
		w.lookupCachedTx(ctx)
	case OpChainInfo:
		w.call(ctx, "eth_blockNumber", nil)
		w.call(ctx, "net_version", nil)
	}

	w.stats.IncRequests()
	if w.recorder != nil {
		w.recorder.RecordIteration(op.String())
	}
	return op
}

// fetchLatestBlock caches the latest full block. A result that does not
// decode as a block counts as one failed call.
func (w *Worker) fetchLatestBlock(ctx context.Context) {
	block, err := rpc.GetLatestBlockFull(ctx, w.client)
	if err != nil {
		w.fail("eth_getBlockByNumber", err)
		return
	}
	w.cache.Push(*block)
}

func (w *Worker) confirmCachedBlock(ctx context.Context) {
	block, ok := w.cache.Random(w.rng)
	if !ok {
		return
	}
	w.call(ctx, "eth_getBlockByNumber", []interface{}{block.Number, false})
}

func (w *Worker) lookupCachedTx(ctx context.Context) {
	block, ok := w.cache.Random(w.rng)
	if !ok || len(block.Transactions) == 0 {
		return
	}

	tx := block.Transactions[w.rng.IntN(len(block.Transactions))]
	w.call(ctx, "eth_getTransactionByHash", []interface{}{tx.Hash})
	if tx.HasSender() {
		w.call(ctx, "eth_getBalance", []interface{}{tx.From, "latest"})
	}
}

// call issues one RPC and counts it if it failed.
func (w *Worker) call(ctx context.Context, method string, params []interface{}) {
	if _, err := w.client.Call(ctx, method, params); err != nil {
		w.fail(method, err)
	}
}

func (w *Worker) fail(method string, err error) {
	w.stats.IncErrors()
	w.logger.Debug("rpc call failed", "method", method, "error", err)
}
