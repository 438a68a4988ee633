package load

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gateway-fm/nodeload/internal/blockcache"
	"github.com/gateway-fm/nodeload/internal/metrics"
	"github.com/gateway-fm/nodeload/internal/ratelimit"
	"github.com/gateway-fm/nodeload/internal/rpc"
	"github.com/gateway-fm/nodeload/pkg/types"
)

// DefaultWorkers is the default size of the worker pool.
const DefaultWorkers = 10

// SupervisorConfig describes the worker pool.
type SupervisorConfig struct {
	Workers   int
	CacheSize int
	Client    rpc.Caller
	Stats     *metrics.Statistics
	Reporter  *Reporter
	Limiter   *ratelimit.Limiter
	Recorder  IterationRecorder
	Logger    *slog.Logger
}

// Supervisor starts the workers and the reporter and waits for cancellation.
type Supervisor struct {
	cfg    SupervisorConfig
	logger *slog.Logger

	status    atomic.Value // types.RunStatus
	startedAt atomic.Pointer[time.Time]

	wg   sync.WaitGroup
	done chan struct{}
}

// NewSupervisor creates a supervisor.
func NewSupervisor(cfg SupervisorConfig) *Supervisor {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = blockcache.DefaultCapacity
	}
	if cfg.Stats == nil {
		cfg.Stats = metrics.NewStatistics()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Supervisor{
		cfg:    cfg,
		logger: logger,
		done:   make(chan struct{}),
	}
	s.status.Store(types.StatusStarting)
	return s
}

// Run spawns the workers and the reporter, then blocks until ctx is done.
// It returns without waiting for in-flight calls to finish; use Done for that.
func (s *Supervisor) Run(ctx context.Context) error {
	now := time.Now()
	s.startedAt.Store(&now)

	for i := 0; i < s.cfg.Workers; i++ {
		w := NewWorker(WorkerConfig{
			ID:       i,
			Client:   s.cfg.Client,
			Stats:    s.cfg.Stats,
			Cache:    blockcache.New(s.cfg.CacheSize),
			Rand:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
			Limiter:  s.cfg.Limiter,
			Recorder: s.cfg.Recorder,
			Logger:   s.logger,
		})
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			w.Run(ctx)
		}()
	}

	if s.cfg.Reporter != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.cfg.Reporter.Run(ctx)
		}()
	}

	go func() {
		s.wg.Wait()
		close(s.done)
	}()

	s.status.Store(types.StatusRunning)
	s.logger.Info("load started", "workers", s.cfg.Workers, "cache_size", s.cfg.CacheSize)

	<-ctx.Done()

	s.status.Store(types.StatusStopped)
	s.logger.Info("load stopping")
	return nil
}

// Done is closed once every worker and the reporter have returned.
func (s *Supervisor) Done() <-chan struct{} {
	return s.done
}

// Status returns the current run state.
func (s *Supervisor) Status() types.RunStatus {
	return s.status.Load().(types.RunStatus)
}

// StartedAt returns when Run was called, or the zero time before that.
func (s *Supervisor) StartedAt() time.Time {
	if t := s.startedAt.Load(); t != nil {
		return *t
	}
	return time.Time{}
}

// Workers returns the configured pool size.
func (s *Supervisor) Workers() int {
	return s.cfg.Workers
}

// Stats returns the shared statistics.
func (s *Supervisor) Stats() *metrics.Statistics {
	return s.cfg.Stats
}

// Reporter returns the reporter, if any.
func (s *Supervisor) Reporter() *Reporter {
	return s.cfg.Reporter
}
