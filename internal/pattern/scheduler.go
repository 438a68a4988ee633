package pattern

import (
	"context"
	"log/slog"
	"math"
	"sync/atomic"
	"time"
)

// MinRate is the lowest rate a scheduler applies. A limiter reads zero as
// unlimited, so a ramp starting at 0 would otherwise run flat out.
const MinRate = 1.0

// DefaultTick is how often the scheduler re-evaluates its pattern.
const DefaultTick = time.Second

// RateSetter receives the scheduled rate.
type RateSetter interface {
	SetRate(ratePerSec float64)
}

// SchedulerConfig configures a Scheduler.
type SchedulerConfig struct {
	Pattern  Pattern
	Limiter  RateSetter
	Tick     time.Duration
	OnChange func(rate float64) // optional
	Logger   *slog.Logger
}

// Scheduler applies a pattern to a limiter as time passes.
type Scheduler struct {
	pattern  Pattern
	limiter  RateSetter
	tick     time.Duration
	onChange func(float64)
	logger   *slog.Logger

	current atomic.Uint64 // math.Float64bits
}

// NewScheduler creates a scheduler.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	if cfg.Tick <= 0 {
		cfg.Tick = DefaultTick
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Scheduler{
		pattern:  cfg.Pattern,
		limiter:  cfg.Limiter,
		tick:     cfg.Tick,
		onChange: cfg.OnChange,
		logger:   cfg.Logger,
	}
}

// Run applies the rate for elapsed zero at once, then once per tick until
// ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	start := time.Now()
	s.Update(0)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Update(time.Since(start))
		}
	}
}

// Update sets the limiter to the pattern's rate at elapsed and returns it.
// The limiter is only touched when the rate changes.
func (s *Scheduler) Update(elapsed time.Duration) float64 {
	rate := math.Max(s.pattern.Rate(elapsed), MinRate)

	if prev := s.Current(); prev == rate {
		return rate
	}
	s.current.Store(math.Float64bits(rate))
	s.limiter.SetRate(rate)

	if s.onChange != nil {
		s.onChange(rate)
	}
	s.logger.Debug("target rate changed",
		slog.String("pattern", string(s.pattern.Name())),
		slog.Float64("rps", rate),
	)
	return rate
}

// Current returns the last applied rate, 0 before the first update.
func (s *Scheduler) Current() float64 {
	return math.Float64frombits(s.current.Load())
}
