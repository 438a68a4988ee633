// Package pattern schedules the target iteration rate over the life of a run.
package pattern

import (
	"fmt"
	"time"
)

// Name identifies a rate schedule.
type Name string

const (
	Constant Name = "constant"
	Ramp     Name = "ramp"
	Spike    Name = "spike"
)

// Pattern calculates the target rate based on elapsed time.
type Pattern interface {
	// Name returns the pattern identifier.
	Name() Name

	// Rate returns the target iterations per second after elapsed.
	Rate(elapsed time.Duration) float64
}

// Config holds pattern-specific configuration.
type Config struct {
	// Constant pattern
	ConstantRate float64

	// Ramp pattern
	RampStart    float64
	RampEnd      float64
	RampDuration time.Duration

	// Spike pattern
	BaselineRate  float64
	SpikeRate     float64
	SpikeDuration time.Duration
	SpikeInterval time.Duration
}

// Registry manages pattern lookup by name.
type Registry struct {
	patterns map[Name]func(Config) Pattern
}

// NewRegistry creates a new pattern registry with all built-in patterns.
func NewRegistry() *Registry {
	r := &Registry{
		patterns: make(map[Name]func(Config) Pattern),
	}

	r.Register(Constant, func(cfg Config) Pattern {
		return NewConstant(cfg.ConstantRate)
	})
	r.Register(Ramp, func(cfg Config) Pattern {
		return NewRamp(cfg.RampStart, cfg.RampEnd, cfg.RampDuration)
	})
	r.Register(Spike, func(cfg Config) Pattern {
		return NewSpike(cfg.BaselineRate, cfg.SpikeRate, cfg.SpikeDuration, cfg.SpikeInterval)
	})

	return r
}

// Register adds a pattern factory to the registry.
func (r *Registry) Register(name Name, factory func(Config) Pattern) {
	r.patterns[name] = factory
}

// Get returns a pattern instance for the given name and config.
func (r *Registry) Get(name Name, cfg Config) (Pattern, error) {
	factory, ok := r.patterns[name]
	if !ok {
		return nil, fmt.Errorf("unknown pattern: %s", name)
	}
	return factory(cfg), nil
}
