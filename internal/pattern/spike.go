package pattern

import "time"

// SpikePattern runs at a baseline rate with periodic spikes.
type SpikePattern struct {
	baselineRate  float64
	spikeRate     float64
	spikeDuration time.Duration
	spikeInterval time.Duration
}

// NewSpike creates a spike pattern.
// Spikes occur every spikeInterval and last spikeDuration.
func NewSpike(baselineRate, spikeRate float64, spikeDuration, spikeInterval time.Duration) *SpikePattern {
	return &SpikePattern{
		baselineRate:  baselineRate,
		spikeRate:     spikeRate,
		spikeDuration: spikeDuration,
		spikeInterval: spikeInterval,
	}
}

// Name returns the pattern identifier.
func (s *SpikePattern) Name() Name {
	return Spike
}

// Rate returns the spike rate during the last spikeDuration of each interval.
func (s *SpikePattern) Rate(elapsed time.Duration) float64 {
	if s.spikeInterval <= 0 {
		return s.baselineRate
	}

	position := elapsed % s.spikeInterval
	if position >= s.spikeInterval-s.spikeDuration {
		return s.spikeRate
	}
	return s.baselineRate
}
