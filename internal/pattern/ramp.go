package pattern

import "time"

// RampPattern increases the rate linearly, then holds the end rate.
type RampPattern struct {
	startRate float64
	endRate   float64
	duration  time.Duration
}

// NewRamp creates a ramp pattern that moves from startRate to endRate over duration.
func NewRamp(startRate, endRate float64, duration time.Duration) *RampPattern {
	return &RampPattern{
		startRate: startRate,
		endRate:   endRate,
		duration:  duration,
	}
}

// Name returns the pattern identifier.
func (r *RampPattern) Name() Name {
	return Ramp
}

// Rate interpolates between the start and end rate.
func (r *RampPattern) Rate(elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return r.startRate
	}
	if elapsed >= r.duration {
		return r.endRate
	}

	progress := float64(elapsed) / float64(r.duration)
	return r.startRate + progress*(r.endRate-r.startRate)
}
