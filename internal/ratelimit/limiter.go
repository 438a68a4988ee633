// Package ratelimit caps the aggregate iteration rate shared by all workers.
package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Limiter issues permits no faster than a target rate by tracking the next
// available permit time. A nil Limiter or a zero rate never blocks.
type Limiter struct {
	mu             sync.Mutex
	nextPermitTime time.Time
	interval       time.Duration

	rateX1000 atomic.Int64
}

// New creates a Limiter issuing ratePerSec permits per second.
// A rate of zero or less means unlimited.
func New(ratePerSec float64) *Limiter {
	l := &Limiter{nextPermitTime: time.Now()}
	l.setRateLocked(ratePerSec)
	return l
}

func (l *Limiter) setRateLocked(ratePerSec float64) {
	if ratePerSec <= 0 {
		l.interval = 0
		l.rateX1000.Store(0)
		return
	}
	l.interval = time.Duration(float64(time.Second) / ratePerSec)
	l.rateX1000.Store(int64(ratePerSec * 1000))
}

// Wait blocks until a permit is available or ctx is done.
// A cancelled wait hands its slot back when no later caller has claimed one.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return ctx.Err()
	}

	l.mu.Lock()
	if l.interval == 0 {
		l.mu.Unlock()
		return ctx.Err()
	}
	// idle time does not bank permits
	permitTime := l.nextPermitTime
	if now := time.Now(); permitTime.Before(now) {
		permitTime = now
	}
	interval := l.interval
	l.nextPermitTime = permitTime.Add(interval)
	l.mu.Unlock()

	wait := time.Until(permitTime)
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		l.mu.Lock()
		if l.nextPermitTime.Equal(permitTime.Add(interval)) {
			l.nextPermitTime = permitTime
		}
		l.mu.Unlock()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// SetRate changes the rate for subsequent permits.
func (l *Limiter) SetRate(ratePerSec float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.setRateLocked(ratePerSec)
	if now := time.Now(); l.nextPermitTime.Before(now) {
		l.nextPermitTime = now
	}
}

// Rate returns the current rate, zero when unlimited.
func (l *Limiter) Rate() float64 {
	if l == nil {
		return 0
	}
	return float64(l.rateX1000.Load()) / 1000
}
