package pattern

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestConstantPattern(t *testing.T) {
	p := NewConstant(500)

	if p.Name() != Constant {
		t.Errorf("expected name %s, got %s", Constant, p.Name())
	}

	for _, elapsed := range []time.Duration{0, 30 * time.Second, 5 * time.Minute} {
		if rate := p.Rate(elapsed); rate != 500 {
			t.Errorf("at %v: expected rate 500, got %v", elapsed, rate)
		}
	}
}

func TestRampPattern(t *testing.T) {
	p := NewRamp(100, 1000, 60*time.Second)

	if p.Name() != Ramp {
		t.Errorf("expected name %s, got %s", Ramp, p.Name())
	}

	testCases := []struct {
		elapsed      time.Duration
		expectedRate float64
	}{
		{-time.Second, 100},
		{0, 100},
		{30 * time.Second, 550},
		{60 * time.Second, 1000},
		{90 * time.Second, 1000},
	}

	for _, tc := range testCases {
		if rate := p.Rate(tc.elapsed); rate != tc.expectedRate {
			t.Errorf("at %v: expected rate %v, got %v", tc.elapsed, tc.expectedRate, rate)
		}
	}
}

func TestRampDown(t *testing.T) {
	p := NewRamp(400, 0, 40*time.Second)
	if rate := p.Rate(10 * time.Second); rate != 300 {
		t.Errorf("expected 300, got %v", rate)
	}
}

func TestSpikePattern(t *testing.T) {
	p := NewSpike(100, 1000, 5*time.Second, 15*time.Second)

	if p.Name() != Spike {
		t.Errorf("expected name %s, got %s", Spike, p.Name())
	}

	testCases := []struct {
		elapsed      time.Duration
		expectedRate float64
	}{
		{0, 100},
		{9 * time.Second, 100},
		{10 * time.Second, 1000},
		{14 * time.Second, 1000},
		{15 * time.Second, 100},
		{25 * time.Second, 1000},
	}

	for _, tc := range testCases {
		if rate := p.Rate(tc.elapsed); rate != tc.expectedRate {
			t.Errorf("at %v: expected rate %v, got %v", tc.elapsed, tc.expectedRate, rate)
		}
	}

	if rate := NewSpike(100, 1000, time.Second, 0).Rate(time.Hour); rate != 100 {
		t.Errorf("zero interval: expected baseline, got %v", rate)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	cfg := Config{
		ConstantRate:  500,
		RampStart:     100,
		RampEnd:       1000,
		RampDuration:  time.Minute,
		BaselineRate:  100,
		SpikeRate:     1000,
		SpikeDuration: 5 * time.Second,
		SpikeInterval: 15 * time.Second,
	}

	for _, name := range []Name{Constant, Ramp, Spike} {
		p, err := r.Get(name, cfg)
		if err != nil {
			t.Errorf("failed to get pattern %s: %v", name, err)
			continue
		}
		if p.Name() != name {
			t.Errorf("Get(%s) returned %s", name, p.Name())
		}
	}

	if _, err := r.Get("adaptive", cfg); err == nil {
		t.Error("expected error for unknown pattern")
	}
}

type recordingLimiter struct {
	mu    sync.Mutex
	rates []float64
}

func (l *recordingLimiter) SetRate(r float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rates = append(l.rates, r)
}

func (l *recordingLimiter) Rates() []float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]float64(nil), l.rates...)
}

func TestSchedulerUpdate(t *testing.T) {
	lim := &recordingLimiter{}
	var changes []float64
	s := NewScheduler(SchedulerConfig{
		Pattern:  NewRamp(0, 100, 10*time.Second),
		Limiter:  lim,
		OnChange: func(r float64) { changes = append(changes, r) },
	})

	if got := s.Current(); got != 0 {
		t.Errorf("Current() before update = %v", got)
	}

	steps := []struct {
		elapsed time.Duration
		want    float64
	}{
		{0, MinRate}, // zero would mean unlimited
		{0, MinRate},
		{5 * time.Second, 50},
		{20 * time.Second, 100},
		{30 * time.Second, 100},
	}
	for _, st := range steps {
		if got := s.Update(st.elapsed); got != st.want {
			t.Errorf("Update(%v) = %v, want %v", st.elapsed, got, st.want)
		}
	}

	want := []float64{MinRate, 50, 100}
	got := lim.Rates()
	if len(got) != len(want) {
		t.Fatalf("limiter rates = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] || changes[i] != want[i] {
			t.Errorf("change %d: limiter %v callback %v, want %v", i, got[i], changes[i], want[i])
		}
	}
	if s.Current() != 100 {
		t.Errorf("Current() = %v, want 100", s.Current())
	}
}

func TestSchedulerRun(t *testing.T) {
	lim := &recordingLimiter{}
	s := NewScheduler(SchedulerConfig{
		Pattern: NewSpike(10, 500, 20*time.Millisecond, 40*time.Millisecond),
		Limiter: lim,
		Tick:    5 * time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	rates := lim.Rates()
	if len(rates) < 2 || rates[0] != 10 {
		t.Fatalf("rates = %v, want baseline first and at least one spike", rates)
	}
	sawSpike := false
	for _, r := range rates {
		if r == 500 {
			sawSpike = true
		}
	}
	if !sawSpike {
		t.Errorf("rates = %v, never spiked", rates)
	}
}
