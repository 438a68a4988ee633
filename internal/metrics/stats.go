// Package metrics provides the shared load counters and their observability mirrors.
package metrics

import "sync"

// Statistics is the aggregate every worker writes and the reporter reads.
// Every access holds mu; the lock is never held across an RPC call.
type Statistics struct {
	mu       sync.Mutex
	requests uint64
	errors   uint64
}

// Snapshot is a consistent copy of the counters.
type Snapshot struct {
	Requests uint64 `json:"requests"`
	Errors   uint64 `json:"errors"`
}

// NewStatistics returns zeroed statistics.
func NewStatistics() *Statistics {
	return &Statistics{}
}

// IncRequests records one completed worker iteration.
func (s *Statistics) IncRequests() {
	s.mu.Lock()
	s.requests++
	s.mu.Unlock()
}

// IncErrors records one failed RPC call.
func (s *Statistics) IncErrors() {
	s.mu.Lock()
	s.errors++
	s.mu.Unlock()
}

// Snapshot reads both counters under the lock.
func (s *Statistics) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{Requests: s.requests, Errors: s.errors}
}
