// Package types contains public API types for the load generator.
// These types form the external interface and must remain backwards-compatible.
package types

import "time"

// RunStatus represents the supervisor state.
type RunStatus string

const (
	StatusStarting RunStatus = "starting"
	StatusRunning  RunStatus = "running"
	StatusStopped  RunStatus = "stopped"
)

// ReportSample is one reporter tick.
type ReportSample struct {
	Timestamp time.Time `json:"timestamp"`
	RPS       float64   `json:"rps"`    // iterations per second over the interval
	Total     uint64    `json:"total"`  // cumulative iterations
	Errors    uint64    `json:"errors"` // cumulative failed calls
}

// LatencyBucket represents a latency histogram bucket.
type LatencyBucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// LatencyStats holds latency statistics.
type LatencyStats struct {
	Count   int             `json:"count"`
	Min     float64         `json:"min"` // ms
	Max     float64         `json:"max"` // ms
	Avg     float64         `json:"avg"` // ms
	P50     float64         `json:"p50"` // ms
	P90     float64         `json:"p90"` // ms
	P95     float64         `json:"p95"` // ms
	P99     float64         `json:"p99"` // ms
	Buckets []LatencyBucket `json:"buckets"`
}

// RunInfo describes a load run.
type RunInfo struct {
	ID               string    `json:"id"`
	StartedAt        time.Time `json:"startedAt"`
	Endpoint         string    `json:"endpoint"`
	Workers          int       `json:"workers"`
	ReportIntervalMs int64     `json:"reportIntervalMs"`
}

// StatsResponse is the live view of the current run.
type StatsResponse struct {
	Run        RunInfo       `json:"run"`
	Status     RunStatus     `json:"status"`
	ElapsedSec float64       `json:"elapsedSec"`
	Total      uint64        `json:"total"`
	Errors     uint64        `json:"errors"`
	CurrentRPS float64       `json:"currentRps"`
	AverageRPS float64       `json:"averageRps"`
	Latency    *LatencyStats `json:"latency,omitempty"`
	LastReport *ReportSample `json:"lastReport,omitempty"`
}

// HistoryResponse is a page of persisted report samples.
type HistoryResponse struct {
	Run     RunInfo        `json:"run"`
	Samples []ReportSample `json:"samples"`
	Total   int            `json:"total"`
	Limit   int            `json:"limit"`
	Offset  int            `json:"offset"`
}

// WSMessage is a message pushed to websocket subscribers.
type WSMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}
