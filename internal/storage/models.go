// Package storage persists load runs and their report samples.
package storage

import (
	"time"

	"github.com/gateway-fm/nodeload/pkg/types"
)

// LoadRun is one invocation of the load generator.
type LoadRun struct {
	ID               string    `json:"id"`
	StartedAt        time.Time `json:"startedAt"`
	Endpoint         string    `json:"endpoint"`
	Workers          int       `json:"workers"`
	ReportIntervalMs int64     `json:"reportIntervalMs"`
}

// Info converts the run to its API form.
func (r *LoadRun) Info() types.RunInfo {
	return types.RunInfo{
		ID:               r.ID,
		StartedAt:        r.StartedAt,
		Endpoint:         r.Endpoint,
		Workers:          r.Workers,
		ReportIntervalMs: r.ReportIntervalMs,
	}
}

// Sample is one persisted reporter tick.
type Sample struct {
	TimestampMs int64   `json:"timestampMs"`
	RPS         float64 `json:"rps"`
	Total       uint64  `json:"total"`
	Errors      uint64  `json:"errors"`
}

// SampleFromReport converts a reporter sample for storage.
func SampleFromReport(s types.ReportSample) Sample {
	return Sample{
		TimestampMs: s.Timestamp.UnixMilli(),
		RPS:         s.RPS,
		Total:       s.Total,
		Errors:      s.Errors,
	}
}

// Report converts a stored sample back to its API form.
func (s Sample) Report() types.ReportSample {
	return types.ReportSample{
		Timestamp: time.UnixMilli(s.TimestampMs).UTC(),
		RPS:       s.RPS,
		Total:     s.Total,
		Errors:    s.Errors,
	}
}

// PaginatedSamples is a page of samples for one run.
type PaginatedSamples struct {
	Samples []Sample `json:"samples"`
	Total   int      `json:"total"`
	Limit   int      `json:"limit"`
	Offset  int      `json:"offset"`
}
