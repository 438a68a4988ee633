package storage

import (
	"context"

	"github.com/gateway-fm/nodeload/pkg/types"
)

// SampleRecorder persists every report sample of one run.
type SampleRecorder struct {
	store Storage
	runID string
}

// NewSampleRecorder creates a recorder appending to runID.
func NewSampleRecorder(store Storage, runID string) *SampleRecorder {
	return &SampleRecorder{store: store, runID: runID}
}

// Publish stores the sample.
func (r *SampleRecorder) Publish(ctx context.Context, sample types.ReportSample) error {
	return r.store.InsertSample(ctx, r.runID, SampleFromReport(sample))
}

// RunID returns the run the recorder appends to.
func (r *SampleRecorder) RunID() string {
	return r.runID
}
