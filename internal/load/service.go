package load

import (
	"context"
	"fmt"
	"time"

	"github.com/gateway-fm/nodeload/internal/metrics"
	"github.com/gateway-fm/nodeload/internal/rpc"
	"github.com/gateway-fm/nodeload/internal/storage"
	"github.com/gateway-fm/nodeload/pkg/types"
)

// ServiceConfig wires the read-only view of a run.
type ServiceConfig struct {
	Run        types.RunInfo
	Supervisor *Supervisor
	Latency    *metrics.LatencyTracker // optional
	Store      storage.Storage         // optional, nil disables history
	Client     rpc.Caller
}

// Service answers API queries about the current run.
type Service struct {
	run        types.RunInfo
	supervisor *Supervisor
	latency    *metrics.LatencyTracker
	store      storage.Storage
	client     rpc.Caller
	now        func() time.Time
}

// NewService creates a service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		run:        cfg.Run,
		supervisor: cfg.Supervisor,
		latency:    cfg.Latency,
		store:      cfg.Store,
		client:     cfg.Client,
		now:        time.Now,
	}
}

// Stats returns live totals for the current run.
func (s *Service) Stats() types.StatsResponse {
	snap := s.supervisor.Stats().Snapshot()

	resp := types.StatsResponse{
		Run:    s.run,
		Status: s.supervisor.Status(),
		Total:  snap.Requests,
		Errors: snap.Errors,
	}

	if started := s.supervisor.StartedAt(); !started.IsZero() {
		resp.ElapsedSec = s.now().Sub(started).Seconds()
		if resp.ElapsedSec > 0 {
			resp.AverageRPS = float64(snap.Requests) / resp.ElapsedSec
		}
	}

	if r := s.supervisor.Reporter(); r != nil {
		if latest := r.Latest(); latest != nil {
			resp.LastReport = latest
			resp.CurrentRPS = latest.RPS
		}
	}

	if s.latency != nil {
		resp.Latency = s.latency.Stats()
	}
	return resp
}

// History returns a page of stored samples for the current run.
func (s *Service) History(ctx context.Context, limit, offset int) (*types.HistoryResponse, error) {
	if s.store == nil {
		return nil, storage.ErrDisabled
	}

	page, err := s.store.ListSamples(ctx, s.run.ID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list samples: %w", err)
	}

	samples := make([]types.ReportSample, len(page.Samples))
	for i, sample := range page.Samples {
		samples[i] = sample.Report()
	}

	return &types.HistoryResponse{
		Run:     s.run,
		Samples: samples,
		Total:   page.Total,
		Limit:   page.Limit,
		Offset:  page.Offset,
	}, nil
}

// CheckRPC verifies the target node answers eth_blockNumber.
func (s *Service) CheckRPC(ctx context.Context) error {
	_, err := s.client.Call(ctx, "eth_blockNumber", nil)
	return err
}
