package load

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gateway-fm/nodeload/internal/metrics"
	"github.com/gateway-fm/nodeload/internal/ratelimit"
	"github.com/gateway-fm/nodeload/internal/rpc"
	"github.com/gateway-fm/nodeload/pkg/types"
)

// newMockNode serves every JSON-RPC method with a plausible result.
func newMockNode(t *testing.T) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var hits atomic.Int64

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		body, _ := io.ReadAll(r.Body)
		var req rpc.JSONRPCRequest
		if err := json.Unmarshal(body, &req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		result := `"0x1"`
		switch req.Method {
		case "eth_getBlockByNumber":
			result = latestBlockJSON
		case "eth_getTransactionByHash":
			result = `{"hash":"0x2222222222222222222222222222222222222222222222222222222222222222"}`
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":` + result + `}`))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func runFor(t *testing.T, s *Supervisor, d time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()

	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("tasks did not exit after cancellation")
	}
}

func TestSupervisorAgainstHealthyNode(t *testing.T) {
	srv, hits := newMockNode(t)

	stats := metrics.NewStatistics()
	var out bytes.Buffer
	reporter := NewReporter(ReporterConfig{Stats: stats, Interval: 50 * time.Millisecond, Out: &out})

	s := NewSupervisor(SupervisorConfig{
		Workers:  4,
		Client:   rpc.NewHTTPClient(rpc.DefaultClientConfig(srv.URL)),
		Stats:    stats,
		Reporter: reporter,
	})

	if s.Status() != types.StatusStarting {
		t.Errorf("status before Run = %s", s.Status())
	}

	runFor(t, s, 300*time.Millisecond)

	snap := stats.Snapshot()
	if snap.Requests == 0 {
		t.Error("expected iterations against a healthy node")
	}
	if snap.Errors != 0 {
		t.Errorf("errors = %d, want 0 against a node that always succeeds", snap.Errors)
	}
	if hits.Load() == 0 {
		t.Error("mock node was never called")
	}
	if out.Len() == 0 {
		t.Error("reporter printed nothing")
	}
	if s.Status() != types.StatusStopped {
		t.Errorf("status after Run = %s, want %s", s.Status(), types.StatusStopped)
	}
	if s.StartedAt().IsZero() {
		t.Error("StartedAt should be set")
	}
}

func TestSupervisorAgainstFailingNode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusInternalServerError)
	}))
	defer srv.Close()

	stats := metrics.NewStatistics()
	s := NewSupervisor(SupervisorConfig{
		Workers: 3,
		Client:  rpc.NewHTTPClient(rpc.DefaultClientConfig(srv.URL)),
		Stats:   stats,
	})

	runFor(t, s, 200*time.Millisecond)

	// with an always-empty cache every iteration makes one or two failing calls
	snap := stats.Snapshot()
	if snap.Requests == 0 {
		t.Fatal("expected iterations to continue despite errors")
	}
	if snap.Errors < snap.Requests {
		t.Errorf("errors = %d, want at least one per iteration (%d)", snap.Errors, snap.Requests)
	}
}

func TestSupervisorHonorsRateLimit(t *testing.T) {
	stats := metrics.NewStatistics()
	s := NewSupervisor(SupervisorConfig{
		Workers: 8,
		Client:  newStubCaller(),
		Stats:   stats,
		Limiter: ratelimit.New(100),
	})

	runFor(t, s, 200*time.Millisecond)

	// 100/s for 200ms is about 20 permits
	if got := stats.Snapshot().Requests; got > 40 {
		t.Errorf("requests = %d, limiter should cap near 20", got)
	}
}

func TestSupervisorDefaults(t *testing.T) {
	s := NewSupervisor(SupervisorConfig{Client: newStubCaller()})

	if s.Workers() != DefaultWorkers {
		t.Errorf("Workers() = %d, want %d", s.Workers(), DefaultWorkers)
	}
	if s.Stats() == nil {
		t.Error("Stats() should never be nil")
	}
	if s.Reporter() != nil {
		t.Error("Reporter() should be nil when not configured")
	}
}
