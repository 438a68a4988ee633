// Package integration runs the full load pipeline in-process against a
// mock node and checks that every view of a run agrees.
package integration

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/gateway-fm/nodeload/internal/collector"
	"github.com/gateway-fm/nodeload/internal/load"
	"github.com/gateway-fm/nodeload/internal/metrics"
	"github.com/gateway-fm/nodeload/internal/rpc"
	"github.com/gateway-fm/nodeload/internal/storage"
	"github.com/gateway-fm/nodeload/internal/transport"
	"github.com/gateway-fm/nodeload/pkg/types"
)

const blockJSON = `{
	"number": "0x2a",
	"hash": "0x1111111111111111111111111111111111111111111111111111111111111111",
	"transactions": [{
		"hash": "0x2222222222222222222222222222222222222222222222222222222222222222",
		"from": "0x3333333333333333333333333333333333333333"
	}]
}`

func newMockNode(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpc.JSONRPCRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		result := `"0x1"`
		switch req.Method {
		case "eth_getBlockByNumber":
			result = blockJSON
		case "eth_getTransactionByHash":
			result = `{"hash":"0x2222222222222222222222222222222222222222222222222222222222222222"}`
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"jsonrpc":"2.0","id":1,"result":`+result+`}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

type stack struct {
	stats      *metrics.Statistics
	supervisor *load.Supervisor
	ws         *transport.WebSocketServer
	api        *httptest.Server
}

func newStack(t *testing.T, nodeURL string) *stack {
	t.Helper()

	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "loadgen.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStorage() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	run := &storage.LoadRun{ID: "run-it", StartedAt: time.Now().UTC(), Endpoint: nodeURL, Workers: 3, ReportIntervalMs: 50}
	if err := store.CreateRun(context.Background(), run); err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}

	reg := prometheus.NewRegistry()
	prom := metrics.NewPrometheusMetrics(reg)
	latency := metrics.NewLatencyTracker()
	client := rpc.NewHTTPClient(rpc.ClientConfig{
		URL:      nodeURL,
		Timeout:  time.Second,
		Observer: rpc.MultiObserver{prom, latency},
	})

	stats := metrics.NewStatistics()
	reporter := load.NewReporter(load.ReporterConfig{Stats: stats, Interval: 50 * time.Millisecond, Out: io.Discard})

	ws := transport.NewWebSocketServer(nil)
	ws.Start()
	t.Cleanup(ws.Stop)

	// storage first so history always holds what the stream delivered
	reporter.AddSink(storage.NewSampleRecorder(store, run.ID))
	reporter.AddSink(ws)

	supervisor := load.NewSupervisor(load.SupervisorConfig{
		Workers:  3,
		Client:   client,
		Stats:    stats,
		Reporter: reporter,
		Recorder: prom,
	})
	service := load.NewService(load.ServiceConfig{
		Run:        run.Info(),
		Supervisor: supervisor,
		Latency:    latency,
		Store:      store,
		Client:     client,
	})

	server := transport.NewServer(transport.ServerConfig{
		API:       service,
		Health:    service,
		Gatherer:  reg,
		WebSocket: ws,
	})
	api := httptest.NewServer(server.Handler())
	t.Cleanup(api.Close)

	return &stack{stats: stats, supervisor: supervisor, ws: ws, api: api}
}

func getJSON(t *testing.T, url string, v any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s: status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
}

func TestLiveStreamMatchesHistory(t *testing.T) {
	node := newMockNode(t)
	s := newStack(t, node.URL)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(s.api.URL, "http")+"/v1/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for s.ws.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("websocket client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	var (
		mu       sync.Mutex
		streamed []types.ReportSample
	)
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			var msg struct {
				Type string             `json:"type"`
				Data types.ReportSample `json:"data"`
			}
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			mu.Lock()
			streamed = append(streamed, msg.Data)
			mu.Unlock()
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 400*time.Millisecond)
	defer cancel()
	s.supervisor.Run(ctx)

	select {
	case <-s.supervisor.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("workers did not stop")
	}

	// let the last broadcast land, then unblock the reader
	time.Sleep(50 * time.Millisecond)
	conn.Close()
	<-readDone

	var history types.HistoryResponse
	getJSON(t, s.api.URL+"/v1/history?limit=500", &history)

	mu.Lock()
	defer mu.Unlock()

	if len(streamed) < 3 {
		t.Fatalf("streamed %d samples, want at least 3", len(streamed))
	}
	if len(history.Samples) < len(streamed) {
		t.Fatalf("history has %d samples, stream delivered %d", len(history.Samples), len(streamed))
	}

	stored := make(map[int64]types.ReportSample, len(history.Samples))
	for _, h := range history.Samples {
		stored[h.Timestamp.UnixMilli()] = h
	}
	for _, live := range streamed {
		h, ok := stored[live.Timestamp.UnixMilli()]
		if !ok {
			t.Errorf("streamed sample at %v missing from history", live.Timestamp)
			continue
		}
		if h.Total != live.Total || h.Errors != live.Errors || h.RPS != live.RPS {
			t.Errorf("history %+v != streamed %+v", h, live)
		}
	}

	for i := 1; i < len(history.Samples); i++ {
		if history.Samples[i].Total < history.Samples[i-1].Total {
			t.Errorf("cumulative total decreased at sample %d", i)
		}
	}
}

func TestStatsMatchPrometheus(t *testing.T) {
	node := newMockNode(t)
	s := newStack(t, node.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	s.supervisor.Run(ctx)

	select {
	case <-s.supervisor.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("workers did not stop")
	}

	snap := s.stats.Snapshot()
	if snap.Requests == 0 {
		t.Fatal("no iterations ran")
	}

	var st types.StatsResponse
	getJSON(t, s.api.URL+"/v1/stats", &st)

	if st.Total != snap.Requests || st.Errors != snap.Errors {
		t.Errorf("stats = %d/%d, counters = %d/%d", st.Total, st.Errors, snap.Requests, snap.Errors)
	}
	if st.Status != types.StatusStopped {
		t.Errorf("status = %s, want stopped", st.Status)
	}
	if st.Latency == nil || st.Latency.Count == 0 {
		t.Error("expected latency samples in stats")
	}

	fams, err := collector.Scrape(context.Background(), http.DefaultClient, s.api.URL+"/metrics")
	if err != nil {
		t.Fatalf("scrape /metrics: %v", err)
	}

	var iterations float64
	if mf, ok := fams["nodeload_iterations_total"]; ok {
		for _, m := range mf.GetMetric() {
			iterations += m.GetCounter().GetValue()
		}
	}
	if uint64(iterations) != snap.Requests {
		t.Errorf("nodeload_iterations_total = %v, want %d", iterations, snap.Requests)
	}

	var failed float64
	if mf, ok := fams["nodeload_rpc_errors_total"]; ok {
		for _, m := range mf.GetMetric() {
			failed += m.GetCounter().GetValue()
		}
	}
	if uint64(failed) != snap.Errors {
		t.Errorf("nodeload_rpc_errors_total = %v, want %d", failed, snap.Errors)
	}
}

func TestReadyReflectsNode(t *testing.T) {
	node := newMockNode(t)
	s := newStack(t, node.URL)

	resp, err := http.Get(s.api.URL + "/ready")
	if err != nil {
		t.Fatalf("GET /ready: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("ready with node up = %d, want 200", resp.StatusCode)
	}

	node.Close()

	resp, err = http.Get(s.api.URL + "/ready")
	if err != nil {
		t.Fatalf("GET /ready: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("ready with node down = %d, want 503", resp.StatusCode)
	}
}
