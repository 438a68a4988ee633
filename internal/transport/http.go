// Package transport provides the HTTP API of a running load generator.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gateway-fm/nodeload/internal/storage"
	"github.com/gateway-fm/nodeload/pkg/types"
)

// History pagination bounds
const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// LoadGeneratorAPI is the view of the running load the server exposes.
type LoadGeneratorAPI interface {
	Stats() types.StatsResponse
	History(ctx context.Context, limit, offset int) (*types.HistoryResponse, error)
}

// HealthChecker probes the target node.
type HealthChecker interface {
	CheckRPC(ctx context.Context) error
}

// ServerConfig holds server dependencies.
type ServerConfig struct {
	API                LoadGeneratorAPI
	Health             HealthChecker       // optional
	Gatherer           prometheus.Gatherer // defaults to prometheus.DefaultGatherer
	WebSocket          *WebSocketServer    // optional
	CORSAllowedOrigins []string            // empty or "*" allows all
	Logger             *slog.Logger
}

// Server serves live stats, stored history, health and metrics.
type Server struct {
	api       LoadGeneratorAPI
	health    HealthChecker
	gatherer  prometheus.Gatherer
	wsServer  *WebSocketServer
	logger    *slog.Logger
	startTime time.Time

	corsAllowedOrigins []string
	corsAllowAll       bool
}

// NewServer creates a server.
func NewServer(cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		api:       cfg.API,
		health:    cfg.Health,
		gatherer:  gatherer,
		wsServer:  cfg.WebSocket,
		logger:    logger,
		startTime: time.Now(),
	}

	for _, o := range cfg.CORSAllowedOrigins {
		if o = strings.TrimSpace(o); o == "*" {
			s.corsAllowAll = true
		} else if o != "" {
			s.corsAllowedOrigins = append(s.corsAllowedOrigins, o)
		}
	}
	if len(s.corsAllowedOrigins) == 0 {
		s.corsAllowAll = true
	}

	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/stats", s.corsMiddleware(s.handleStats))
	mux.HandleFunc("/v1/history", s.corsMiddleware(s.handleHistory))
	if s.wsServer != nil {
		mux.HandleFunc("/v1/ws", s.wsServer.Handler())
	}

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", s.handleReady)

	mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	return mux
}

func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		if s.corsAllowAll {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		} else if origin != "" {
			for _, o := range s.corsAllowedOrigins {
				if o == origin {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Vary", "Origin")
					break
				}
			}
		}

		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, http.StatusOK, s.api.Stats())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := defaultHistoryLimit
	offset := 0

	if v := r.URL.Query().Get("limit"); v != "" {
		if l, err := strconv.Atoi(v); err == nil && l > 0 && l <= maxHistoryLimit {
			limit = l
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if o, err := strconv.Atoi(v); err == nil && o >= 0 {
			offset = o
		}
	}

	result, err := s.api.History(r.Context(), limit, offset)
	if errors.Is(err, storage.ErrDisabled) {
		s.writeJSONError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	if err != nil {
		s.logger.Error("Failed to get history", slog.String("error", err.Error()))
		s.writeJSONError(w, "Failed to get history: "+err.Error(), http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

// handleHealth handles liveness probes.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats := s.api.Stats()
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "healthy",
		"runId":          stats.Run.ID,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"uptime_seconds": time.Since(s.startTime).Seconds(),
	})
}

// ReadinessCheck represents a single readiness check result.
type ReadinessCheck struct {
	Name      string `json:"name"`
	Status    string `json:"status"` // "ok" or "failed"
	LatencyMs int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// handleReady reports whether the target node answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := []ReadinessCheck{}
	allHealthy := true

	if s.health != nil {
		start := time.Now()
		err := s.health.CheckRPC(r.Context())

		check := ReadinessCheck{
			Name:      "rpc",
			Status:    "ok",
			LatencyMs: time.Since(start).Milliseconds(),
		}
		if err != nil {
			check.Status = "failed"
			check.Error = err.Error()
			allHealthy = false
		}
		checks = append(checks, check)
	}

	status := http.StatusOK
	if !allHealthy {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, map[string]interface{}{
		"ready":  allHealthy,
		"checks": checks,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("Failed to write response", slog.String("error", err.Error()))
	}
}

func (s *Server) writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	s.writeJSON(w, statusCode, map[string]string{"error": message})
}
