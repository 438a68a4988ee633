package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics mirrors load activity into Prometheus collectors.
type PrometheusMetrics struct {
	Iterations  *prometheus.CounterVec
	RPCCalls    *prometheus.CounterVec
	RPCErrors   *prometheus.CounterVec
	RPCLatency  *prometheus.HistogramVec
	CurrentRPS  prometheus.Gauge
	TargetRPS   prometheus.Gauge
	WorkerCount prometheus.Gauge
}

// NewPrometheusMetrics creates and registers all Prometheus metrics.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)

	return &PrometheusMetrics{
		Iterations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nodeload_iterations_total",
				Help: "Worker loop iterations by selected operation",
			},
			[]string{"operation"},
		),

		RPCCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nodeload_rpc_calls_total",
				Help: "JSON-RPC calls by method and outcome",
			},
			[]string{"method", "status"},
		),

		RPCErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nodeload_rpc_errors_total",
				Help: "Failed JSON-RPC calls by method",
			},
			[]string{"method"},
		),

		RPCLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nodeload_rpc_latency_seconds",
				Help:    "JSON-RPC call latency by method",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 3},
			},
			[]string{"method", "status"},
		),

		CurrentRPS: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "nodeload_current_rps",
				Help: "Iterations per second over the last reporting interval",
			},
		),

		TargetRPS: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "nodeload_target_rps",
				Help: "Scheduled iteration rate cap, 0 when unlimited",
			},
		),

		WorkerCount: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "nodeload_workers",
				Help: "Number of running load workers",
			},
		),
	}
}

// knownRPCMethods bounds the method label cardinality.
var knownRPCMethods = map[string]bool{
	"eth_getBlockByNumber":     true,
	"eth_getTransactionByHash": true,
	"eth_getBalance":           true,
	"eth_blockNumber":          true,
	"net_version":              true,
	"eth_gasPrice":             true,
}

func bucketMethod(method string) string {
	if !knownRPCMethods[method] {
		return "other"
	}
	return method
}

// ObserveCall records the outcome and latency of one RPC call.
func (m *PrometheusMetrics) ObserveCall(method string, success bool, latency time.Duration) {
	bucketed := bucketMethod(method)

	status := "success"
	if !success {
		status = "error"
		m.RPCErrors.WithLabelValues(bucketed).Inc()
	}
	m.RPCCalls.WithLabelValues(bucketed, status).Inc()
	m.RPCLatency.WithLabelValues(bucketed, status).Observe(latency.Seconds())
}

// RecordIteration counts one worker iteration for the given operation.
func (m *PrometheusMetrics) RecordIteration(operation string) {
	m.Iterations.WithLabelValues(operation).Inc()
}

// SetCurrentRPS updates the throughput gauge.
func (m *PrometheusMetrics) SetCurrentRPS(rps float64) {
	m.CurrentRPS.Set(rps)
}

// SetTargetRPS updates the scheduled rate gauge.
func (m *PrometheusMetrics) SetTargetRPS(rps float64) {
	m.TargetRPS.Set(rps)
}

// SetWorkers updates the worker gauge.
func (m *PrometheusMetrics) SetWorkers(n int) {
	m.WorkerCount.Set(float64(n))
}
