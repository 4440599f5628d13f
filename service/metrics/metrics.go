package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics.
type Metrics struct {
	// Solana RPC Metrics
	solanaRPCCallsTotal        *prometheus.CounterVec
	solanaRPCCallDuration      *prometheus.HistogramVec
	solanaRPCSignaturesPerCall *prometheus.HistogramVec

	// Indexing Metrics
	indexCandidatesTotal   *prometheus.CounterVec
	indexCandidatesSkipped *prometheus.CounterVec
	indexTransfersTotal    *prometheus.CounterVec
	indexRunDuration       *prometheus.HistogramVec
	indexRunsTotal         *prometheus.CounterVec
	snapshotTransfers      *prometheus.GaugeVec

	// HTTP Metrics
	httpRequestDuration *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec

	// NATS Metrics
	natsMessagesPublished *prometheus.CounterVec
	natsPublishDuration   *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		// Solana RPC Metrics
		solanaRPCCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_calls_total",
				Help: "Total number of Solana RPC calls by method and status",
			},
			[]string{"method", "status", "endpoint"},
		),
		solanaRPCCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_call_duration_seconds",
				Help:    "Duration of Solana RPC calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method", "endpoint"},
		),
		solanaRPCSignaturesPerCall: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_signatures_per_call",
				Help:    "Number of signatures fetched per GetSignaturesForAddress call",
				Buckets: []float64{1, 10, 50, 100, 250, 500, 1000},
			},
			[]string{"endpoint"},
		),

		// Indexing Metrics
		indexCandidatesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "index_candidates_total",
				Help: "Total number of listed signatures by window outcome",
			},
			[]string{"wallet_address", "outcome"},
		),
		indexCandidatesSkipped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "index_candidates_skipped_total",
				Help: "Total number of candidates skipped by reason",
			},
			[]string{"wallet_address", "reason"},
		),
		indexTransfersTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "index_transfers_extracted_total",
				Help: "Total number of transfer records extracted",
			},
			[]string{"wallet_address", "direction"},
		),
		indexRunDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "index_run_duration_seconds",
				Help:    "Duration of indexing runs in seconds",
				Buckets: []float64{0.5, 1, 5, 10, 30, 60, 120, 300},
			},
			[]string{"wallet_address", "status"},
		),
		indexRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "index_runs_total",
				Help: "Total number of indexing runs",
			},
			[]string{"wallet_address", "status"},
		),
		snapshotTransfers: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "snapshot_transfers",
				Help: "Number of transfers held in the served snapshot",
			},
			[]string{"wallet_address"},
		),

		// HTTP Metrics
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"handler", "method", "status"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status"},
		),

		// NATS Metrics
		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_published_total",
				Help: "Total number of NATS messages published",
			},
			[]string{"subject", "status"},
		),
		natsPublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nats_publish_duration_seconds",
				Help:    "Duration of NATS publish operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"subject"},
		),
	}
}

// Solana RPC metric helpers

// RecordRPCCall records a Solana RPC call with duration.
func (m *Metrics) RecordRPCCall(method, status, endpoint string, duration float64) {
	m.solanaRPCCallsTotal.WithLabelValues(method, status, endpoint).Inc()
	m.solanaRPCCallDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordRPCSignaturesPerCall records the number of signatures fetched.
func (m *Metrics) RecordRPCSignaturesPerCall(endpoint string, count float64) {
	m.solanaRPCSignaturesPerCall.WithLabelValues(endpoint).Observe(count)
}

// Indexing metric helpers

// RecordCandidates records listed signatures that fell inside or outside the window.
func (m *Metrics) RecordCandidates(walletAddress, outcome string, count int) {
	m.indexCandidatesTotal.WithLabelValues(walletAddress, outcome).Add(float64(count))
}

// RecordCandidateSkipped records one candidate dropped for reason.
func (m *Metrics) RecordCandidateSkipped(walletAddress, reason string) {
	m.indexCandidatesSkipped.WithLabelValues(walletAddress, reason).Inc()
}

// RecordTransfersExtracted records extracted transfer records.
func (m *Metrics) RecordTransfersExtracted(walletAddress, direction string, count int) {
	m.indexTransfersTotal.WithLabelValues(walletAddress, direction).Add(float64(count))
}

// RecordIndexRun records indexing run duration and outcome.
func (m *Metrics) RecordIndexRun(walletAddress, status string, duration float64) {
	m.indexRunDuration.WithLabelValues(walletAddress, status).Observe(duration)
	m.indexRunsTotal.WithLabelValues(walletAddress, status).Inc()
}

// SetSnapshotTransfers sets the size of the served snapshot.
func (m *Metrics) SetSnapshotTransfers(walletAddress string, count int) {
	m.snapshotTransfers.WithLabelValues(walletAddress).Set(float64(count))
}

// HTTP metric helpers

// RecordHTTPRequest records an HTTP request with duration.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	status := statusCodeToString(statusCode)
	m.httpRequestDuration.WithLabelValues(handler, method, status).Observe(duration)
	m.httpRequestsTotal.WithLabelValues(handler, method, status).Inc()
}

// NATS metric helpers

// RecordNATSPublish records a NATS publish operation.
func (m *Metrics) RecordNATSPublish(subject, status string, duration float64) {
	m.natsMessagesPublished.WithLabelValues(subject, status).Inc()
	m.natsPublishDuration.WithLabelValues(subject).Observe(duration)
}

// Helper functions

func statusCodeToString(code int) string {
	// Group status codes by class
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "unknown"
	}
}
