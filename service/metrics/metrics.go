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
	solanaRPCCallsTotal   *prometheus.CounterVec
	solanaRPCCallDuration *prometheus.HistogramVec

	// Confirmation Metrics
	confirmationPollsTotal  *prometheus.CounterVec
	confirmationWaitSeconds *prometheus.HistogramVec

	// Signing Metrics
	signingDuration *prometheus.HistogramVec

	// Workflow Metrics
	workflowDuration        *prometheus.HistogramVec
	workflowExecutionsTotal *prometheus.CounterVec
	workflowRejectedBusy    *prometheus.CounterVec

	// Quote Metrics
	quoteFetchesTotal   *prometheus.CounterVec
	quoteFetchDuration  *prometheus.HistogramVec
	quoteStaleDiscarded *prometheus.CounterVec

	// Database Metrics
	dbQueryDuration   *prometheus.HistogramVec
	dbOperationsTotal *prometheus.CounterVec

	// HTTP Metrics
	httpRequestDuration    *prometheus.HistogramVec
	httpRequestsTotal      *prometheus.CounterVec
	streamActiveConnection *prometheus.GaugeVec
	streamEventsSent       *prometheus.CounterVec

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

		// Confirmation Metrics
		confirmationPollsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "confirmation_polls_total",
				Help: "Total number of signature status polls while waiting for confirmation",
			},
			[]string{"endpoint", "result"},
		),
		confirmationWaitSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "confirmation_wait_seconds",
				Help:    "Time spent waiting for a submitted transaction to reach a terminal status",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
			},
			[]string{"endpoint", "outcome"},
		),

		// Signing Metrics
		signingDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "custodian_signing_duration_seconds",
				Help:    "Time the custodian took to sign a transaction",
				Buckets: []float64{0.001, 0.01, 0.1, 1, 5, 15, 30, 60, 300},
			},
			[]string{"custodian", "outcome"},
		),

		// Workflow Metrics
		workflowDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wallet_workflow_duration_seconds",
				Help:    "Duration of wallet workflow invocations in seconds",
				Buckets: []float64{0.5, 1, 5, 10, 30, 60, 120, 300},
			},
			[]string{"workflow", "outcome"},
		),
		workflowExecutionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wallet_workflow_executions_total",
				Help: "Total number of wallet workflow invocations by terminal kind",
			},
			[]string{"workflow", "outcome", "kind"},
		),
		workflowRejectedBusy: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wallet_workflow_busy_rejections_total",
				Help: "Invocations rejected because another workflow was in flight for the same custodian",
			},
			[]string{"workflow"},
		),

		// Quote Metrics
		quoteFetchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quote_fetches_total",
				Help: "Total number of quote fetches by status",
			},
			[]string{"source", "status"},
		),
		quoteFetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quote_fetch_duration_seconds",
				Help:    "Duration of quote fetches in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
			},
			[]string{"source"},
		),
		quoteStaleDiscarded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quote_stale_responses_total",
				Help: "Quote responses discarded because their parameters were superseded",
			},
			[]string{"source"},
		),

		// Database Metrics
		dbQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "db_query_duration_seconds",
				Help:    "Duration of database queries in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"operation", "table"},
		),
		dbOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "db_operations_total",
				Help: "Total number of database operations",
			},
			[]string{"operation", "status"},
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
		streamActiveConnection: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "stream_active_connections",
				Help: "Number of active streaming connections (SSE and websocket)",
			},
			[]string{"stream"},
		),
		streamEventsSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stream_events_sent_total",
				Help: "Total number of streaming events sent",
			},
			[]string{"stream", "event_type"},
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

// RecordConfirmationPoll records one signature status poll. Result is one of
// "pending", "confirmed", "failed" or "error".
func (m *Metrics) RecordConfirmationPoll(endpoint, result string) {
	m.confirmationPollsTotal.WithLabelValues(endpoint, result).Inc()
}

// RecordConfirmationWait records how long a confirmation wait took and how it ended.
func (m *Metrics) RecordConfirmationWait(endpoint, outcome string, duration float64) {
	m.confirmationWaitSeconds.WithLabelValues(endpoint, outcome).Observe(duration)
}

// RecordSigning records a custodian signing round trip.
func (m *Metrics) RecordSigning(custodian, outcome string, duration float64) {
	m.signingDuration.WithLabelValues(custodian, outcome).Observe(duration)
}

// Workflow metric helpers

// RecordWorkflow records a terminal workflow invocation.
func (m *Metrics) RecordWorkflow(workflow, outcome, kind string, duration float64) {
	m.workflowDuration.WithLabelValues(workflow, outcome).Observe(duration)
	m.workflowExecutionsTotal.WithLabelValues(workflow, outcome, kind).Inc()
}

// RecordWorkflowBusy records an invocation rejected by the in-flight guard.
func (m *Metrics) RecordWorkflowBusy(workflow string) {
	m.workflowRejectedBusy.WithLabelValues(workflow).Inc()
}

// Quote metric helpers

// RecordQuoteFetch records a quote fetch with duration.
func (m *Metrics) RecordQuoteFetch(source, status string, duration float64) {
	m.quoteFetchesTotal.WithLabelValues(source, status).Inc()
	m.quoteFetchDuration.WithLabelValues(source).Observe(duration)
}

// RecordQuoteDiscarded records a late response dropped for a superseded tuple.
func (m *Metrics) RecordQuoteDiscarded(source string) {
	m.quoteStaleDiscarded.WithLabelValues(source).Inc()
}

// Database metric helpers

// RecordDBQuery records a database query with duration.
func (m *Metrics) RecordDBQuery(operation, table string, duration float64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.dbQueryDuration.WithLabelValues(operation, table).Observe(duration)
	m.dbOperationsTotal.WithLabelValues(operation, status).Inc()
}

// HTTP metric helpers

// RecordHTTPRequest records an HTTP request with duration.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	status := statusCodeToString(statusCode)
	m.httpRequestDuration.WithLabelValues(handler, method, status).Observe(duration)
	m.httpRequestsTotal.WithLabelValues(handler, method, status).Inc()
}

// RecordStreamConnectionChange records a change in streaming connection count.
func (m *Metrics) RecordStreamConnectionChange(stream string, delta float64) {
	m.streamActiveConnection.WithLabelValues(stream).Add(delta)
}

// RecordStreamEventSent records an event written to a streaming connection.
func (m *Metrics) RecordStreamEventSent(stream, eventType string) {
	m.streamEventsSent.WithLabelValues(stream, eventType).Inc()
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
