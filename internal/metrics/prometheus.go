package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics contains all Prometheus metrics for the event indexer
type PrometheusMetrics struct {
	// Event processing metrics
	EventsProcessedTotal    *prometheus.CounterVec
	EventProcessingDuration *prometheus.HistogramVec

	// Subscription metrics
	StreamFailuresTotal  *prometheus.CounterVec
	ResubscriptionsTotal *prometheus.CounterVec
	SubscriptionState    *prometheus.GaugeVec
	EventFiltersActive   prometheus.Gauge

	// Connection metrics
	ConnectionErrorsTotal *prometheus.CounterVec
	RPCRequestsTotal      *prometheus.CounterVec
	RPCRequestDuration    *prometheus.HistogramVec

	// Storage metrics
	DatabaseOperationsTotal   *prometheus.CounterVec
	DatabaseOperationDuration *prometheus.HistogramVec

	// Publisher metrics
	RecordsPublishedTotal *prometheus.CounterVec

	// API metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Application health metrics
	ApplicationUptime prometheus.Gauge
	ComponentHealth   *prometheus.GaugeVec
	MemoryUsage       prometheus.Gauge
	GoroutineCount    prometheus.Gauge
}

// NewPrometheusMetrics creates all metrics and registers them on reg
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		EventsProcessedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "indexer_events_processed_total",
				Help: "Total number of contract logs processed, by outcome",
			},
			[]string{"event_type", "status"},
		),

		EventProcessingDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "indexer_event_processing_duration_seconds",
				Help:    "Time spent decoding, mapping and saving a single log",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"event_type"},
		),

		StreamFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "indexer_stream_failures_total",
				Help: "Total number of log stream failures",
			},
			[]string{"event_type"},
		),

		ResubscriptionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "indexer_resubscriptions_total",
				Help: "Total number of resubscription attempts after a stream failure",
			},
			[]string{"event_type"},
		),

		SubscriptionState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "indexer_subscription_state",
				Help: "Current subscription state (0=connecting, 1=streaming, 2=failed, 3=stopped)",
			},
			[]string{"event_type"},
		),

		EventFiltersActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "indexer_event_filters_active",
				Help: "Number of log filters currently streaming",
			},
		),

		ConnectionErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "indexer_connection_errors_total",
				Help: "Total number of connection errors to nodes",
			},
			[]string{"endpoint", "error_type"},
		),

		RPCRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "indexer_rpc_requests_total",
				Help: "Total number of RPC requests made to nodes",
			},
			[]string{"method", "status"},
		),

		RPCRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "indexer_rpc_request_duration_seconds",
				Help:    "Duration of RPC requests to nodes",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),

		DatabaseOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "indexer_database_operations_total",
				Help: "Total number of database operations",
			},
			[]string{"operation", "table", "status"},
		),

		DatabaseOperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "indexer_database_operation_duration_seconds",
				Help:    "Duration of database operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "table"},
		),

		RecordsPublishedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "indexer_records_published_total",
				Help: "Total number of saved records published downstream",
			},
			[]string{"event_type", "status"},
		),

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "indexer_http_requests_total",
				Help: "Total number of HTTP requests received",
			},
			[]string{"method", "path", "status"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "indexer_http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		ApplicationUptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "indexer_application_uptime_seconds",
				Help: "Application uptime in seconds",
			},
		),

		ComponentHealth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "indexer_component_health",
				Help: "Health status of application components (1=healthy, 0=unhealthy)",
			},
			[]string{"component"},
		),

		MemoryUsage: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "indexer_memory_usage_bytes",
				Help: "Current memory usage in bytes",
			},
		),

		GoroutineCount: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "indexer_goroutines",
				Help: "Number of running goroutines",
			},
		),
	}
}

// RecordEventProcessed records a processed log with its outcome
func (m *PrometheusMetrics) RecordEventProcessed(eventType, status string, duration time.Duration) {
	m.EventsProcessedTotal.WithLabelValues(eventType, status).Inc()
	m.EventProcessingDuration.WithLabelValues(eventType).Observe(duration.Seconds())
}

// RecordStreamFailure records a failed log stream
func (m *PrometheusMetrics) RecordStreamFailure(eventType string) {
	m.StreamFailuresTotal.WithLabelValues(eventType).Inc()
}

// RecordResubscription records a resubscription attempt
func (m *PrometheusMetrics) RecordResubscription(eventType string) {
	m.ResubscriptionsTotal.WithLabelValues(eventType).Inc()
}

// UpdateSubscriptionState records the numeric state of a subscription
func (m *PrometheusMetrics) UpdateSubscriptionState(eventType string, state int) {
	m.SubscriptionState.WithLabelValues(eventType).Set(float64(state))
}

// UpdateEventFiltersActive updates the number of streaming filters
func (m *PrometheusMetrics) UpdateEventFiltersActive(count int) {
	m.EventFiltersActive.Set(float64(count))
}

// RecordConnectionError records a connection error
func (m *PrometheusMetrics) RecordConnectionError(endpoint, errorType string) {
	m.ConnectionErrorsTotal.WithLabelValues(endpoint, errorType).Inc()
}

// RecordRPCRequest records an RPC request
func (m *PrometheusMetrics) RecordRPCRequest(method, status string, duration time.Duration) {
	m.RPCRequestsTotal.WithLabelValues(method, status).Inc()
	m.RPCRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordDatabaseOperation records a database operation
func (m *PrometheusMetrics) RecordDatabaseOperation(operation, table, status string, duration time.Duration) {
	m.DatabaseOperationsTotal.WithLabelValues(operation, table, status).Inc()
	m.DatabaseOperationDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// RecordPublished records a downstream publication attempt
func (m *PrometheusMetrics) RecordPublished(eventType, status string) {
	m.RecordsPublishedTotal.WithLabelValues(eventType, status).Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *PrometheusMetrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// UpdateApplicationUptime updates the application uptime metric
func (m *PrometheusMetrics) UpdateApplicationUptime(startTime time.Time) {
	m.ApplicationUptime.Set(time.Since(startTime).Seconds())
}

// UpdateComponentHealth updates the health status of a component
func (m *PrometheusMetrics) UpdateComponentHealth(component string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	m.ComponentHealth.WithLabelValues(component).Set(value)
}

// UpdateMemoryUsage updates the memory usage metric
func (m *PrometheusMetrics) UpdateMemoryUsage(bytes uint64) {
	m.MemoryUsage.Set(float64(bytes))
}

// UpdateGoroutineCount updates the goroutine count metric
func (m *PrometheusMetrics) UpdateGoroutineCount(count int) {
	m.GoroutineCount.Set(float64(count))
}
