// Package metrics provides Prometheus metrics for the crossfire correlation service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every collector exported by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	waitBuckets      []float64
	registry         prometheus.Registerer

	// Upstream API
	upstreamCalls   *prometheus.CounterVec
	upstreamLatency *prometheus.HistogramVec
	telemetryBytes  prometheus.Histogram

	// Rate gate
	gateWaits       prometheus.Counter
	gateWaitSeconds prometheus.Histogram
	gateInFlight    prometheus.Gauge

	// Correlation pipeline
	runs           *prometheus.CounterVec
	runsActive     prometheus.Gauge
	matches        *prometheus.CounterVec
	interactions   *prometheus.CounterVec
	streamMessages *prometheus.CounterVec
	streamBacklog  prometheus.Gauge
	parseErrors    prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // keeps default Go collectors out

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "crossfire",
		subsystem:        "correlator",
		histogramBuckets: prometheus.DefBuckets,
		waitBuckets:      []float64{0.5, 1, 2, 5, 10, 20, 30, 45, 60},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // flat list of collectors
	auto := promauto.With(m.registry)

	m.upstreamCalls = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "upstream_calls_total",
		Help:      "Upstream API calls by operation and outcome",
	}, []string{"operation", "status"})

	m.upstreamLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "upstream_latency_seconds",
		Help:      "Upstream API call latency in seconds, excluding rate gate waits",
		Buckets:   m.histogramBuckets,
	}, []string{"operation"})

	m.telemetryBytes = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "telemetry_bytes",
		Help:      "Size of downloaded telemetry documents",
		Buckets:   prometheus.ExponentialBuckets(1<<20, 2, 8),
	})

	m.gateWaits = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rate_gate_waits_total",
		Help:      "Number of calls delayed by the rate gate",
	})

	m.gateWaitSeconds = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rate_gate_wait_seconds",
		Help:      "Time spent waiting for quota",
		Buckets:   m.waitBuckets,
	})

	m.gateInFlight = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rate_gate_window_calls",
		Help:      "Calls currently retained in the quota window",
	})

	m.runs = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "runs_total",
		Help:      "Correlation runs by terminal result",
	}, []string{"result"})

	m.runsActive = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "runs_active",
		Help:      "Correlation runs currently in progress",
	})

	m.matches = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "matches_total",
		Help:      "Candidate matches by outcome",
	}, []string{"outcome"})

	m.interactions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "interactions_total",
		Help:      "Extracted interactions by kind",
	}, []string{"kind"})

	m.streamMessages = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "stream_messages_total",
		Help:      "Progress stream records emitted by kind",
	}, []string{"kind"})

	m.streamBacklog = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "stream_backlog",
		Help:      "Records queued but not yet delivered to consumers",
	})

	m.parseErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "stream_parse_errors_total",
		Help:      "Malformed stream records dropped by consumers",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests by endpoint and method",
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds; streaming requests span the whole run",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})
}

// RecordUpstreamCall counts one upstream call outcome.
func RecordUpstreamCall(operation, status string) {
	globalManager.upstreamCalls.WithLabelValues(operation, status).Inc()
}

// RecordUpstreamLatency records how long an upstream call took.
func RecordUpstreamLatency(operation string, seconds float64) {
	globalManager.upstreamLatency.WithLabelValues(operation).Observe(seconds)
}

// RecordTelemetryBytes records the size of a telemetry document.
func RecordTelemetryBytes(n int64) {
	globalManager.telemetryBytes.Observe(float64(n))
}

// RecordGateWait records a rate gate delay.
func RecordGateWait(seconds float64) {
	globalManager.gateWaits.Inc()
	globalManager.gateWaitSeconds.Observe(seconds)
}

// UpdateGateWindow sets the number of calls held in the quota window.
func UpdateGateWindow(n int) {
	globalManager.gateInFlight.Set(float64(n))
}

// RecordRun counts a finished correlation run.
func RecordRun(result string) {
	globalManager.runs.WithLabelValues(result).Inc()
}

// AddActiveRuns adjusts the active run gauge.
func AddActiveRuns(delta int) {
	globalManager.runsActive.Add(float64(delta))
}

// RecordMatch counts a candidate match outcome.
func RecordMatch(outcome string) {
	globalManager.matches.WithLabelValues(outcome).Inc()
}

// RecordInteraction counts an extracted interaction.
func RecordInteraction(kind string) {
	globalManager.interactions.WithLabelValues(kind).Inc()
}

// RecordStreamMessage counts an emitted stream record.
func RecordStreamMessage(kind string) {
	globalManager.streamMessages.WithLabelValues(kind).Inc()
}

// AddStreamBacklog adjusts the undelivered record gauge.
func AddStreamBacklog(delta int) {
	globalManager.streamBacklog.Add(float64(delta))
}

// RecordParseError counts a malformed record dropped by a consumer.
func RecordParseError() {
	globalManager.parseErrors.Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, seconds float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(seconds)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
