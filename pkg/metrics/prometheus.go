// Package metrics provides Prometheus metrics for the ad recommendation service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Recommendation Metrics
	recommendations       *prometheus.CounterVec
	adsRecommended        prometheus.Counter
	recommendationLatency *prometheus.HistogramVec

	// Event Sink Metrics - Which tier took the event
	sinkOutcomes      *prometheus.CounterVec
	sinkLatency       *prometheus.HistogramVec
	sinkStageFailures *prometheus.CounterVec
	publishLatency    *prometheus.HistogramVec
	publishErrors     *prometheus.CounterVec
	dependencyUp      *prometheus.GaugeVec

	// Store Metrics
	storeQueryLatency *prometheus.HistogramVec
	storeErrors       *prometheus.CounterVec

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Queue Metrics - In-memory queue backend
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueueRate       prometheus.Counter
	queueDequeueRate       prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Worker Metrics - Queue drain into the store
	workerActiveCount       prometheus.Gauge
	workerMessagesPerSecond prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter
	eventsPersisted         prometheus.Counter

	// Error Metrics
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorLatency         *prometheus.HistogramVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "adrec",
		subsystem:        "service",
		histogramBuckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		constLabels:      nil,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogramVec(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.constLabels,
	})
}

// initializeMetrics creates all the Prometheus metrics on the configured registry.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	b := m.histogramBuckets

	// Recommendation Metrics
	m.recommendations = m.counterVec("recommendations_total",
		"Total number of recommendation responses by selection path", "path")
	m.adsRecommended = m.counter("ads_recommended_total",
		"Total number of ads returned across all recommendation responses")
	m.recommendationLatency = m.histogramVec("recommendation_latency_milliseconds",
		"Recommendation latency in milliseconds by selection path", b, "path")

	// Event Sink Metrics
	m.sinkOutcomes = m.counterVec("sink_outcomes_total",
		"Total number of recorded events by delivery outcome", "outcome")
	m.sinkLatency = m.histogramVec("sink_latency_milliseconds",
		"End-to-end event recording latency in milliseconds by outcome", b, "outcome")
	m.sinkStageFailures = m.counterVec("sink_stage_failures_total",
		"Total number of delivery tier failures by stage", "stage")
	m.publishLatency = m.histogramVec("publish_latency_milliseconds",
		"Queue publish latency in milliseconds by backend", b, "backend")
	m.publishErrors = m.counterVec("publish_errors_total",
		"Total number of queue publish errors by backend", "backend")
	m.dependencyUp = promauto.With(m.registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "dependency_up",
		Help:        "Whether an external dependency is reachable (1) or not (0)",
		ConstLabels: m.constLabels,
	}, []string{"dependency"})

	// Store Metrics
	m.storeQueryLatency = m.histogramVec("store_query_latency_milliseconds",
		"Interaction store query latency in milliseconds by query", b, "query")
	m.storeErrors = m.counterVec("store_errors_total",
		"Total number of interaction store errors by query", "query")

	// HTTP Performance Metrics
	m.httpRequests = m.counterVec("http_requests_total",
		"Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", b, "endpoint", "method", "status_code")

	// Queue Metrics
	m.queueSize = m.gauge("queue_size", "Current size of the in-memory event queue")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum capacity of the in-memory event queue")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue utilization as a ratio (0.0 to 1.0)")
	m.queueEnqueueRate = m.counter("queue_enqueue_total", "Total number of events enqueued")
	m.queueDequeueRate = m.counter("queue_dequeue_total", "Total number of events dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Total number of enqueue errors")
	m.queueProcessingLatency = m.histogram("queue_processing_latency_milliseconds",
		"Queue operation latency in milliseconds", b)

	// Worker Metrics
	m.workerActiveCount = m.gauge("worker_active_count", "Number of running drain workers")
	m.workerMessagesPerSecond = m.gauge("worker_messages_per_second", "Events persisted per second by the worker pool")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds",
		"Time to persist one dequeued event in milliseconds", b)
	m.workerErrors = m.counter("worker_errors_total", "Total number of worker persistence errors")
	m.eventsPersisted = m.counter("events_persisted_total", "Total number of queued events written to the store")

	// Error Metrics
	m.errorRateByComponent = m.counterVec("errors_by_component_total",
		"Total number of errors by component and error type", "component", "error_type")
	m.errorRateByType = m.counterVec("errors_by_type_total",
		"Total number of errors by type and severity", "error_type", "severity")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total",
		"Total number of errors by endpoint, method and type", "endpoint", "method", "error_type")
	m.errorLatency = m.histogramVec("error_latency_milliseconds",
		"Latency of operations that ended in an error", b, "component", "error_type")

	// System Performance Metrics
	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// Recommendation Metrics Functions.

// RecordRecommendation counts one response on path returning n ads.
func RecordRecommendation(path string, n int) {
	globalManager.recommendations.WithLabelValues(path).Inc()
	globalManager.adsRecommended.Add(float64(n))
}

// RecordRecommendationLatency records recommendation latency in milliseconds.
func RecordRecommendationLatency(path string, latencyMs float64) {
	globalManager.recommendationLatency.WithLabelValues(path).Observe(latencyMs)
}

// Event Sink Metrics Functions.

// RecordSinkOutcome counts one recorded event by outcome.
func RecordSinkOutcome(outcome string) {
	globalManager.sinkOutcomes.WithLabelValues(outcome).Inc()
}

// RecordSinkLatency records event recording latency in milliseconds.
func RecordSinkLatency(outcome string, latencyMs float64) {
	globalManager.sinkLatency.WithLabelValues(outcome).Observe(latencyMs)
}

// RecordSinkStageFailure counts one failed delivery tier.
func RecordSinkStageFailure(stage string) {
	globalManager.sinkStageFailures.WithLabelValues(stage).Inc()
}

// RecordPublishLatency records the publish latency of a queue backend.
func RecordPublishLatency(backend string, latencyMs float64) {
	globalManager.publishLatency.WithLabelValues(backend).Observe(latencyMs)
}

// RecordPublishError counts one publish error of a queue backend.
func RecordPublishError(backend string) {
	globalManager.publishErrors.WithLabelValues(backend).Inc()
}

// UpdateDependencyStatus sets whether dependency is reachable.
func UpdateDependencyStatus(dependency string, up bool) {
	v := 0.0
	if up {
		v = 1
	}
	globalManager.dependencyUp.WithLabelValues(dependency).Set(v)
}

// Store Metrics Functions.

// RecordStoreQueryLatency records a store query latency in milliseconds.
func RecordStoreQueryLatency(query string, latencyMs float64) {
	globalManager.storeQueryLatency.WithLabelValues(query).Observe(latencyMs)
}

// RecordStoreError counts one failed store query.
func RecordStoreError(query string) {
	globalManager.storeErrors.WithLabelValues(query).Inc()
}

// HTTP Metrics Functions.

// RecordHTTPRequest increments the HTTP request counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Queue Metrics Functions.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueueRate.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeueRate.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// RecordQueueProcessingLatency records queue operation latency in milliseconds.
func RecordQueueProcessingLatency(latencyMs float64) {
	globalManager.queueProcessingLatency.Observe(latencyMs)
}

// Worker Metrics Functions.

// UpdateWorkerActiveCount sets the number of running workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// UpdateWorkerMessagesPerSecond sets the worker throughput.
func UpdateWorkerMessagesPerSecond(rate float64) {
	globalManager.workerMessagesPerSecond.Set(rate)
}

// RecordWorkerProcessingLatency records per-event persistence latency in milliseconds.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordEventPersisted increments the persisted events counter.
func RecordEventPersisted() {
	globalManager.eventsPersisted.Inc()
}

// Error Metrics Functions.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records the latency of an operation that resulted in an error.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

// System Performance Metrics Functions.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
