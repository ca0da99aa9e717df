// Package metrics provides Prometheus metrics for the progress service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Reporting facade
	reportsTotal      *prometheus.CounterVec
	experienceGained  prometheus.Counter
	levelUps          prometheus.Counter
	currentLevel      prometheus.Gauge
	totalStars        prometheus.Gauge
	malformedResults  *prometheus.CounterVec
	reportLatency     prometheus.Histogram
	duplicateDelivery prometheus.Counter

	// Record store
	storeReadLatency  *prometheus.HistogramVec
	storeWriteLatency *prometheus.HistogramVec
	storeWriteErrors  *prometheus.CounterVec
	corruptRecords    *prometheus.CounterVec

	// Change notifier
	notificationsPublished *prometheus.CounterVec
	subscribers            prometheus.Gauge
	subscriberPanics       prometheus.Counter

	// Ingestion queue and workers
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueEnqueueErrors *prometheus.CounterVec
	workerCount        prometheus.Gauge
	workerErrors       prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpErrors          *prometheus.CounterVec
	streamClients       prometheus.Gauge

	// Process
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton used by package-level helpers

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // keeps default Go collectors out

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "levelup",
		subsystem:        "progress",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.histogramBuckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.histogramBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.reportsTotal = m.counterVec("reports_total", "Activity reports by outcome", "outcome")
	m.experienceGained = m.counter("experience_gained_total", "Experience points granted by reports")
	m.levelUps = m.counter("level_ups_total", "Levels gained across all reports")
	m.currentLevel = m.gauge("current_level", "Level of the account record after the last report")
	m.totalStars = m.gauge("total_stars", "Total stars of the account record after the last report")
	m.malformedResults = m.counterVec("malformed_results_total", "Producer fields coerced or clamped", "field")
	m.reportLatency = m.histogram("report_latency_milliseconds", "Read-fold-write-publish latency in milliseconds")
	m.duplicateDelivery = m.counter("duplicate_deliveries_total", "Asynchronous deliveries dropped as duplicates")

	m.storeReadLatency = m.histogramVec("store_read_latency_milliseconds", "Record read latency in milliseconds", "backend")
	m.storeWriteLatency = m.histogramVec("store_write_latency_milliseconds", "Record write latency in milliseconds", "backend")
	m.storeWriteErrors = m.counterVec("store_write_errors_total", "Record writes that failed to persist", "backend")
	m.corruptRecords = m.counterVec("corrupt_records_total", "Stored records replaced by defaults on read", "backend")

	m.notificationsPublished = m.counterVec("notifications_published_total", "Change notifications published by origin", "origin")
	m.subscribers = m.gauge("subscribers", "Current number of change subscribers")
	m.subscriberPanics = m.counter("subscriber_panics_total", "Subscriber callbacks that panicked")

	m.queueSize = m.gauge("queue_size", "Current number of queued reports")
	m.queueCapacity = m.gauge("queue_capacity", "Capacity of the report queue")
	m.queueEnqueued = m.counter("queue_enqueued_total", "Reports accepted by the queue")
	m.queueEnqueueErrors = m.counterVec("queue_enqueue_errors_total", "Reports rejected by the queue", "reason")
	m.workerCount = m.gauge("worker_count", "Number of report workers")
	m.workerErrors = m.counter("worker_errors_total", "Reports that failed inside a worker")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	m.httpErrors = m.counterVec("http_errors_total", "HTTP error responses by endpoint and error type", "endpoint", "error_type")
	m.streamClients = m.gauge("stream_clients", "Open progress stream connections")

	m.systemMemoryUsage = m.gauge("system_memory_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutines", "Number of goroutines")
}

// RecordReport counts a report by outcome: ok, persist_failed, rejected.
func RecordReport(outcome string) { globalManager.reportsTotal.WithLabelValues(outcome).Inc() }

// RecordProgress records what a successful report did to the account.
func RecordProgress(experience, levels, level, stars int) {
	globalManager.experienceGained.Add(float64(experience))
	globalManager.levelUps.Add(float64(levels))
	globalManager.currentLevel.Set(float64(level))
	globalManager.totalStars.Set(float64(stars))
}

// RecordMalformedField counts a coerced or clamped producer field.
func RecordMalformedField(field string) { globalManager.malformedResults.WithLabelValues(field).Inc() }

// RecordReportLatency observes the full report latency.
func RecordReportLatency(ms float64) { globalManager.reportLatency.Observe(ms) }

// RecordDuplicateDelivery counts a delivery dropped by the dedupe cache.
func RecordDuplicateDelivery() { globalManager.duplicateDelivery.Inc() }

// RecordStoreRead observes a read on the given backend.
func RecordStoreRead(backend string, ms float64) {
	globalManager.storeReadLatency.WithLabelValues(backend).Observe(ms)
}

// RecordStoreWrite observes a write on the given backend.
func RecordStoreWrite(backend string, ms float64) {
	globalManager.storeWriteLatency.WithLabelValues(backend).Observe(ms)
}

// RecordStoreWriteError counts a failed write.
func RecordStoreWriteError(backend string) { globalManager.storeWriteErrors.WithLabelValues(backend).Inc() }

// RecordCorruptRecord counts a stored record healed to defaults.
func RecordCorruptRecord(backend string) { globalManager.corruptRecords.WithLabelValues(backend).Inc() }

// RecordNotification counts a publish. origin is local or external.
func RecordNotification(origin string) {
	globalManager.notificationsPublished.WithLabelValues(origin).Inc()
}

// UpdateSubscribers sets the subscriber gauge.
func UpdateSubscribers(n int) { globalManager.subscribers.Set(float64(n)) }

// RecordSubscriberPanic counts a recovered subscriber panic.
func RecordSubscriberPanic() { globalManager.subscriberPanics.Inc() }

// UpdateQueueSize sets the queue size gauge.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the queue capacity gauge.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// RecordQueueEnqueue counts an accepted report.
func RecordQueueEnqueue() { globalManager.queueEnqueued.Inc() }

// RecordQueueEnqueueError counts a rejected report.
func RecordQueueEnqueueError(reason string) {
	globalManager.queueEnqueueErrors.WithLabelValues(reason).Inc()
}

// UpdateWorkerCount sets the worker gauge.
func UpdateWorkerCount(count int) { globalManager.workerCount.Set(float64(count)) }

// RecordWorkerError counts a report that failed inside a worker.
func RecordWorkerError() { globalManager.workerErrors.Inc() }

// RecordHTTPRequest counts an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration observes an HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, ms float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(ms)
}

// RecordHTTPError counts an error response.
func RecordHTTPError(endpoint, errorType string) {
	globalManager.httpErrors.WithLabelValues(endpoint, errorType).Inc()
}

// AddStreamClients moves the open stream gauge by delta.
func AddStreamClients(delta int) { globalManager.streamClients.Add(float64(delta)) }

// UpdateSystemMemoryUsage sets the heap gauge.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the goroutine gauge.
func UpdateSystemGoroutineCount(count int) { globalManager.systemGoroutineCount.Set(float64(count)) }

// GetRegistry returns the registry backing the package-level helpers.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
