// Package metrics provides Prometheus metrics for the fightlog encounter service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Engine metrics
	eventsHandled       *prometheus.CounterVec
	eventsDropped       *prometheus.CounterVec
	eventsPending       prometheus.Gauge
	eventsBuffered      prometheus.Counter
	handleLatency       prometheus.Histogram
	encountersStarted   prometheus.Counter
	encountersFinished  *prometheus.CounterVec
	encountersDiscarded *prometheus.CounterVec
	encountersActive    prometheus.Gauge
	raidsActive         prometheus.Gauge
	raidsFinished       *prometheus.CounterVec

	// Queue metrics
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors *prometheus.CounterVec

	// Persistence metrics
	recordsStored *prometheus.CounterVec
	storeErrors   *prometheus.CounterVec

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	errorsByComponent *prometheus.CounterVec

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "fightlog",
		subsystem:        "engine",
		histogramBuckets: prometheus.DefBuckets,
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
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	}, labels)
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	})
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.eventsHandled = m.counterVec("events_handled_total", "Events handed to the encounter engine, by kind", "kind")
	m.eventsDropped = m.counterVec("events_dropped_total", "Events that could not be attributed to any encounter, by reason", "reason")
	m.eventsPending = m.gauge("events_pending", "Hit/miss events held until classification resolves")
	m.eventsBuffered = m.counter("events_buffered_total", "Hit/miss events held for replay because classification was unresolved")
	m.handleLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "handle_latency_seconds",
		Help:      "Time spent inside HandleEvent",
		Buckets:   []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
	})
	m.encountersStarted = m.counter("encounters_started_total", "Encounters opened")
	m.encountersFinished = m.counterVec("encounters_finished_total", "Encounters emitted, by terminal status", "status")
	m.encountersDiscarded = m.counterVec("encounters_discarded_total", "Encounters dropped without emission, by reason", "reason")
	m.encountersActive = m.gauge("encounters_active", "Encounters currently active")
	m.raidsActive = m.gauge("raids_active", "Raid encounters currently accumulating")
	m.raidsFinished = m.counterVec("raids_finished_total", "Raid encounters emitted, by terminal status", "status")

	m.queueSize = m.gauge("queue_size", "Current size of the event queue (backlog indicator)")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum capacity of the event queue")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue utilization ratio (size / capacity)")
	m.queueEnqueued = m.counter("queue_enqueued_total", "Events placed on the queue")
	m.queueDequeued = m.counter("queue_dequeued_total", "Events taken off the queue")
	m.queueEnqueueErrors = m.counterVec("queue_enqueue_errors_total", "Rejected enqueue attempts, by reason", "reason")

	m.recordsStored = m.counterVec("records_stored_total", "Finished encounter records persisted, by store driver", "driver")
	m.storeErrors = m.counterVec("store_errors_total", "Failed persistence attempts, by store driver", "driver")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = m.counterVec("errors_total", "Errors by component and type", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutines", "Number of goroutines")
	m.systemGCPauseTime = m.gauge("system_gc_pause_milliseconds", "Average GC pause time in milliseconds")
}

// RecordEventHandled increments the handled-events counter for kind.
func RecordEventHandled(kind string) {
	globalManager.eventsHandled.WithLabelValues(kind).Inc()
}

// RecordEventDropped increments the dropped-events counter for reason.
func RecordEventDropped(reason string) {
	globalManager.eventsDropped.WithLabelValues(reason).Inc()
}

// RecordEventBuffered increments the buffered-events counter.
func RecordEventBuffered() {
	globalManager.eventsBuffered.Inc()
}

// UpdatePendingEvents sets the number of buffered unresolved events.
func UpdatePendingEvents(n int) {
	globalManager.eventsPending.Set(float64(n))
}

// RecordHandleLatency records the time spent handling one event.
func RecordHandleLatency(d time.Duration) {
	globalManager.handleLatency.Observe(d.Seconds())
}

// RecordEncounterStarted increments the started counter.
func RecordEncounterStarted() {
	globalManager.encountersStarted.Inc()
}

// RecordEncounterFinished increments the finished counter for status.
func RecordEncounterFinished(status string) {
	globalManager.encountersFinished.WithLabelValues(status).Inc()
}

// RecordEncounterDiscarded increments the discarded counter for reason.
func RecordEncounterDiscarded(reason string) {
	globalManager.encountersDiscarded.WithLabelValues(reason).Inc()
}

// UpdateActiveEncounters sets the active encounter gauge.
func UpdateActiveEncounters(n int) {
	globalManager.encountersActive.Set(float64(n))
}

// UpdateActiveRaids sets the active raid gauge.
func UpdateActiveRaids(n int) {
	globalManager.raidsActive.Set(float64(n))
}

// RecordRaidFinished increments the raid finished counter for status.
func RecordRaidFinished(status string) {
	globalManager.raidsFinished.WithLabelValues(status).Inc()
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter for reason.
func RecordQueueEnqueueError(reason string) {
	globalManager.queueEnqueueErrors.WithLabelValues(reason).Inc()
}

// RecordRecordStored increments the stored-records counter for driver.
func RecordRecordStored(driver string) {
	globalManager.recordsStored.WithLabelValues(driver).Inc()
}

// RecordStoreError increments the store error counter for driver.
func RecordStoreError(driver string) {
	globalManager.storeErrors.WithLabelValues(driver).Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the allocated heap bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine gauge.
func UpdateSystemGoroutineCount(n int) {
	globalManager.systemGoroutineCount.Set(float64(n))
}

// RecordSystemGCPauseTime sets the average GC pause.
func RecordSystemGCPauseTime(ms float64) {
	globalManager.systemGCPauseTime.Set(ms)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
