// Package metrics provides Prometheus metrics for the blurber announcer.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const defaultRefreshInterval = 10 * time.Second

// Manager owns every Prometheus collector exported by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Feed
	feedEvents  *prometheus.CounterVec
	feedFrames  *prometheus.CounterVec
	feedErrors  prometheus.Counter
	subscribed  prometheus.Gauge
	eventsDupes prometheus.Counter

	// Dispatch
	eventsUnrouted  prometheus.Counter
	deliveries      *prometheus.CounterVec
	dispatchLatency prometheus.Histogram
	inboxDepth      prometheus.Histogram

	// Sessions
	sessionsActive  prometheus.Gauge
	sessionsStarted prometheus.Counter
	sessionsEnded   *prometheus.CounterVec
	categories      *prometheus.CounterVec
	classifyLatency prometheus.Histogram
	playbacks       *prometheus.CounterVec
	notifications   *prometheus.CounterVec

	// Notice workers
	workersActive    prometheus.Gauge
	workerQueueDepth prometheus.Gauge
	workerLatency    prometheus.Histogram

	// Directory
	censusLookups *prometheus.CounterVec
	weaponSetSize prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorLatency         *prometheus.HistogramVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // package-level recorders

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // keeps default Go collectors out

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "blurber",
		subsystem:        "announcer",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
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
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		Buckets: buckets, ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		Buckets: m.histogramBuckets, ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	m.feedEvents = m.counterVec("feed_events_total", "Decoded events received from the upstream feed by kind", "kind")
	m.feedFrames = m.counterVec("feed_frames_total", "Raw frames received from the upstream feed by type", "type")
	m.feedErrors = m.counter("feed_errors_total", "Upstream feed decode or connection errors")
	m.subscribed = m.gauge("feed_subscribed_characters", "Characters currently subscribed on the upstream feed")
	m.eventsDupes = m.counter("events_duplicate_total", "Upstream events suppressed as duplicates")

	m.eventsUnrouted = m.counter("events_unrouted_total", "Events that matched no tracked session")
	m.deliveries = m.counterVec("deliveries_total", "Per-session event deliveries by outcome", "outcome")
	m.dispatchLatency = m.histogram("dispatch_latency_milliseconds", "Time spent fanning one event out to its sessions", m.histogramBuckets)
	m.inboxDepth = m.histogram("inbox_depth", "Session inbox depth observed after a delivery",
		[]float64{0, 1, 5, 10, 50, 100, 250, 500, 1000})

	m.sessionsActive = m.gauge("sessions_active", "Live tracking sessions")
	m.sessionsStarted = m.counter("sessions_started_total", "Tracking sessions started")
	m.sessionsEnded = m.counterVec("sessions_ended_total", "Tracking sessions ended by reason", "reason")
	m.categories = m.counterVec("categories_emitted_total", "Category labels emitted to the playback sink", "category")
	m.classifyLatency = m.histogram("classify_latency_milliseconds", "Per-event classification latency",
		[]float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5})
	m.playbacks = m.counterVec("playbacks_total", "Playback requests by outcome", "outcome")
	m.notifications = m.counterVec("notifications_total", "Session notices by kind and outcome", "kind", "outcome")

	m.workersActive = m.gauge("worker_active_count", "Notice delivery workers running")
	m.workerQueueDepth = m.gauge("worker_queue_depth", "Notices waiting for a delivery worker")
	m.workerLatency = m.histogram("worker_processing_latency_milliseconds", "Time spent delivering one notice", m.histogramBuckets)

	m.censusLookups = m.counterVec("census_lookups_total", "Directory lookups by outcome", "outcome")
	m.weaponSetSize = m.gauge("weapon_set_size", "Known weapon item ids")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Errors by component", "component", "error_type")
	m.errorRateByType = m.counterVec("errors_by_type_total", "Errors by type", "error_type", "severity")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total", "Errors by endpoint", "endpoint", "method", "error_type")
	m.errorLatency = m.histogramVec("error_latency_milliseconds", "Latency of operations that resulted in errors", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap memory in use")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "Average GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// Feed metrics.

// RecordFeedEvent counts a decoded upstream event of the given kind.
func RecordFeedEvent(kind string) { globalManager.feedEvents.WithLabelValues(kind).Inc() }

// RecordFeedFrame counts a raw upstream frame of the given type.
func RecordFeedFrame(frameType string) { globalManager.feedFrames.WithLabelValues(frameType).Inc() }

// RecordFeedError counts an upstream decode or connection error.
func RecordFeedError() { globalManager.feedErrors.Inc() }

// UpdateSubscribedCharacters sets the number of characters subscribed upstream.
func UpdateSubscribedCharacters(n int) { globalManager.subscribed.Set(float64(n)) }

// RecordEventDuplicate counts a suppressed duplicate event.
func RecordEventDuplicate() { globalManager.eventsDupes.Inc() }

// Dispatch metrics.

// RecordEventUnrouted counts an event that matched no session.
func RecordEventUnrouted() { globalManager.eventsUnrouted.Inc() }

// RecordDelivery counts a delivery attempt outcome.
func RecordDelivery(outcome string) { globalManager.deliveries.WithLabelValues(outcome).Inc() }

// RecordDispatchLatency records fan-out time for one event.
func RecordDispatchLatency(ms float64) { globalManager.dispatchLatency.Observe(ms) }

// ObserveInboxDepth records a session inbox depth.
func ObserveInboxDepth(depth int) { globalManager.inboxDepth.Observe(float64(depth)) }

// Session metrics.

// UpdateSessionsActive sets the number of live sessions.
func UpdateSessionsActive(n int) { globalManager.sessionsActive.Set(float64(n)) }

// RecordSessionStarted counts a started session.
func RecordSessionStarted() { globalManager.sessionsStarted.Inc() }

// RecordSessionEnded counts a finished session by reason.
func RecordSessionEnded(reason string) { globalManager.sessionsEnded.WithLabelValues(reason).Inc() }

// RecordCategory counts an emitted category label.
func RecordCategory(category string) { globalManager.categories.WithLabelValues(category).Inc() }

// RecordClassifyLatency records classification latency in milliseconds.
func RecordClassifyLatency(ms float64) { globalManager.classifyLatency.Observe(ms) }

// RecordPlayback counts a playback request outcome.
func RecordPlayback(outcome string) { globalManager.playbacks.WithLabelValues(outcome).Inc() }

// RecordNotification counts a session notice outcome.
func RecordNotification(kind, outcome string) {
	globalManager.notifications.WithLabelValues(kind, outcome).Inc()
}

// Worker metrics.

// UpdateWorkerActiveCount sets the number of running notice workers.
func UpdateWorkerActiveCount(n int) { globalManager.workersActive.Set(float64(n)) }

// UpdateWorkerQueueDepth sets the number of queued notices.
func UpdateWorkerQueueDepth(n int) { globalManager.workerQueueDepth.Set(float64(n)) }

// RecordWorkerProcessingLatency records one notice delivery in milliseconds.
func RecordWorkerProcessingLatency(ms float64) { globalManager.workerLatency.Observe(ms) }

// Directory metrics.

// RecordCensusLookup counts a directory lookup outcome.
func RecordCensusLookup(outcome string) { globalManager.censusLookups.WithLabelValues(outcome).Inc() }

// UpdateWeaponSetSize sets the number of known weapon ids.
func UpdateWeaponSetSize(n int) { globalManager.weaponSetSize.Set(float64(n)) }

// HTTP metrics.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Error metrics.

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

// System metrics.

// UpdateSystemMemoryUsage sets heap memory in bytes.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) { globalManager.systemGoroutineCount.Set(float64(count)) }

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) { globalManager.systemGCPauseTime.Observe(pauseMs) }

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
