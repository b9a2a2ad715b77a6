// Package metrics provides Prometheus metrics for the lingoquest achievement notifier.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Detection cycle outcomes used as the "outcome" label.
const (
	OutcomeSeeded    = "seeded"
	OutcomeNoChange  = "no_change"
	OutcomeDetected  = "detected"
	OutcomeNoSession = "no_session"
	OutcomeFailed    = "failed"
)

// Manager manages all Prometheus metrics for the notifier.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Detection Metrics
	detectionCycles      *prometheus.CounterVec
	detectionLatency     prometheus.Histogram
	achievementsDetected prometheus.Counter
	knownSetSize         prometheus.Gauge
	unseenCount          prometheus.Gauge

	// Enrichment Metrics
	enrichmentLatency  prometheus.Histogram
	enrichmentFailures prometheus.Counter
	enrichmentDropped  prometheus.Counter
	workerActiveCount  prometheus.Gauge

	// Display Metrics
	popupsShown    prometheus.Counter
	schedulerState prometheus.Gauge

	// Queue Metrics, labelled by queue name
	queueSize          *prometheus.GaugeVec
	queueCapacity      *prometheus.GaugeVec
	queueEnqueueRate   *prometheus.CounterVec
	queueDequeueRate   *prometheus.CounterVec
	queueEnqueueErrors *prometheus.CounterVec

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error Metrics
	errorRateByComponent *prometheus.CounterVec

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
		namespace:        "lingoquest",
		subsystem:        "achievements",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// RefreshInterval returns how often process gauges should be sampled.
func (m *Manager) RefreshInterval() time.Duration { return m.refreshInterval }

// RefreshInterval returns the sampling interval of the global manager.
func RefreshInterval() time.Duration { return globalManager.RefreshInterval() }

// SetRefreshInterval applies WithRefreshInterval to the global manager. Call
// it before the sampler starts.
func SetRefreshInterval(interval time.Duration) {
	WithRefreshInterval(interval)(globalManager)
}

func (m *Manager) name(base string) string {
	if m.metricPrefix == "" {
		return base
	}
	return m.metricPrefix + "_" + base
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)
	constLabels := prometheus.Labels(m.customLabels)

	m.detectionCycles = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("detection_cycles_total"),
		Help:        "Detection cycles by outcome",
		ConstLabels: constLabels,
	}, []string{"outcome"})

	m.detectionLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("detection_latency_milliseconds"),
		Help:        "Duration of a detection cycle in milliseconds, list fetch included",
		Buckets:     m.histogramBuckets,
		ConstLabels: constLabels,
	})

	m.achievementsDetected = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("detected_total"),
		Help:        "Achievements detected as newly unlocked",
		ConstLabels: constLabels,
	})

	m.knownSetSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("known_set_size"),
		Help:        "Number of achievement ids already accounted for in this session",
		ConstLabels: constLabels,
	})

	m.unseenCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("unseen_count"),
		Help:        "Number of detected achievements not yet acknowledged",
		ConstLabels: constLabels,
	})

	m.enrichmentLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("enrichment_latency_milliseconds"),
		Help:        "Achievement detail fetch latency in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: constLabels,
	})

	m.enrichmentFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("enrichment_failures_total"),
		Help:        "Achievement detail fetches that failed; the popup is dropped",
		ConstLabels: constLabels,
	})

	m.enrichmentDropped = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("enrichment_dropped_total"),
		Help:        "Enriched achievements dropped because the pending queue rejected them",
		ConstLabels: constLabels,
	})

	m.workerActiveCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("worker_active_count"),
		Help:        "Number of enrichment workers",
		ConstLabels: constLabels,
	})

	m.popupsShown = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("popups_shown_total"),
		Help:        "Achievement popups published to observers",
		ConstLabels: constLabels,
	})

	m.schedulerState = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("scheduler_state"),
		Help:        "Display scheduler state (0 idle, 1 showing, 2 cooldown)",
		ConstLabels: constLabels,
	})

	m.queueSize = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("queue_size"),
		Help:        "Current number of queued items",
		ConstLabels: constLabels,
	}, []string{"queue"})

	m.queueCapacity = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("queue_capacity"),
		Help:        "Maximum queue capacity",
		ConstLabels: constLabels,
	}, []string{"queue"})

	m.queueEnqueueRate = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("queue_enqueue_total"),
		Help:        "Total number of items enqueued",
		ConstLabels: constLabels,
	}, []string{"queue"})

	m.queueDequeueRate = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("queue_dequeue_total"),
		Help:        "Total number of items dequeued",
		ConstLabels: constLabels,
	}, []string{"queue"})

	m.queueEnqueueErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("queue_enqueue_errors_total"),
		Help:        "Total number of rejected enqueues by reason",
		ConstLabels: constLabels,
	}, []string{"queue", "reason"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("http_requests_total"),
		Help:        "Total number of HTTP requests by endpoint and method",
		ConstLabels: constLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("http_request_duration_milliseconds"),
		Help:        "HTTP request duration in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: constLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.errorRateByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("errors_by_component_total"),
		Help:        "Total number of errors by component",
		ConstLabels: constLabels,
	}, []string{"component", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("system_memory_usage_bytes"),
		Help:        "System memory usage in bytes",
		ConstLabels: constLabels,
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("system_goroutine_count"),
		Help:        "Number of goroutines",
		ConstLabels: constLabels,
	})

	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("system_gc_pause_time_milliseconds"),
		Help:        "GC pause time in milliseconds",
		Buckets:     []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		ConstLabels: constLabels,
	})
}

// RecordDetectionCycle counts one detection cycle with the given outcome and duration.
func RecordDetectionCycle(outcome string, latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.detectionCycles.WithLabelValues(outcome).Inc()
	globalManager.detectionLatency.Observe(latencyMs)
}

// RecordAchievementsDetected adds n newly detected achievements.
func RecordAchievementsDetected(n int) {
	if !globalManager.enabled || n <= 0 {
		return
	}
	globalManager.achievementsDetected.Add(float64(n))
}

// UpdateKnownSetSize sets the known-set size gauge.
func UpdateKnownSetSize(size int64) {
	globalManager.knownSetSize.Set(float64(size))
}

// UpdateUnseenCount sets the unseen badge count gauge.
func UpdateUnseenCount(count int) {
	globalManager.unseenCount.Set(float64(count))
}

// RecordEnrichmentLatency records a detail fetch latency in milliseconds.
func RecordEnrichmentLatency(latencyMs float64) {
	globalManager.enrichmentLatency.Observe(latencyMs)
}

// RecordEnrichmentFailure increments the failed detail fetch counter.
func RecordEnrichmentFailure() {
	globalManager.enrichmentFailures.Inc()
}

// RecordEnrichmentDropped increments the counter of enriched items the pending queue rejected.
func RecordEnrichmentDropped() {
	globalManager.enrichmentDropped.Inc()
}

// UpdateWorkerActiveCount sets the number of enrichment workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordPopupShown increments the popups shown counter.
func RecordPopupShown() {
	globalManager.popupsShown.Inc()
}

// UpdateSchedulerState sets the scheduler state gauge.
func UpdateSchedulerState(state int) {
	globalManager.schedulerState.Set(float64(state))
}

// UpdateQueueSize sets the size of the named queue.
func UpdateQueueSize(queue string, size int) {
	globalManager.queueSize.WithLabelValues(queue).Set(float64(size))
}

// UpdateQueueCapacity sets the capacity of the named queue.
func UpdateQueueCapacity(queue string, capacity int) {
	globalManager.queueCapacity.WithLabelValues(queue).Set(float64(capacity))
}

// RecordQueueEnqueue increments the enqueue counter of the named queue.
func RecordQueueEnqueue(queue string) {
	globalManager.queueEnqueueRate.WithLabelValues(queue).Inc()
}

// RecordQueueDequeue increments the dequeue counter of the named queue.
func RecordQueueDequeue(queue string) {
	globalManager.queueDequeueRate.WithLabelValues(queue).Inc()
}

// RecordQueueEnqueueError counts a rejected enqueue on the named queue.
func RecordQueueEnqueueError(queue, reason string) {
	globalManager.queueEnqueueErrors.WithLabelValues(queue, reason).Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error by component.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage updates system memory usage.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount updates goroutine count.
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
