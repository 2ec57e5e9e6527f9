// Package metrics provides Prometheus metrics for the ladder simulator.
package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Probe depth buckets: own tier plus both directions out to a radius of seven.
var probeDepthBuckets = []float64{1, 2, 3, 5, 7, 9, 11, 15} //nolint:gochecknoglobals // fixed histogram layout

// Manager manages all Prometheus metrics for the simulator.
type Manager struct {
	namespace       string
	subsystem       string
	latencyBuckets  []float64
	enabled         atomic.Bool
	refreshInterval time.Duration
	constLabels     map[string]string
	registry        prometheus.Registerer

	// Simulation metrics
	matchesTotal        *prometheus.CounterVec
	enqueuesTotal       *prometheus.CounterVec
	idleTicksTotal      *prometheus.CounterVec
	gateClampsTotal     *prometheus.CounterVec
	probeDepth          *prometheus.HistogramVec
	tickLatency         prometheus.Histogram
	invariantViolations *prometheus.CounterVec

	// Queue metrics
	queueSize      *prometheus.GaugeVec
	queueHighWater *prometheus.GaugeVec

	// Run metrics
	season      *prometheus.GaugeVec
	runsTotal   *prometheus.CounterVec
	runDuration *prometheus.HistogramVec

	// Worker metrics
	workerActiveCount prometheus.Gauge
	jobsQueued        prometheus.Gauge

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:       "laddersim",
		subsystem:       "engine",
		latencyBuckets:  prometheus.DefBuckets,
		refreshInterval: defaultRefreshInterval,
		registry:        prometheus.DefaultRegisterer,
	}
	m.enabled.Store(true)

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// RefreshInterval is how often background samplers should update gauges.
func (m *Manager) RefreshInterval() time.Duration { return m.refreshInterval }

// Enabled reports whether recording is on.
func (m *Manager) Enabled() bool { return m.enabled.Load() }

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gaugeVec(name, help string, labels ...string) *prometheus.GaugeVec {
	return promauto.With(m.registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}, labels)
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

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	m.matchesTotal = m.counterVec("matches_total", "Total number of resolved matches", "policy")
	m.enqueuesTotal = m.counterVec("enqueues_total", "Total number of arrivals that found no opponent and were queued", "policy")
	m.idleTicksTotal = m.counterVec("idle_ticks_total", "Total number of ticks where the sampled competitor did not play", "policy", "reason")
	m.gateClampsTotal = m.counterVec("gate_clamps_total", "Total number of losses clamped at a rating gate", "policy")
	m.probeDepth = m.histogramVec("probe_depth", "Number of queues inspected per opponent lookup", probeDepthBuckets, "policy")
	m.tickLatency = m.histogram("tick_latency_microseconds", "Histogram of tick latency in microseconds",
		prometheus.ExponentialBuckets(0.5, 2, 12))
	m.invariantViolations = m.counterVec("invariant_violations_total", "Total number of runs aborted by an invariant violation", "policy")

	m.queueSize = m.gaugeVec("queue_size", "Current number of waiting competitors", "policy")
	m.queueHighWater = m.gaugeVec("queue_high_water", "Largest number of waiting competitors seen in the current run", "policy")

	m.season = m.gaugeVec("season", "Season currently being simulated", "policy")
	m.runsTotal = m.counterVec("runs_total", "Total number of simulation runs by outcome", "policy", "status")
	m.runDuration = m.histogramVec("run_duration_seconds", "Wall time of a simulation run",
		prometheus.ExponentialBuckets(0.01, 4, 10), "policy")

	m.workerActiveCount = m.gauge("worker_active_count", "Current number of workers running a simulation")
	m.jobsQueued = m.gauge("jobs_queued", "Current number of simulation jobs waiting for a worker")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method",
		"endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds",
		m.latencyBuckets, "endpoint", "method", "status_code")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Current memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Current number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "Histogram of GC pause times in milliseconds", m.latencyBuckets)
}

// Simulation Metrics Functions.

// RecordMatch increments the resolved matches counter.
func RecordMatch(policy string) {
	if globalManager.enabled.Load() {
		globalManager.matchesTotal.WithLabelValues(policy).Inc()
	}
}

// RecordEnqueue increments the enqueue counter.
func RecordEnqueue(policy string) {
	if globalManager.enabled.Load() {
		globalManager.enqueuesTotal.WithLabelValues(policy).Inc()
	}
}

// RecordIdleTick increments the idle tick counter for reason.
func RecordIdleTick(policy, reason string) {
	if globalManager.enabled.Load() {
		globalManager.idleTicksTotal.WithLabelValues(policy, reason).Inc()
	}
}

// RecordGateClamp increments the gate clamp counter.
func RecordGateClamp(policy string) {
	if globalManager.enabled.Load() {
		globalManager.gateClampsTotal.WithLabelValues(policy).Inc()
	}
}

// RecordProbeDepth records how many queues a lookup inspected.
func RecordProbeDepth(policy string, probes int) {
	if globalManager.enabled.Load() {
		globalManager.probeDepth.WithLabelValues(policy).Observe(float64(probes))
	}
}

// RecordTickLatency records tick latency in microseconds.
func RecordTickLatency(latencyUs float64) {
	if globalManager.enabled.Load() {
		globalManager.tickLatency.Observe(latencyUs)
	}
}

// RecordInvariantViolation increments the invariant violation counter.
func RecordInvariantViolation(policy string) {
	globalManager.invariantViolations.WithLabelValues(policy).Inc()
}

// Queue Metrics Functions.

// UpdateQueueSize sets the current number of waiting competitors.
func UpdateQueueSize(policy string, size int) {
	globalManager.queueSize.WithLabelValues(policy).Set(float64(size))
}

// UpdateQueueHighWater sets the high-water mark of the current run.
func UpdateQueueHighWater(policy string, size int) {
	globalManager.queueHighWater.WithLabelValues(policy).Set(float64(size))
}

// Run Metrics Functions.

// UpdateSeason sets the season being simulated.
func UpdateSeason(policy string, season int) {
	globalManager.season.WithLabelValues(policy).Set(float64(season))
}

// RecordRun increments the run counter for status and records its duration.
func RecordRun(policy, status string, d time.Duration) {
	globalManager.runsTotal.WithLabelValues(policy, status).Inc()
	globalManager.runDuration.WithLabelValues(policy).Observe(d.Seconds())
}

// Worker Metrics Functions.

// UpdateWorkerActiveCount sets the number of workers running a job.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// UpdateJobsQueued sets the number of jobs waiting for a worker.
func UpdateJobsQueued(count int) {
	globalManager.jobsQueued.Set(float64(count))
}

// HTTP Metrics Functions.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
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

// SetEnabled toggles recording of the per-tick metrics.
func SetEnabled(enabled bool) {
	globalManager.enabled.Store(enabled)
}

// Global returns the process-wide manager.
func Global() *Manager {
	return globalManager
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
