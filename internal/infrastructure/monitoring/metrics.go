package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "scraperapi"

// Module invocation outcomes.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusPanic   = "panic"
)

// Metrics holds all Prometheus metrics on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Module metrics
	ModulesLoaded    prometheus.Gauge
	ModuleCalls      *prometheus.CounterVec
	ModuleDuration   *prometheus.HistogramVec
	ModuleFailures   *prometheus.CounterVec
	DiscoveryErrors  prometheus.Counter
	DiscoverySkipped prometheus.Counter

	// System metrics
	Uptime    prometheus.GaugeFunc
	startTime time.Time

	mu       sync.RWMutex
	snapshot Snapshot
}

// Snapshot holds running totals for the JSON health endpoint.
type Snapshot struct {
	TotalRequests int64   `json:"total_requests"`
	TotalErrors   int64   `json:"total_errors"`
	ModuleCalls   int64   `json:"module_calls"`
	ModuleErrors  int64   `json:"module_errors"`
	AvgLatencyMS  float64 `json:"avg_latency_ms"`
	totalSeconds  float64
}

// NewMetrics creates a metrics collector with its own registry, including
// the Go runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		ResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_response_size_bytes",
				Help:      "HTTP response size in bytes",
				Buckets:   []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),

		ModulesLoaded: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "modules_loaded",
				Help:      "Number of API modules bound to routes",
			},
		),
		ModuleCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "module_invocations_total",
				Help:      "Total number of module invocations",
			},
			[]string{"module", "status"},
		),
		ModuleDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "module_duration_seconds",
				Help:      "Module initialize duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"module"},
		),
		ModuleFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "module_failures_total",
				Help:      "Total number of failed module invocations by error type",
			},
			[]string{"module", "error_type"},
		),
		DiscoveryErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "discovery_load_errors_total",
				Help:      "Module files that failed to load",
			},
		),
		DiscoverySkipped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "discovery_skipped_total",
				Help:      "Files skipped because they do not export a module",
			},
		),
	}
	m.Uptime = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Server uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	reg.MustRegister(
		m.RequestsTotal, m.RequestDuration, m.ResponseSize,
		m.ModulesLoaded, m.ModuleCalls, m.ModuleDuration, m.ModuleFailures,
		m.DiscoveryErrors, m.DiscoverySkipped, m.Uptime,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry, e.g. for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.totalSeconds += duration.Seconds()
	if status != "" && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordModuleCall records one module invocation.
func (m *Metrics) RecordModuleCall(module, status string, duration time.Duration) {
	m.ModuleCalls.WithLabelValues(module, status).Inc()
	m.ModuleDuration.WithLabelValues(module).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.ModuleCalls++
	if status != StatusSuccess {
		m.snapshot.ModuleErrors++
	}
	m.mu.Unlock()
}

// RecordModuleFailure records why a module invocation failed.
func (m *Metrics) RecordModuleFailure(module, errorType string) {
	m.ModuleFailures.WithLabelValues(module, errorType).Inc()
}

// SetModulesLoaded sets the number of bound modules
func (m *Metrics) SetModulesLoaded(count int) {
	m.ModulesLoaded.Set(float64(count))
}

// Snapshot returns the running totals.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.snapshot
	if s.TotalRequests > 0 {
		s.AvgLatencyMS = s.totalSeconds / float64(s.TotalRequests) * 1000
	}
	return s
}

// UptimeDuration returns the time since the collector was created.
func (m *Metrics) UptimeDuration() time.Duration {
	return time.Since(m.startTime)
}
