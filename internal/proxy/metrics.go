package proxy

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Proxy error classes for the errors_total metric.
const (
	errorTypeTransport = "transport"
	errorTypeTimeout   = "timeout"
	errorTypeStatus    = "status"
)

// ProxyMetrics holds Prometheus metrics for outbound proxy traffic.
type ProxyMetrics struct {
	requestsTotal      *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	errorsTotal        *prometheus.CounterVec
	retriesTotal       prometheus.Counter
	breakerState       *prometheus.GaugeVec
	breakerTransitions *prometheus.CounterVec
}

var (
	proxyMetricsInstance *ProxyMetrics
	proxyMetricsOnce     sync.Once
)

// GetProxyMetrics returns the singleton proxy metrics instance.
func GetProxyMetrics() *ProxyMetrics {
	proxyMetricsOnce.Do(func() {
		proxyMetricsInstance = newProxyMetrics()
	})
	return proxyMetricsInstance
}

// MustRegister registers all proxy metric collectors with the given
// Prometheus registry. promauto registers metrics with the default
// global registry, but the admin API serves /metrics from a custom
// registry; calling MustRegister bridges the two.
func (m *ProxyMetrics) MustRegister(registry *prometheus.Registry) {
	registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.errorsTotal,
		m.retriesTotal,
		m.breakerState,
		m.breakerTransitions,
	)
}

// Init pre-initializes common label combinations with zero values so
// that metrics appear in /metrics output immediately after startup.
// Prometheus *Vec types only emit metric lines after WithLabelValues()
// is called at least once. Idempotent.
func (m *ProxyMetrics) Init() {
	for _, method := range []string{"GET", "POST", "PUT", "DELETE"} {
		m.requestDuration.WithLabelValues(method)
		m.requestsTotal.WithLabelValues(method, "2xx")
	}
	for _, et := range []string{errorTypeTransport, errorTypeTimeout, errorTypeStatus} {
		m.errorsTotal.WithLabelValues(et)
	}
}

func newProxyMetrics() *ProxyMetrics {
	return &ProxyMetrics{
		requestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "virtend",
				Subsystem: "proxy",
				Name:      "requests_total",
				Help:      "Total number of outbound proxy requests by status class",
			},
			[]string{"method", "class"},
		),
		requestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "virtend",
				Subsystem: "proxy",
				Name:      "request_duration_seconds",
				Help:      "Duration of outbound proxy requests",
				Buckets: []float64{
					.001, .005, .01, .025,
					.05, .1, .25, .5,
					1, 2.5, 5, 10,
				},
			},
			[]string{"method"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "virtend",
				Subsystem: "proxy",
				Name:      "errors_total",
				Help:      "Total number of outbound proxy errors",
			},
			[]string{"error_type"},
		),
		retriesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "virtend",
				Subsystem: "proxy",
				Name:      "retries_total",
				Help:      "Total number of proxy request retry attempts",
			},
		),
		breakerState: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "virtend",
				Subsystem: "proxy",
				Name:      "breaker_state",
				Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"name"},
		),
		breakerTransitions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "virtend",
				Subsystem: "proxy",
				Name:      "breaker_transitions_total",
				Help:      "Total number of circuit breaker state transitions",
			},
			[]string{"name", "from", "to"},
		),
	}
}
