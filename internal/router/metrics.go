package router

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RouterMetrics holds Prometheus metrics for endpoint resolution and
// the regex compilation cache.
type RouterMetrics struct {
	endpointsGauge      prometheus.Gauge
	resolveTotal        *prometheus.CounterVec
	regexCacheHits      prometheus.Counter
	regexCacheMisses    prometheus.Counter
	regexCacheEvictions prometheus.Counter
	regexCacheSize      prometheus.Gauge
}

var (
	routerMetricsInstance *RouterMetrics
	routerMetricsOnce     sync.Once
)

// GetRouterMetrics returns the singleton router metrics instance.
func GetRouterMetrics() *RouterMetrics {
	routerMetricsOnce.Do(func() {
		routerMetricsInstance = newRouterMetrics()
	})
	return routerMetricsInstance
}

// MustRegister registers all router metric collectors with the given
// Prometheus registry. promauto registers metrics with the default
// global registry, but the admin API serves /metrics from a custom
// registry; calling MustRegister bridges the two.
func (m *RouterMetrics) MustRegister(registry *prometheus.Registry) {
	registry.MustRegister(
		m.endpointsGauge,
		m.resolveTotal,
		m.regexCacheHits,
		m.regexCacheMisses,
		m.regexCacheEvictions,
		m.regexCacheSize,
	)
}

// Init pre-initializes common label combinations with zero values so
// that metrics appear in /metrics output immediately after startup.
// Prometheus *Vec types only emit metric lines after WithLabelValues()
// is called at least once. Idempotent.
func (m *RouterMetrics) Init() {
	for _, outcome := range []string{"hit", "miss"} {
		m.resolveTotal.WithLabelValues(outcome)
	}
}

func newRouterMetrics() *RouterMetrics {
	return &RouterMetrics{
		endpointsGauge: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "virtend",
				Subsystem: "router",
				Name:      "endpoints",
				Help: "Current number of " +
					"registered endpoints",
			},
		),
		resolveTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "virtend",
				Subsystem: "router",
				Name:      "resolve_total",
				Help: "Total number of " +
					"endpoint resolutions",
			},
			[]string{"outcome"},
		),
		regexCacheHits: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "virtend",
				Subsystem: "router",
				Name:      "regex_cache_hits_total",
				Help:      "Total number of regex cache hits",
			},
		),
		regexCacheMisses: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "virtend",
				Subsystem: "router",
				Name:      "regex_cache_misses_total",
				Help:      "Total number of regex cache misses",
			},
		),
		regexCacheEvictions: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "virtend",
				Subsystem: "router",
				Name:      "regex_cache_evictions_total",
				Help:      "Total number of regex cache evictions",
			},
		),
		regexCacheSize: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "virtend",
				Subsystem: "router",
				Name:      "regex_cache_size",
				Help:      "Current number of entries in the regex cache",
			},
		),
	}
}
