package cache

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// CacheMetrics is the process-wide collector set for cache backends,
// labelled by backend and, where it matters, by operation.
type CacheMetrics struct {
	hits      *prometheus.CounterVec
	misses    *prometheus.CounterVec
	evictions *prometheus.CounterVec
	entries   *prometheus.GaugeVec
	opSeconds *prometheus.HistogramVec
	failures  *prometheus.CounterVec
}

var (
	cacheMetricsInstance *CacheMetrics
	cacheMetricsOnce     sync.Once
)

// GetCacheMetrics returns the singleton collector set. promauto ties
// the collectors to the default registry on first use.
func GetCacheMetrics() *CacheMetrics {
	cacheMetricsOnce.Do(func() {
		cacheMetricsInstance = newCacheMetrics()
	})
	return cacheMetricsInstance
}

// MustRegister adds the collectors to registry. The admin surface
// serves /metrics from its own registry rather than the promauto
// default, so it bridges the collectors across with this.
func (m *CacheMetrics) MustRegister(registry *prometheus.Registry) {
	registry.MustRegister(
		m.hits,
		m.misses,
		m.evictions,
		m.entries,
		m.opSeconds,
		m.failures,
	)
}

// Init touches every expected label combination so the series exist in
// the exposition before the first real observation. Idempotent.
func (m *CacheMetrics) Init() {
	for _, backend := range []string{"memory", "redis"} {
		m.hits.WithLabelValues(backend)
		m.misses.WithLabelValues(backend)
		m.evictions.WithLabelValues(backend)
		m.entries.WithLabelValues(backend)
		for _, op := range []string{"get", "set", "delete", "exists", "flush"} {
			m.opSeconds.WithLabelValues(backend, op)
			m.failures.WithLabelValues(backend, op)
		}
	}
}

func newCacheMetrics() *CacheMetrics {
	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "virtend",
			Subsystem: "cache",
			Name:      name,
			Help:      help,
		}, labels)
	}

	return &CacheMetrics{
		hits:      counter("hits_total", "Cache lookups answered from the store", "backend"),
		misses:    counter("misses_total", "Cache lookups the store could not answer", "backend"),
		evictions: counter("evictions_total", "Entries evicted by capacity or expiry", "backend"),
		failures:  counter("errors_total", "Cache operations that failed", "backend", "operation"),
		entries: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "virtend",
			Subsystem: "cache",
			Name:      "size",
			Help:      "Entries currently held by the store",
		}, []string{"backend"}),
		opSeconds: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "virtend",
			Subsystem: "cache",
			Name:      "operation_duration_seconds",
			Help:      "Latency of store operations",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1},
		}, []string{"backend", "operation"}),
	}
}
