package dispatch

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Dispatch item outcomes.
const (
	outcomeIntercepted = "intercepted"
	outcomeCacheHit    = "cache_hit"
	outcomeProxied     = "proxied"
	outcomePassthrough = "passthrough"
	outcomeRejected    = "rejected"
)

// DispatchMetrics holds Prometheus metrics for dispatch operations.
type DispatchMetrics struct {
	outcomesTotal    *prometheus.CounterVec
	dispatchDuration prometheus.Histogram
	batchSize        prometheus.Histogram
	panicsRecovered  prometheus.Counter
}

var (
	dispatchMetricsInstance *DispatchMetrics
	dispatchMetricsOnce     sync.Once
)

// GetDispatchMetrics returns the singleton dispatch metrics instance.
func GetDispatchMetrics() *DispatchMetrics {
	dispatchMetricsOnce.Do(func() {
		dispatchMetricsInstance = newDispatchMetrics()
	})
	return dispatchMetricsInstance
}

// MustRegister registers all dispatch metric collectors with the given
// Prometheus registry. promauto registers metrics with the default
// global registry, but the admin API serves /metrics from a custom
// registry; calling MustRegister bridges the two.
func (m *DispatchMetrics) MustRegister(registry *prometheus.Registry) {
	registry.MustRegister(
		m.outcomesTotal,
		m.dispatchDuration,
		m.batchSize,
		m.panicsRecovered,
	)
}

// Init pre-initializes common label combinations with zero values so
// that metrics appear in /metrics output immediately after startup.
// Prometheus *Vec types only emit metric lines after WithLabelValues()
// is called at least once. Idempotent.
func (m *DispatchMetrics) Init() {
	for _, outcome := range []string{
		outcomeIntercepted,
		outcomeCacheHit,
		outcomeProxied,
		outcomePassthrough,
		outcomeRejected,
	} {
		m.outcomesTotal.WithLabelValues(outcome)
	}
}

func newDispatchMetrics() *DispatchMetrics {
	return &DispatchMetrics{
		outcomesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "virtend",
				Subsystem: "dispatch",
				Name:      "outcomes_total",
				Help:      "Total number of dispatched items by outcome",
			},
			[]string{"outcome"},
		),
		dispatchDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "virtend",
				Subsystem: "dispatch",
				Name:      "duration_seconds",
				Help:      "Duration of dispatch batches",
				Buckets:   prometheus.DefBuckets,
			},
		),
		batchSize: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "virtend",
				Subsystem: "dispatch",
				Name:      "batch_size",
				Help:      "Number of items per dispatch batch",
				Buckets:   []float64{1, 2, 5, 10, 25, 50, 100},
			},
		),
		panicsRecovered: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "virtend",
				Subsystem: "dispatch",
				Name:      "handler_panics_total",
				Help:      "Total number of panics recovered from handlers",
			},
		),
	}
}
