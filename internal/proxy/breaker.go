package proxy

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/virtend/virtend/internal/ajax"
	"github.com/virtend/virtend/internal/observability"
	"github.com/virtend/virtend/internal/util"
)

// Sentinel errors for circuit breaker rejections.
var (
	// ErrCircuitOpen is returned when the circuit breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrTooManyRequests is returned when the half-open probe budget is
	// exhausted.
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// Breaker tuning defaults.
const (
	defaultBreakerName         = "proxy"
	defaultBreakerMaxRequests  = 1
	defaultBreakerTimeout      = 30 * time.Second
	defaultBreakerFailureRatio = 0.5
	defaultBreakerMinRequests  = 5
)

// BreakerConfig tunes the circuit breaker decorator. The zero value gets
// sensible defaults.
type BreakerConfig struct {
	// Name labels the breaker in logs and metrics.
	Name string

	// MaxRequests is the number of probe requests allowed while half-open.
	MaxRequests uint32

	// Interval is the closed-state window after which counters reset.
	Interval time.Duration

	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration

	// FailureRatio is the failure fraction that trips the breaker once
	// MinRequests have been observed.
	FailureRatio float64

	// MinRequests is the minimum sample size before the ratio applies.
	MinRequests uint32

	// Logger receives state-change and rejection logs.
	Logger observability.Logger
}

func (c *BreakerConfig) applyDefaults() {
	if c.Name == "" {
		c.Name = defaultBreakerName
	}
	if c.MaxRequests == 0 {
		c.MaxRequests = defaultBreakerMaxRequests
	}
	if c.Timeout == 0 {
		c.Timeout = defaultBreakerTimeout
	}
	if c.FailureRatio == 0 {
		c.FailureRatio = defaultBreakerFailureRatio
	}
	if c.MinRequests == 0 {
		c.MinRequests = defaultBreakerMinRequests
	}
	if c.Logger == nil {
		c.Logger = observability.NopLogger()
	}
}

// WithBreaker wraps a proxy function with circuit breaker protection.
// Transport failures and server error statuses count against the breaker;
// client error statuses (4xx) mean the upstream answered and count as
// successes. While the breaker is open, calls fail fast with
// ErrCircuitOpen without touching the network.
func WithBreaker(fn ajax.ProxyFunc, cfg BreakerConfig) ajax.ProxyFunc {
	cfg.applyDefaults()

	tracer := otel.Tracer(proxyTracerName)

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= cfg.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || util.IsClientError(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			cfg.Logger.Info("circuit breaker state change",
				observability.String("name", name),
				observability.String("from", from.String()),
				observability.String("to", to.String()),
			)

			m := GetProxyMetrics()
			m.breakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
			m.breakerState.WithLabelValues(name).Set(float64(to))

			// Record an OTEL span event for the state transition so it
			// appears in distributed traces that trigger the change.
			_, span := tracer.Start(context.Background(),
				"proxy.breaker_state_change",
				trace.WithSpanKind(trace.SpanKindInternal),
			)
			span.AddEvent("state_change", trace.WithAttributes(
				attribute.String("breaker.name", name),
				attribute.String("breaker.from", from.String()),
				attribute.String("breaker.to", to.String()),
			))
			span.End()
		},
	}

	cb := gobreaker.NewCircuitBreaker(settings)
	GetProxyMetrics().breakerState.WithLabelValues(cfg.Name).Set(float64(gobreaker.StateClosed))

	return func(ctx context.Context, req *ajax.Request) (*ajax.Response, error) {
		out, err := cb.Execute(func() (any, error) {
			return fn(ctx, req)
		})
		if err != nil {
			switch {
			case errors.Is(err, gobreaker.ErrOpenState):
				cfg.Logger.Warn("circuit breaker rejected request",
					observability.String("name", cfg.Name),
					observability.String("url", req.URL),
				)
				return nil, ErrCircuitOpen
			case errors.Is(err, gobreaker.ErrTooManyRequests):
				return nil, ErrTooManyRequests
			}
			return nil, err
		}

		resp, _ := out.(*ajax.Response)
		return resp, nil
	}
}
