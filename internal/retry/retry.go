package retry

import (
	"context"
	"math/rand/v2"
	"time"
)

// Defaults applied when a Config field is zero or the Config pointer is
// nil.
const (
	DefaultMaxRetries     = 3
	DefaultInitialBackoff = 100 * time.Millisecond
	DefaultMaxBackoff     = 30 * time.Second
	DefaultJitterFactor   = 0.25
	MaxJitterFactor       = 1.0
)

// Config tunes Do. Partially filled (or nil) configs work: the getters
// substitute the package defaults, so callers only set what they care
// about.
type Config struct {
	// MaxRetries is how many times the call is retried after its first
	// failure.
	MaxRetries int

	// InitialBackoff is the wait before the first retry; each further
	// retry doubles it.
	InitialBackoff time.Duration

	// MaxBackoff caps the doubled wait.
	MaxBackoff time.Duration

	// JitterFactor (0..1) adds up to that fraction of random extra
	// wait, de-synchronizing competing retriers.
	JitterFactor float64
}

// DefaultConfig returns a config filled with the package defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:     DefaultMaxRetries,
		InitialBackoff: DefaultInitialBackoff,
		MaxBackoff:     DefaultMaxBackoff,
		JitterFactor:   DefaultJitterFactor,
	}
}

// GetMaxRetries returns MaxRetries, defaulted.
func (c *Config) GetMaxRetries() int {
	if c == nil || c.MaxRetries <= 0 {
		return DefaultMaxRetries
	}
	return c.MaxRetries
}

// GetInitialBackoff returns InitialBackoff, defaulted.
func (c *Config) GetInitialBackoff() time.Duration {
	if c == nil || c.InitialBackoff <= 0 {
		return DefaultInitialBackoff
	}
	return c.InitialBackoff
}

// GetMaxBackoff returns MaxBackoff, defaulted.
func (c *Config) GetMaxBackoff() time.Duration {
	if c == nil || c.MaxBackoff <= 0 {
		return DefaultMaxBackoff
	}
	return c.MaxBackoff
}

// GetJitterFactor returns JitterFactor, defaulted and clamped to
// MaxJitterFactor.
func (c *Config) GetJitterFactor() float64 {
	if c == nil || c.JitterFactor <= 0 {
		return DefaultJitterFactor
	}
	return min(c.JitterFactor, MaxJitterFactor)
}

// Func is the operation under retry.
type Func func() error

// ShouldRetryFunc reports whether a failure is worth another attempt.
type ShouldRetryFunc func(error) bool

// OnRetryFunc observes each upcoming retry: the attempt number
// (starting at 1), the failure that caused it, and the wait before it.
type OnRetryFunc func(attempt int, err error, backoff time.Duration)

// Option adjusts Do beyond the timing config.
type Option func(*options)

type options struct {
	shouldRetry ShouldRetryFunc
	onRetry     OnRetryFunc
}

// WithShouldRetry limits retries to failures the predicate accepts;
// anything else returns immediately. Without it every failure retries.
func WithShouldRetry(fn ShouldRetryFunc) Option {
	return func(o *options) { o.shouldRetry = fn }
}

// WithOnRetry observes retries, typically for logging or metrics.
func WithOnRetry(fn OnRetryFunc) Option {
	return func(o *options) { o.onRetry = fn }
}

// Do calls fn until it succeeds, the retry budget runs out, the
// predicate turns the failure down, or ctx ends. The context is also
// honored mid-backoff, so a canceled caller never waits out a sleep.
func Do(ctx context.Context, cfg *Config, fn Func, opts ...Option) error {
	var o options
	for _, apply := range opts {
		apply(&o)
	}

	budget := cfg.GetMaxRetries()

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn()
		if err == nil {
			return nil
		}
		if attempt == budget {
			return err
		}
		if o.shouldRetry != nil && !o.shouldRetry(err) {
			return err
		}

		wait := CalculateBackoff(attempt, cfg.GetInitialBackoff(), cfg.GetMaxBackoff(), cfg.GetJitterFactor())
		if o.onRetry != nil {
			o.onRetry(attempt+1, err, wait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// CalculateBackoff returns the wait before the retry that follows
// attempt (0-based): the initial backoff doubled per attempt, plus up
// to jitterFactor of random extra, capped at maxBackoff.
func CalculateBackoff(attempt int, initialBackoff, maxBackoff time.Duration, jitterFactor float64) time.Duration {
	wait := initialBackoff
	for i := 0; i < attempt && wait < maxBackoff; i++ {
		wait *= 2
	}
	if jitterFactor > 0 {
		// Timing jitter, not security.
		//nolint:gosec
		wait += time.Duration(float64(wait) * jitterFactor * rand.Float64())
	}
	return min(wait, maxBackoff)
}
