package virtend

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/virtend/virtend/internal/ajax"
	"github.com/virtend/virtend/internal/cache"
	"github.com/virtend/virtend/internal/config"
	"github.com/virtend/virtend/internal/dispatch"
	"github.com/virtend/virtend/internal/observability"
	"github.com/virtend/virtend/internal/proxy"
	"github.com/virtend/virtend/internal/retry"
	"github.com/virtend/virtend/internal/router"
)

// Interceptor lifecycle states.
const (
	stateActive int32 = iota
	stateDestroyed
)

// destroyShutdownTimeout bounds tracer flushing during Destroy.
const destroyShutdownTimeout = 5 * time.Second

// Interceptor owns a set of virtual endpoints and the dispatch machinery
// that answers requests from them, the response cache, or the network.
// All methods are safe for concurrent use.
type Interceptor struct {
	logger   observability.Logger
	tracer   *observability.Tracer
	registry *router.Registry
	cache    *cache.ResponseCache
	engine   *dispatch.Engine
	now      func() time.Time

	state atomic.Int32

	mu          sync.Mutex
	intercepted map[*http.Client]http.RoundTripper
	watchers    []*config.Watcher

	fixtureMu sync.Mutex
	fixtures  []*router.Endpoint
}

// settings collects option values before components are built.
type settings struct {
	logger       observability.Logger
	tracerCfg    *observability.TracerConfig
	proxyFn      ajax.ProxyFunc
	httpClient   *http.Client
	baseURL      string
	proxyTimeout time.Duration
	store        cache.Store
	cacheCfg     *config.CacheConfig
	cacheTTL     time.Duration
	comparator   ajax.Comparator
	aggregator   ajax.Aggregator
	breaker      *proxy.BreakerConfig
	limit        rate.Limit
	burst        int
	limited      bool
	retryCfg     *retry.Config
	now          func() time.Time
}

// Option configures an Interceptor.
type Option func(*settings)

// WithLogger sets the structured logger. The default discards
// everything.
func WithLogger(logger Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithProxy routes requests nothing intercepts through fn instead of the
// built-in HTTP proxy. Resilience options (WithRetry, WithBreaker,
// WithRateLimit) still wrap it; WithHTTPClient, WithBaseURL, and
// WithProxyTimeout shape only the built-in proxy and are ignored.
func WithProxy(fn ProxyFunc) Option {
	return func(s *settings) {
		s.proxyFn = fn
	}
}

// WithHTTPClient sets the *http.Client the built-in proxy dispatches on.
func WithHTTPClient(c *http.Client) Option {
	return func(s *settings) {
		s.httpClient = c
	}
}

// WithBaseURL resolves relative request URLs against base when proxying.
// Without it, proxying a relative URL fails.
func WithBaseURL(base string) Option {
	return func(s *settings) {
		s.baseURL = base
	}
}

// WithProxyTimeout bounds each proxied request on top of the caller's
// context.
func WithProxyTimeout(d time.Duration) Option {
	return func(s *settings) {
		s.proxyTimeout = d
	}
}

// WithCache uses store as the response-cache backend. Destroy closes it.
func WithCache(store Store) Option {
	return func(s *settings) {
		s.store = store
	}
}

// WithCacheConfig builds the response-cache backend from cfg: the memory
// LRU backend, redis, or a disabled store. Ignored when WithCache
// supplies a backend directly.
func WithCacheConfig(cfg *CacheConfig) Option {
	return func(s *settings) {
		s.cacheCfg = cfg
	}
}

// WithCacheTTL bounds how long cached responses answer. Zero falls back
// to the cache config's TTL, or no expiry.
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *settings) {
		s.cacheTTL = ttl
	}
}

// WithComparator sets the default cache comparator. The default is
// payload equality.
func WithComparator(cmp Comparator) Option {
	return func(s *settings) {
		s.comparator = cmp
	}
}

// WithAggregator sets the default batch aggregator. The default is
// AllSettled.
func WithAggregator(agg Aggregator) Option {
	return func(s *settings) {
		s.aggregator = agg
	}
}

// WithBreaker wraps the proxy in a circuit breaker so repeated transport
// failures fail fast instead of hammering a dead upstream.
func WithBreaker(cfg BreakerConfig) Option {
	return func(s *settings) {
		s.breaker = &cfg
	}
}

// WithRateLimit wraps the proxy in a token-bucket rate limiter admitting
// limit requests per second with the given burst.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(s *settings) {
		s.limit = limit
		s.burst = burst
		s.limited = true
	}
}

// WithRetry wraps the proxy with bounded retries for idempotent requests
// that failed on transport errors or gateway statuses.
func WithRetry(cfg *RetryConfig) Option {
	return func(s *settings) {
		s.retryCfg = cfg
	}
}

// WithTracer enables OpenTelemetry tracing per cfg. Destroy flushes the
// exporter.
func WithTracer(cfg TracerConfig) Option {
	return func(s *settings) {
		s.tracerCfg = &cfg
	}
}

// WithClock sets the time source used for registration timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

// New builds an interceptor. Without options it keeps an in-memory
// response cache and proxies over http.DefaultClient.
func New(opts ...Option) (*Interceptor, error) {
	s := &settings{
		logger: observability.NopLogger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	in := &Interceptor{
		logger: s.logger,
		now:    s.now,
	}

	if s.tracerCfg != nil {
		tracer, err := observability.NewTracer(*s.tracerCfg)
		if err != nil {
			return nil, fmt.Errorf("build tracer: %w", err)
		}
		in.tracer = tracer
	}

	store, ttl, err := buildStore(s)
	if err != nil {
		return nil, err
	}
	in.cache = cache.NewResponseCache(store, ttl, s.logger)

	proxyFn, err := buildProxy(s)
	if err != nil {
		return nil, err
	}

	in.registry = router.New(s.logger)

	engineOpts := []dispatch.Option{
		dispatch.WithLogger(s.logger),
		dispatch.WithRegistry(in.registry),
		dispatch.WithCache(in.cache),
		dispatch.WithProxy(proxyFn),
	}
	if s.aggregator != nil {
		engineOpts = append(engineOpts, dispatch.WithAggregator(s.aggregator))
	}
	if s.comparator != nil {
		engineOpts = append(engineOpts, dispatch.WithComparator(s.comparator))
	}
	in.engine = dispatch.New(engineOpts...)

	return in, nil
}

// buildStore resolves the response-cache backend and TTL from the
// options: an explicit store wins over a config-built one, and an
// explicit TTL wins over the config's.
func buildStore(s *settings) (cache.Store, time.Duration, error) {
	if s.store != nil {
		return s.store, s.cacheTTL, nil
	}

	cfg := s.cacheCfg
	if cfg == nil {
		cfg = config.DefaultCacheConfig()
	}

	ttl := s.cacheTTL
	if ttl == 0 {
		ttl = cfg.TTL.Duration()
	}

	store, err := cache.New(cfg, s.logger)
	if err != nil {
		return nil, 0, fmt.Errorf("build cache store: %w", err)
	}
	return store, ttl, nil
}

// buildProxy assembles the proxy chain: the base function (custom or
// built-in HTTP) wrapped by retry, breaker, and rate limiter, innermost
// first.
func buildProxy(s *settings) (ajax.ProxyFunc, error) {
	fn := s.proxyFn
	if fn == nil {
		popts := []proxy.Option{proxy.WithLogger(s.logger)}
		if s.httpClient != nil {
			popts = append(popts, proxy.WithClient(s.httpClient))
		}
		if s.baseURL != "" {
			popts = append(popts, proxy.WithBaseURL(s.baseURL))
		}
		if s.proxyTimeout > 0 {
			popts = append(popts, proxy.WithTimeout(s.proxyTimeout))
		}

		built, err := proxy.New(popts...)
		if err != nil {
			return nil, fmt.Errorf("build proxy: %w", err)
		}
		fn = built
	}

	if s.retryCfg != nil {
		fn = proxy.WithRetry(fn, s.retryCfg)
	}
	if s.breaker != nil {
		cfg := *s.breaker
		if cfg.Logger == nil {
			cfg.Logger = s.logger
		}
		fn = proxy.WithBreaker(fn, cfg)
	}
	if s.limited {
		fn = proxy.WithRateLimit(fn, s.limit, s.burst)
	}
	return fn, nil
}

// Destroyed reports whether Destroy has run.
func (i *Interceptor) Destroyed() bool {
	return i.state.Load() == stateDestroyed
}

// Destroy tears the interceptor down: fixture watchers stop, every
// registration is removed, interception switches off, clients taken over
// by InterceptClient get their original transports back, the cache store
// closes, and the tracer flushes. Idempotent. A destroyed interceptor
// still dispatches; requests go straight to cache and proxy without
// consulting the registry.
func (i *Interceptor) Destroy() {
	if !i.state.CompareAndSwap(stateActive, stateDestroyed) {
		return
	}

	i.engine.SetIntercepting(false)

	i.mu.Lock()
	watchers := i.watchers
	i.watchers = nil
	intercepted := i.intercepted
	i.intercepted = nil
	i.mu.Unlock()

	for _, w := range watchers {
		if err := w.Stop(); err != nil {
			i.logger.Warn("failed to stop fixture watcher",
				observability.Error(err))
		}
	}

	removed := i.registry.Clear()

	i.fixtureMu.Lock()
	i.fixtures = nil
	i.fixtureMu.Unlock()

	for c, transport := range intercepted {
		c.Transport = transport
	}

	if err := i.cache.Close(); err != nil {
		i.logger.Warn("failed to close cache store",
			observability.Error(err))
	}

	if i.tracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), destroyShutdownTimeout)
		defer cancel()
		if err := i.tracer.Shutdown(ctx); err != nil {
			i.logger.Warn("failed to shut down tracer",
				observability.Error(err))
		}
	}

	i.logger.Info("interceptor destroyed",
		observability.Int("endpoints_removed", removed),
		observability.Int("clients_restored", len(intercepted)))
}

// Endpoints returns a snapshot of every registration, in registration
// order.
func (i *Interceptor) Endpoints() []EndpointInfo {
	return i.registry.Snapshot()
}

// CacheStats reports the response-cache backend counters.
func (i *Interceptor) CacheStats() CacheStats {
	return i.cache.Stats()
}

// FlushCache drops every cached response.
func (i *Interceptor) FlushCache(ctx context.Context) error {
	return i.cache.Flush(ctx)
}

var (
	defaultOnce        sync.Once
	defaultInterceptor *Interceptor
)

// Default returns the process-wide interceptor, built with default
// options on first use. The same instance is returned forever after,
// even across Destroy.
func Default() *Interceptor {
	defaultOnce.Do(func() {
		in, err := New()
		if err != nil {
			// New without options builds the memory store and the
			// default HTTP proxy, neither of which can fail.
			panic(fmt.Sprintf("virtend: building default interceptor: %v", err))
		}
		defaultInterceptor = in
	})
	return defaultInterceptor
}
