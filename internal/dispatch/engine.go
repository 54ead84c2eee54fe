package dispatch

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/virtend/virtend/internal/ajax"
	"github.com/virtend/virtend/internal/cache"
	"github.com/virtend/virtend/internal/observability"
	"github.com/virtend/virtend/internal/router"
	"github.com/virtend/virtend/internal/util"
)

// dispatchTracerName is the OpenTelemetry tracer name for dispatch
// operations.
const dispatchTracerName = "virtend/dispatch"

// Engine resolves and settles dispatched request batches.
type Engine struct {
	logger     observability.Logger
	registry   *router.Registry
	cache      *cache.ResponseCache
	proxy      ajax.ProxyFunc
	aggregator ajax.Aggregator
	comparator ajax.Comparator

	intercepting atomic.Bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger observability.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithRegistry sets the endpoint registry consulted for interception.
func WithRegistry(registry *router.Registry) Option {
	return func(e *Engine) {
		e.registry = registry
	}
}

// WithCache sets the response cache.
func WithCache(rc *cache.ResponseCache) Option {
	return func(e *Engine) {
		e.cache = rc
	}
}

// WithProxy sets the proxy function for requests nothing intercepts.
func WithProxy(fn ajax.ProxyFunc) Option {
	return func(e *Engine) {
		e.proxy = fn
	}
}

// WithAggregator sets the default batch aggregator.
func WithAggregator(agg ajax.Aggregator) Option {
	return func(e *Engine) {
		e.aggregator = agg
	}
}

// WithComparator sets the default cache comparator.
func WithComparator(cmp ajax.Comparator) Option {
	return func(e *Engine) {
		e.comparator = cmp
	}
}

// New creates an engine. Without options the engine has no registry,
// cache, or proxy: every request item rejects with ErrNoProxy.
func New(opts ...Option) *Engine {
	e := &Engine{
		logger: observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.aggregator == nil {
		e.aggregator = ajax.AllSettled
	}
	if e.comparator == nil {
		e.comparator = cache.DefaultComparator
	}
	e.intercepting.Store(true)
	return e
}

// SetIntercepting toggles registry consultation. The facade switches it
// off at destroy time so later dispatches pass straight to cache and
// proxy.
func (e *Engine) SetIntercepting(v bool) {
	e.intercepting.Store(v)
}

// Intercepting reports whether dispatches consult the registry.
func (e *Engine) Intercepting() bool {
	return e.intercepting.Load()
}

// Dispatch resolves a mixed batch. Request items (*ajax.Request or
// ajax.Request values) run through interception, cache, and proxy on
// their own goroutines; any other value passes through untouched as a
// fulfilled result in place. Results are positional: output order equals
// input order regardless of completion order.
//
// The configured aggregator (or opts.Aggregator) decides how the batch
// completes. The per-dispatch child context is cancelled when the
// aggregator returns.
func (e *Engine) Dispatch(ctx context.Context, items []any, opts *ajax.Options) ([]ajax.Result, error) {
	if opts == nil {
		opts = &ajax.Options{}
	}

	ctx, span := otel.Tracer(dispatchTracerName).Start(ctx, "dispatch.Dispatch",
		trace.WithAttributes(
			attribute.Int("dispatch.items", len(items)),
		),
	)
	defer span.End()

	start := time.Now()
	defer func() {
		GetDispatchMetrics().dispatchDuration.Observe(time.Since(start).Seconds())
	}()
	GetDispatchMetrics().batchSize.Observe(float64(len(items)))

	if len(items) == 0 {
		return []ajax.Result{}, nil
	}

	childCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Buffered to the item count so no send blocks after the aggregator
	// returns early.
	settlements := make(chan ajax.Settlement, len(items))

	for i, item := range items {
		req, ok := asRequest(item)
		if !ok {
			GetDispatchMetrics().outcomesTotal.WithLabelValues(outcomePassthrough).Inc()
			span.AddEvent("item settled", trace.WithAttributes(
				attribute.Int("dispatch.index", i),
				attribute.String("dispatch.outcome", outcomePassthrough),
			))
			settlements <- ajax.Settlement{Index: i, Result: ajax.Fulfill(item)}
			continue
		}
		go e.dispatchItem(childCtx, span, i, req, opts, settlements)
	}

	agg := opts.Aggregator
	if agg == nil {
		agg = e.aggregator
	}

	return agg(childCtx, len(items), settlements)
}

// Do dispatches a single request and unwraps its settlement.
func (e *Engine) Do(ctx context.Context, req *ajax.Request, opts *ajax.Options) (*ajax.Response, error) {
	results, err := e.Dispatch(ctx, []any{req}, opts)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		// A custom aggregator may return a short slice with a nil error.
		return nil, util.ErrShortAggregation
	}
	res := results[0]
	if res.Rejected() {
		return nil, res.Err
	}
	resp, _ := res.Response()
	return resp, nil
}

// asRequest extracts a dispatchable request from a batch item.
func asRequest(item any) (*ajax.Request, bool) {
	switch v := item.(type) {
	case *ajax.Request:
		return v, v != nil
	case ajax.Request:
		return &v, true
	default:
		return nil, false
	}
}

// dispatchItem resolves one request item and delivers its settlement.
func (e *Engine) dispatchItem(ctx context.Context, span trace.Span, index int, req *ajax.Request, opts *ajax.Options, settlements chan<- ajax.Settlement) {
	ctx = util.ContextWithRequestID(ctx, uuid.NewString())
	ctx = util.ContextWithStartTime(ctx, time.Now())
	logger := e.logger.WithContext(ctx)

	outcome, result := e.resolveItem(ctx, logger, req, opts)

	GetDispatchMetrics().outcomesTotal.WithLabelValues(outcome).Inc()
	span.AddEvent("item settled", trace.WithAttributes(
		attribute.Int("dispatch.index", index),
		attribute.String("dispatch.outcome", outcome),
	))

	settlements <- ajax.Settlement{Index: index, Result: result}
}

// resolveItem runs one request through interception, cache, and proxy,
// in that order, and reports the outcome label alongside the result.
func (e *Engine) resolveItem(ctx context.Context, logger observability.Logger, req *ajax.Request, opts *ajax.Options) (string, ajax.Result) {
	method := req.CanonicalMethod()
	path := req.Path()

	if e.intercepting.Load() && e.registry != nil {
		env := router.GuardEnv{Query: req.MergedQuery(), Header: req.Header}
		if m, ok := e.registry.Resolve(method, path, env); ok {
			logger.Debug("request intercepted",
				observability.String("method", method),
				observability.String("path", path),
				observability.String("endpoint", m.Endpoint.Label()))

			result := e.invokeHandler(ctx, m.Endpoint, m.Params, req)
			if result.Rejected() {
				return outcomeRejected, result
			}
			return outcomeIntercepted, result
		}
	}

	if e.cache != nil {
		if resp, ok := e.cache.Lookup(ctx, req, e.lookupOptions(opts)); ok {
			logger.Debug("request served from cache",
				observability.String("method", method),
				observability.String("path", path))
			return outcomeCacheHit, ajax.Fulfill(resp)
		}
	}

	proxy := opts.ProxyTo
	if proxy == nil {
		proxy = e.proxy
	}
	if proxy == nil {
		return outcomeRejected, ajax.Reject(util.ErrNoProxy)
	}

	resp, err := proxy(ctx, req)
	if err != nil {
		logger.Warn("proxy dispatch failed",
			observability.String("method", method),
			observability.String("path", path),
			observability.Error(err))
		return outcomeRejected, ajax.Reject(err)
	}

	if e.cache != nil {
		if err := e.cache.Store(ctx, req, resp); err != nil {
			logger.Warn("failed to cache proxied response",
				observability.Error(err))
		}
	}

	logger.Debug("request proxied",
		observability.String("method", method),
		observability.String("path", path),
		observability.Int("status", resp.StatusCode))

	return outcomeProxied, ajax.Fulfill(resp)
}

// lookupOptions injects the engine's default comparator when the call
// did not override it.
func (e *Engine) lookupOptions(opts *ajax.Options) *ajax.Options {
	if opts.Match != nil || e.comparator == nil {
		return opts
	}
	out := *opts
	out.Match = e.comparator
	return &out
}

// dispatchFunc returns the DispatchFunc bound into handler-facing
// requests so nested dispatches from inside handlers run with full
// engine semantics.
func (e *Engine) dispatchFunc() ajax.DispatchFunc {
	return func(ctx context.Context, items []any, opts *ajax.Options) ([]ajax.Result, error) {
		return e.Dispatch(ctx, items, opts)
	}
}
