package virtend

import (
	"context"
	"net/http"

	"github.com/virtend/virtend/internal/ajax"
	"github.com/virtend/virtend/internal/cache"
	"github.com/virtend/virtend/internal/config"
	"github.com/virtend/virtend/internal/observability"
	"github.com/virtend/virtend/internal/proxy"
	"github.com/virtend/virtend/internal/retry"
	"github.com/virtend/virtend/internal/router"
	"github.com/virtend/virtend/internal/util"
)

// Dispatch contract types, aliased from the internal contract package so
// callers only ever import virtend.
type (
	// Request describes a request to dispatch. Callers construct it as a
	// plain literal; handler-facing instances additionally carry match
	// params, a bound context, and a nested-dispatch binding.
	Request = ajax.Request

	// Response is a synthesized or proxied response.
	Response = ajax.Response

	// Result is the positional outcome of one dispatched item.
	Result = ajax.Result

	// Settlement pairs a result with its input index, streamed to
	// aggregators.
	Settlement = ajax.Settlement

	// State describes how a dispatched item settled.
	State = ajax.State

	// Params holds the values a pattern match extracted from a URL.
	Params = ajax.Params

	// Handler answers an intercepted request.
	Handler = ajax.Handler

	// ResponseWriter is the surface a handler synthesizes its response
	// with.
	ResponseWriter = ajax.ResponseWriter

	// ProxyFunc forwards a request nothing intercepted to the network.
	ProxyFunc = ajax.ProxyFunc

	// Comparator decides whether a cached response may answer a request.
	Comparator = ajax.Comparator

	// Aggregator decides how a dispatch batch completes from its
	// settlement stream.
	Aggregator = ajax.Aggregator
)

// Settlement states.
const (
	StatePending   = ajax.StatePending
	StateFulfilled = ajax.StateFulfilled
	StateRejected  = ajax.StateRejected
)

// NewResponse builds a Response with the standard status text for code.
// Custom ProxyFunc implementations use it to hand back answers.
func NewResponse(code int, header http.Header, body []byte) *Response {
	return ajax.NewResponse(code, header, body)
}

// Registration types.
type (
	// Endpoint is a registered virtual endpoint. The value returned by
	// Add is the removal token.
	Endpoint = router.Endpoint

	// EndpointInfo is the admin-facing snapshot of a registration.
	EndpointInfo = router.EndpointInfo
)

// Cache and configuration types.
type (
	// Store is the byte-level cache backend interface.
	Store = cache.Store

	// CacheStats reports hit, miss, and size counters of a cache backend.
	CacheStats = cache.Stats

	// CacheConfig selects and tunes the response-cache backend.
	CacheConfig = config.CacheConfig

	// RedisCacheConfig tunes the redis cache backend.
	RedisCacheConfig = config.RedisCacheConfig

	// Duration is a time.Duration with YAML and JSON support, used in
	// configuration and fixture files.
	Duration = config.Duration

	// FixtureFile is the root of a fixture YAML document.
	FixtureFile = config.FixtureFile

	// FixtureEndpoint declares one fixture endpoint.
	FixtureEndpoint = config.FixtureEndpoint

	// FixtureResponse describes a fixture endpoint's static response.
	FixtureResponse = config.FixtureResponse
)

// Ambient stack types.
type (
	// Logger is the structured logger interface every component accepts.
	Logger = observability.Logger

	// LogConfig configures logger construction.
	LogConfig = observability.LogConfig

	// TracerConfig configures OpenTelemetry tracing.
	TracerConfig = observability.TracerConfig

	// BreakerConfig tunes the proxy circuit breaker.
	BreakerConfig = proxy.BreakerConfig

	// RetryConfig tunes the proxy retry decorator.
	RetryConfig = retry.Config
)

// Error taxonomy, re-exported for errors.Is and errors.As checks.
var (
	// ErrAlreadyCompleted is returned by a second terminal response call.
	ErrAlreadyCompleted = util.ErrAlreadyCompleted

	// ErrDestroyed is returned by registration on a destroyed
	// interceptor.
	ErrDestroyed = util.ErrDestroyed

	// ErrNoDispatcher is returned by nested dispatch on a request built
	// outside a handler.
	ErrNoDispatcher = util.ErrNoDispatcher

	// ErrNoProxy rejects requests when nothing intercepts them and no
	// proxy is configured.
	ErrNoProxy = util.ErrNoProxy

	// ErrNilHandler rejects registrations without a handler.
	ErrNilHandler = util.ErrNilHandler

	// ErrInvalidPattern rejects registrations with an uncompilable
	// pattern.
	ErrInvalidPattern = util.ErrInvalidPattern
)

// Structured error types.
type (
	// StatusError is an HTTP-level rejection: a synthesized or proxied
	// response with a status of 400 or above.
	StatusError = util.StatusError

	// HandlerPanicError is a recovered handler panic.
	HandlerPanicError = util.HandlerPanicError

	// ProxyError is a transport-level proxy failure.
	ProxyError = util.ProxyError
)

// StatusCode extracts the HTTP status code carried by err, unwrapping as
// needed.
func StatusCode(err error) (int, bool) {
	return util.StatusCode(err)
}

// IsClientError reports whether err carries a 4xx status.
func IsClientError(err error) bool {
	return util.IsClientError(err)
}

// IsServerError reports whether err carries a 5xx status.
func IsServerError(err error) bool {
	return util.IsServerError(err)
}

// IsRetryable reports whether err is worth retrying: a transport failure
// or a gateway-class status (502, 503, 504).
func IsRetryable(err error) bool {
	return util.IsRetryable(err)
}

// AllSettled is the default aggregator: it waits for every item and
// returns the full positional result slice with a nil error. Individual
// rejections do not fail the batch.
func AllSettled(ctx context.Context, total int, settlements <-chan Settlement) ([]Result, error) {
	return ajax.AllSettled(ctx, total, settlements)
}

// FirstError is the fail-fast aggregator: it returns as soon as any item
// rejects, with that item's error, cancelling in-flight siblings.
func FirstError(ctx context.Context, total int, settlements <-chan Settlement) ([]Result, error) {
	return ajax.FirstError(ctx, total, settlements)
}

// Spread calls fn once with the fulfilled values of results in
// positional order, mirroring destructured multi-request completion.
func Spread(results []Result, fn func(values ...any)) {
	ajax.Spread(results, fn)
}

// DefaultComparator is the payload-equality comparator: a cached entry
// answers a request when both payloads fingerprint identically.
func DefaultComparator(prev, cur *Request) bool {
	return cache.DefaultComparator(prev, cur)
}

// NewLogger builds a zap-backed structured logger.
func NewLogger(cfg LogConfig) (Logger, error) {
	return observability.NewLogger(cfg)
}

// NopLogger returns a logger that discards everything.
func NopLogger() Logger {
	return observability.NopLogger()
}

// DefaultLogConfig returns the default logging configuration: info
// level, JSON format, stdout.
func DefaultLogConfig() LogConfig {
	return observability.DefaultLogConfig()
}
