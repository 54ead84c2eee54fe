// Package retry runs an operation with exponential backoff and jitter.
//
// The redis cache backend wraps its round trips in it, and the proxy
// retry decorator uses it for idempotent egress. Typical use:
//
//	err := retry.Do(ctx, retry.DefaultConfig(), func() error {
//	    return ping(ctx)
//	}, retry.WithShouldRetry(retry.IsNetworkError))
//
// The zero Config (or a nil pointer) means the package defaults: three
// retries starting at 100ms, doubling to a 30s ceiling, with 25%
// jitter. Backoff sleeps end early when the context does.
package retry
