package proxy

import (
	"context"
	"net/http"
	"time"

	"github.com/virtend/virtend/internal/ajax"
	"github.com/virtend/virtend/internal/retry"
	"github.com/virtend/virtend/internal/util"
)

// idempotentMethods are the HTTP methods safe to replay (RFC 7231
// section 4.2.2).
var idempotentMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodOptions: true,
	http.MethodTrace:   true,
	http.MethodPut:     true,
	http.MethodDelete:  true,
}

// WithRetry wraps a proxy function with backoff retries for idempotent
// methods. Transport failures and gateway-class statuses (502, 503, 504)
// are retried; everything else, and every non-idempotent method, goes
// through exactly once.
func WithRetry(fn ajax.ProxyFunc, cfg *retry.Config) ajax.ProxyFunc {
	return func(ctx context.Context, req *ajax.Request) (*ajax.Response, error) {
		if !idempotentMethods[req.CanonicalMethod()] {
			return fn(ctx, req)
		}

		var resp *ajax.Response
		err := retry.Do(ctx, cfg, func() error {
			var callErr error
			resp, callErr = fn(ctx, req)
			return callErr
		},
			retry.WithShouldRetry(util.IsRetryable),
			retry.WithOnRetry(func(int, error, time.Duration) {
				GetProxyMetrics().retriesTotal.Inc()
			}),
		)
		if err != nil {
			return nil, err
		}
		return resp, nil
	}
}
