package proxy

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/virtend/virtend/internal/ajax"
	"github.com/virtend/virtend/internal/util"
)

// WithRateLimit wraps a proxy function with a token-bucket rate limiter.
// Calls over the limit wait for a token; a cancelled context aborts the
// wait with the context error.
func WithRateLimit(fn ajax.ProxyFunc, limit rate.Limit, burst int) ajax.ProxyFunc {
	limiter := rate.NewLimiter(limit, burst)

	return func(ctx context.Context, req *ajax.Request) (*ajax.Response, error) {
		if err := limiter.Wait(ctx); err != nil {
			return nil, util.WrapError(err, "rate limit wait")
		}
		return fn(ctx, req)
	}
}
