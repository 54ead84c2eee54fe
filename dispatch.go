package virtend

import (
	"context"

	"github.com/virtend/virtend/internal/ajax"
)

// CallOption adjusts a single Do or Dispatch call.
type CallOption func(*ajax.Options)

// Force reuses any cached response for the request's method and URL,
// skipping the comparator.
func Force() CallOption {
	return func(o *ajax.Options) {
		o.Force = true
	}
}

// MatchWith sets the cache comparator for this call.
func MatchWith(cmp Comparator) CallOption {
	return func(o *ajax.Options) {
		o.Match = cmp
	}
}

// ProxyTo routes requests nothing intercepts through fn for this call.
func ProxyTo(fn ProxyFunc) CallOption {
	return func(o *ajax.Options) {
		o.ProxyTo = fn
	}
}

// AggregateWith sets how the batch completes for this call.
func AggregateWith(agg Aggregator) CallOption {
	return func(o *ajax.Options) {
		o.Aggregator = agg
	}
}

// Do dispatches a single request and unwraps its settlement: the
// response on fulfillment, the rejection error otherwise.
func (i *Interceptor) Do(ctx context.Context, req *Request, opts ...CallOption) (*Response, error) {
	return i.engine.Do(ctx, req, callOptions(opts))
}

// Dispatch resolves a mixed batch. Request items (by pointer or value)
// run through interception, cache, and proxy concurrently; any other
// value passes through untouched as a fulfilled result in place. Results
// are positional: output order equals input order regardless of
// completion order. How the batch completes is the aggregator's call;
// the default AllSettled waits for everything and never fails the batch
// on individual rejections.
func (i *Interceptor) Dispatch(ctx context.Context, items []any, opts ...CallOption) ([]Result, error) {
	return i.engine.Dispatch(ctx, items, callOptions(opts))
}

// callOptions folds call options into the engine's option struct.
func callOptions(opts []CallOption) *ajax.Options {
	o := &ajax.Options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
