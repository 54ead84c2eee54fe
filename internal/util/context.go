package util

import (
	"context"
	"time"
)

// Unexported key types keep these values collision-free against any
// other package using the same context.
type (
	requestIDKey struct{}
	startTimeKey struct{}
	endpointKey  struct{}
)

// ContextWithRequestID records the dispatch-scoped request id.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the recorded request id, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// ContextWithStartTime records when the dispatch of this request began.
func ContextWithStartTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, startTimeKey{}, t)
}

// StartTimeFromContext returns the recorded start time, or the zero
// time.
func StartTimeFromContext(ctx context.Context) time.Time {
	t, _ := ctx.Value(startTimeKey{}).(time.Time)
	return t
}

// ContextWithEndpoint records the label of the endpoint that claimed
// the request.
func ContextWithEndpoint(ctx context.Context, label string) context.Context {
	return context.WithValue(ctx, endpointKey{}, label)
}

// EndpointFromContext returns the recorded endpoint label, or "".
func EndpointFromContext(ctx context.Context) string {
	label, _ := ctx.Value(endpointKey{}).(string)
	return label
}

// ElapsedTime returns how long the request has been in flight, or zero
// when no start time was recorded.
func ElapsedTime(ctx context.Context) time.Duration {
	start := StartTimeFromContext(ctx)
	if start.IsZero() {
		return 0
	}
	return time.Since(start)
}
