// Package dispatch runs request batches through interception, the
// response cache, and the proxy seam.
//
// The engine dispatches each request item on its own goroutine and
// resolves it in a fixed order: a registered endpoint intercepts and its
// handler synthesizes the response; otherwise the response cache may
// answer; otherwise the request is proxied to the real network and the
// fulfilled response is recorded in the cache. Non-request items pass
// through untouched.
//
// An aggregator consumes the indexed settlement stream and decides how
// the batch completes; the per-dispatch child context is cancelled as
// soon as the aggregator returns, so abandoned in-flight work observes
// cancellation.
package dispatch
