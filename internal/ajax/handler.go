package ajax

import (
	"context"
	"net/http"
)

// ResponseWriter is the surface a handler uses to synthesize its response.
// Exactly one terminal call (Send, JSON, or SendStatus) completes the
// dispatched item; a second terminal call changes nothing and returns
// ErrAlreadyCompleted. Handlers may complete after returning, from another
// goroutine.
type ResponseWriter interface {
	// Header returns the header map to send with the response. Mutations
	// after a terminal call have no effect.
	Header() http.Header

	// Send completes the item fulfilled with a 200 text/plain response.
	Send(body string) error

	// JSON completes the item fulfilled with a 200 application/json
	// response carrying the marshalled value. A marshalling failure
	// rejects the item and is returned.
	JSON(v any) error

	// SendStatus completes the item with the given status code and the
	// standard reason phrase as the body. Codes of 400 and above reject
	// the item with a StatusError; lower codes fulfill it.
	SendStatus(code int) error
}

// Handler answers an intercepted request. It receives the handler-facing
// request view (match params populated, query merged, JSON bodies decoded)
// and must complete w exactly once.
type Handler func(w ResponseWriter, r *Request)

// ProxyFunc forwards a request that no endpoint intercepted and returns
// the network's response. It is the injectable seam between the dispatch
// engine and the real transport.
type ProxyFunc func(ctx context.Context, req *Request) (*Response, error)

// Comparator decides whether a cached response recorded for prev may
// answer cur. The default comparator is payload equality.
//
// The two sides are not symmetric: prev is rebuilt from the stored
// snapshot, so prev.Body holds the serialized payload bytes, while
// cur.Body holds whatever value the caller set. Implementations that
// inspect bodies should compare fingerprints (or decode both sides)
// rather than the raw values.
type Comparator func(prev, cur *Request) bool

// Options adjusts a single dispatch call. The zero value means engine
// defaults.
type Options struct {
	// Aggregator overrides how the batch completes. Nil means AllSettled
	// (or the engine's configured default).
	Aggregator Aggregator

	// ProxyTo overrides the engine's proxy function for this call.
	ProxyTo ProxyFunc

	// Match overrides the cache comparator for this call.
	Match Comparator

	// Force reuses any cached response for the request's method and URL,
	// skipping the comparator.
	Force bool
}
