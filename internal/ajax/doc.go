// Package ajax defines the request, response, and settlement contracts
// shared by the endpoint registry, dispatch engine, response cache, and
// proxy implementations.
//
// The package is a leaf: it depends only on the standard library and the
// shared error taxonomy, so every other virtend package can build on these
// types without import cycles.
//
// # Requests
//
// Request is both the caller-facing request descriptor and the view a
// handler receives. Callers construct descriptors as plain literals:
//
//	req := &ajax.Request{Method: "GET", URL: "/food/tacos"}
//
// When the dispatch engine invokes a handler it binds the request to a
// context and a dispatch function, so handlers can issue nested dispatches
// through r.Dispatch with full interception and caching semantics.
//
// # Settlements
//
// Every dispatched item settles into a Result, positionally keyed to its
// input index. Aggregators consume an indexed settlement stream and decide
// how a batch completes; AllSettled and FirstError are provided.
package ajax
