// Package router provides URL pattern matching and the ordered
// endpoint registry for virtual endpoint interception.
//
// This package implements path matching with support for exact,
// template (:name placeholders), regular expression, prefix, and
// wildcard patterns, plus an endpoint registry that resolves requests
// strictly in registration order (first registered wins).
//
// # Features
//
//   - Exact, template, regex, prefix, and wildcard path matching
//   - Named and positional parameter extraction
//   - Case-insensitive method filtering with "*" wildcard
//   - Optional CEL guard expressions for conditional interception
//   - Registration-order resolution with deterministic ordering
//   - Thread-safe endpoint registration and lookup
//
// # Usage
//
// Create a registry and register endpoints:
//
//	reg := router.New()
//	m, err := router.CompilePattern("/food/:kind")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	ep, err := reg.Add(&router.Endpoint{Method: "GET", Matcher: m, Handler: h})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	match, ok := reg.Resolve("GET", "/food/tacos", router.GuardEnv{})
//	if ok {
//	    // Endpoint matched, use match.Endpoint and match.Params
//	}
package router
