// Package proxy builds the outbound network seam of the dispatch engine:
// proxy functions that turn a dispatched request into a real HTTP call.
//
// New produces the base function on an injectable *http.Client. Requests
// with relative URLs resolve against an optional base URL; structured
// bodies are JSON-encoded; hop-by-hop headers are stripped per RFC 7230.
// Error statuses (400 and above) come back as a *util.StatusError with
// the upstream body preserved, transport failures as a *util.ProxyError.
//
// Decorators wrap any proxy function with resilience concerns:
//
//	fn, _ := proxy.New(proxy.WithBaseURL("https://api.example.com"))
//	fn = proxy.WithRetry(fn, retry.DefaultConfig())
//	fn = proxy.WithBreaker(fn, proxy.BreakerConfig{Name: "api"})
//	fn = proxy.WithRateLimit(fn, rate.Limit(100), 10)
//
// Decorator order matters: the rate limiter above admits requests before
// the breaker sees them, and retries run inside both.
package proxy
