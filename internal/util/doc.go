// Package util provides utility functions and types shared across
// virtend.
//
// This package contains shared utilities used across the interception
// pipeline including context helpers, error types, and validation
// functions.
//
// # Context Helpers
//
// Context utilities for dispatch-scoped data:
//
//	ctx = util.ContextWithRequestID(ctx, "req-123")
//	requestID := util.RequestIDFromContext(ctx)
//
// # Error Types
//
// Structured error types for consistent error handling:
//
//   - StatusError: HTTP-level rejections carrying the status code
//   - HandlerPanicError: panics recovered from endpoint handlers
//   - ProxyError: transport failures while reaching the real network
//   - Common sentinel errors: ErrAlreadyCompleted, ErrDestroyed, etc.
//
// # Validation
//
// Input validation helpers for URLs, methods, and headers:
//
//	err := util.ValidateURL("https://example.com")
//	err := util.ValidateHeaderName("X-Custom-Header")
package util
