package cache

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/virtend/virtend/internal/ajax"
	"github.com/virtend/virtend/internal/observability"
)

// Entry is the stored envelope for one cached response. The request
// snapshot carries enough of the original request for a comparator to
// decide whether the entry may answer a later request with the same
// signature.
type Entry struct {
	Request   RequestSnapshot  `json:"request"`
	Response  ResponseSnapshot `json:"response"`
	CreatedAt time.Time        `json:"createdAt"`
	Version   uint64           `json:"version"`
}

// RequestSnapshot preserves the cached request for comparator checks.
// Body holds the serialized payload: raw bytes and strings as-is,
// structured values JSON-encoded.
type RequestSnapshot struct {
	Method  string              `json:"method"`
	URL     string              `json:"url"`
	Headers map[string][]string `json:"headers,omitempty"`
	Body    []byte              `json:"body,omitempty"`
}

// ResponseSnapshot holds a serialized response for cache storage.
type ResponseSnapshot struct {
	StatusCode int                 `json:"statusCode"`
	Headers    map[string][]string `json:"headers,omitempty"`
	Body       []byte              `json:"body,omitempty"`
}

// DefaultComparator is the payload-equality comparator: a cached entry
// answers a request when both bodies fingerprint identically. JSON
// payloads compare canonically, so key order and encoding do not matter.
func DefaultComparator(prev, cur *ajax.Request) bool {
	return PayloadFingerprint(prev.Body) == PayloadFingerprint(cur.Body)
}

// ResponseCache stores dispatched responses keyed by request signature.
// A signature holds at most one entry; storing over an existing entry
// replaces it with a higher version.
type ResponseCache struct {
	logger  observability.Logger
	store   Store
	ttl     time.Duration
	version atomic.Uint64
}

// NewResponseCache creates a response cache on top of a byte store.
func NewResponseCache(store Store, ttl time.Duration, logger observability.Logger) *ResponseCache {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &ResponseCache{
		logger: logger,
		store:  store,
		ttl:    ttl,
	}
}

// Lookup returns the cached response for the request's signature when
// the entry is allowed to answer it. With opts.Force any entry under the
// signature answers; otherwise the comparator (opts.Match, defaulting to
// DefaultComparator) decides against the cached request snapshot. Backend
// failures and corrupt entries are treated as misses.
func (c *ResponseCache) Lookup(ctx context.Context, req *ajax.Request, opts *ajax.Options) (*ajax.Response, bool) {
	key := c.cacheKey(req)

	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) && !errors.Is(err, ErrCacheDisabled) {
			c.logger.Warn("cache lookup failed",
				observability.String("key", key),
				observability.Error(err))
		}
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.logger.Warn("discarding corrupt cache entry",
			observability.String("key", key),
			observability.Error(err))
		_ = c.store.Delete(ctx, key)
		return nil, false
	}

	if opts == nil {
		opts = &ajax.Options{}
	}

	if !opts.Force {
		match := opts.Match
		if match == nil {
			match = DefaultComparator
		}
		if !match(entry.Request.request(), req) {
			c.logger.Debug("cache entry rejected by comparator",
				observability.String("key", key),
				observability.Uint64("version", entry.Version))
			return nil, false
		}
	}

	c.logger.Debug("cache entry served",
		observability.String("key", key),
		observability.Uint64("version", entry.Version),
		observability.Int("status", entry.Response.StatusCode))

	return entry.Response.response(), true
}

// Store records the response for the request's signature, replacing any
// existing entry. Each write carries a strictly increasing version.
func (c *ResponseCache) Store(ctx context.Context, req *ajax.Request, resp *ajax.Response) error {
	key := c.cacheKey(req)

	entry := Entry{
		Request:   snapshotRequest(req),
		Response:  snapshotResponse(resp),
		CreatedAt: time.Now(),
		Version:   c.version.Add(1),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
		if errors.Is(err, ErrCacheDisabled) {
			return nil
		}
		c.logger.Warn("cache store failed",
			observability.String("key", key),
			observability.Error(err))
		return err
	}

	c.logger.Debug("cache entry stored",
		observability.String("key", key),
		observability.Uint64("version", entry.Version),
		observability.Int("status", resp.StatusCode))

	return nil
}

// Invalidate removes the cached entry for the request's signature.
func (c *ResponseCache) Invalidate(ctx context.Context, req *ajax.Request) error {
	err := c.store.Delete(ctx, c.cacheKey(req))
	if errors.Is(err, ErrCacheDisabled) {
		return nil
	}
	return err
}

// Flush removes all cached entries.
func (c *ResponseCache) Flush(ctx context.Context) error {
	err := c.store.Flush(ctx)
	if errors.Is(err, ErrCacheDisabled) {
		return nil
	}
	return err
}

// Stats returns backend statistics when the store tracks them.
func (c *ResponseCache) Stats() Stats {
	if s, ok := c.store.(StoreWithStats); ok {
		return s.Stats()
	}
	return Stats{}
}

// Close closes the underlying store.
func (c *ResponseCache) Close() error {
	return c.store.Close()
}

// cacheKey derives the backend key from the request signature. Signatures
// over the backend key limit are hashed.
func (c *ResponseCache) cacheKey(req *ajax.Request) string {
	sig := Signature(req)
	if err := ValidateKey(sig); err != nil {
		return HashKey(sig)
	}
	return SanitizeKey(sig)
}

// snapshotRequest captures the parts of a request a comparator may
// inspect later.
func snapshotRequest(req *ajax.Request) RequestSnapshot {
	return RequestSnapshot{
		Method:  req.CanonicalMethod(),
		URL:     CanonicalURL(req),
		Headers: req.Header,
		Body:    serializeBody(req.Body),
	}
}

// snapshotResponse captures a response for storage.
func snapshotResponse(resp *ajax.Response) ResponseSnapshot {
	return ResponseSnapshot{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       resp.Body,
	}
}

// request reconstructs the cached request view handed to comparators.
// The body is the serialized payload bytes.
func (s RequestSnapshot) request() *ajax.Request {
	req := &ajax.Request{
		Method: s.Method,
		URL:    s.URL,
		Header: s.Headers,
	}
	if len(s.Body) > 0 {
		req.Body = s.Body
	}
	return req
}

// response reconstructs the cached response.
func (s ResponseSnapshot) response() *ajax.Response {
	var header http.Header
	if s.Headers != nil {
		header = s.Headers
	}
	return ajax.NewResponse(s.StatusCode, header, s.Body)
}

// serializeBody converts a request body to bytes for storage. Structured
// values are JSON-encoded; encoding failures drop the body.
func serializeBody(body any) []byte {
	switch v := body.(type) {
	case nil:
		return nil
	case []byte:
		return v
	case string:
		return []byte(v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		return data
	}
}
