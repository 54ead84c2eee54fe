package cache

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/virtend/virtend/internal/ajax"
	"github.com/virtend/virtend/internal/observability"
)

func newTestResponseCache(t *testing.T) *ResponseCache {
	t.Helper()

	store := newTestMemoryStore(t, 100, 5*time.Minute)
	rc := NewResponseCache(store, time.Minute, observability.NopLogger())
	t.Cleanup(func() {
		_ = rc.Close()
	})
	return rc
}

func textResponse(code int, body string) *ajax.Response {
	header := http.Header{}
	header.Set("Content-Type", "text/plain")
	return ajax.NewResponse(code, header, []byte(body))
}

func TestResponseCache_StoreAndLookup(t *testing.T) {
	rc := newTestResponseCache(t)
	ctx := context.Background()

	req := &ajax.Request{Method: "GET", URL: "/api/users?page=1"}
	require.NoError(t, rc.Store(ctx, req, textResponse(200, "hello")))

	resp, ok := rc.Lookup(ctx, req, nil)
	require.True(t, ok)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "hello", resp.Text())
	assert.Equal(t, "text/plain", resp.ContentType())
}

func TestResponseCache_Lookup_Miss(t *testing.T) {
	rc := newTestResponseCache(t)

	_, ok := rc.Lookup(context.Background(), &ajax.Request{URL: "/nothing"}, nil)
	assert.False(t, ok)
}

func TestResponseCache_Lookup_QuerySpelling(t *testing.T) {
	rc := newTestResponseCache(t)
	ctx := context.Background()

	// Stored with the query in the URL string
	stored := &ajax.Request{URL: "/api/items?page=2&size=10"}
	require.NoError(t, rc.Store(ctx, stored, textResponse(200, "items")))

	// Looked up with explicit query values in a different order
	lookup := &ajax.Request{
		URL:   "/api/items",
		Query: url.Values{"size": {"10"}, "page": {"2"}},
	}

	resp, ok := rc.Lookup(ctx, lookup, nil)
	require.True(t, ok)
	assert.Equal(t, "items", resp.Text())
}

func TestResponseCache_DefaultComparator_RejectsDifferentPayload(t *testing.T) {
	rc := newTestResponseCache(t)
	ctx := context.Background()

	stored := &ajax.Request{Method: "POST", URL: "/api/orders", Body: []byte(`{"id":1}`)}
	require.NoError(t, rc.Store(ctx, stored, textResponse(201, "created")))

	// Same signature, different payload
	other := &ajax.Request{Method: "POST", URL: "/api/orders", Body: []byte(`{"id":2}`)}
	_, ok := rc.Lookup(ctx, other, nil)
	assert.False(t, ok)

	// Equal payload is served
	same := &ajax.Request{Method: "POST", URL: "/api/orders", Body: []byte(`{"id":1}`)}
	resp, ok := rc.Lookup(ctx, same, nil)
	require.True(t, ok)
	assert.Equal(t, 201, resp.StatusCode)
}

func TestResponseCache_DefaultComparator_JSONEquivalence(t *testing.T) {
	rc := newTestResponseCache(t)
	ctx := context.Background()

	stored := &ajax.Request{Method: "POST", URL: "/api/orders", Body: []byte(`{"a":1,"b":2}`)}
	require.NoError(t, rc.Store(ctx, stored, textResponse(200, "ok")))

	// Key order and representation differ, logical payload is equal
	lookup := &ajax.Request{Method: "POST", URL: "/api/orders", Body: map[string]any{"b": 2.0, "a": 1.0}}
	_, ok := rc.Lookup(ctx, lookup, nil)
	assert.True(t, ok)
}

func TestResponseCache_Force_SkipsComparator(t *testing.T) {
	rc := newTestResponseCache(t)
	ctx := context.Background()

	stored := &ajax.Request{Method: "POST", URL: "/api/orders", Body: []byte(`{"id":1}`)}
	require.NoError(t, rc.Store(ctx, stored, textResponse(201, "created")))

	other := &ajax.Request{Method: "POST", URL: "/api/orders", Body: []byte(`{"id":999}`)}

	_, ok := rc.Lookup(ctx, other, nil)
	require.False(t, ok)

	resp, ok := rc.Lookup(ctx, other, &ajax.Options{Force: true})
	require.True(t, ok)
	assert.Equal(t, 201, resp.StatusCode)
}

func TestResponseCache_CustomComparator(t *testing.T) {
	rc := newTestResponseCache(t)
	ctx := context.Background()

	stored := &ajax.Request{
		URL:    "/api/data",
		Header: http.Header{"X-Tenant": {"alpha"}},
	}
	require.NoError(t, rc.Store(ctx, stored, textResponse(200, "alpha data")))

	sameTenant := ajax.Comparator(func(prev, cur *ajax.Request) bool {
		return prev.Header.Get("X-Tenant") == cur.Header.Get("X-Tenant")
	})

	match := &ajax.Request{URL: "/api/data", Header: http.Header{"X-Tenant": {"alpha"}}}
	resp, ok := rc.Lookup(ctx, match, &ajax.Options{Match: sameTenant})
	require.True(t, ok)
	assert.Equal(t, "alpha data", resp.Text())

	mismatch := &ajax.Request{URL: "/api/data", Header: http.Header{"X-Tenant": {"beta"}}}
	_, ok = rc.Lookup(ctx, mismatch, &ajax.Options{Match: sameTenant})
	assert.False(t, ok)
}

func TestResponseCache_Overwrite_VersionIncreases(t *testing.T) {
	store := newTestMemoryStore(t, 100, 5*time.Minute)
	rc := NewResponseCache(store, time.Minute, observability.NopLogger())
	defer rc.Close()

	ctx := context.Background()
	req := &ajax.Request{URL: "/api/version"}

	require.NoError(t, rc.Store(ctx, req, textResponse(200, "first")))

	data, err := store.Get(ctx, rc.cacheKey(req))
	require.NoError(t, err)
	var first Entry
	require.NoError(t, json.Unmarshal(data, &first))

	require.NoError(t, rc.Store(ctx, req, textResponse(200, "second")))

	data, err = store.Get(ctx, rc.cacheKey(req))
	require.NoError(t, err)
	var second Entry
	require.NoError(t, json.Unmarshal(data, &second))

	assert.Greater(t, second.Version, first.Version)
	assert.False(t, second.CreatedAt.IsZero())

	// The replacement is what lookups now serve
	resp, ok := rc.Lookup(ctx, req, nil)
	require.True(t, ok)
	assert.Equal(t, "second", resp.Text())
}

func TestResponseCache_Invalidate(t *testing.T) {
	rc := newTestResponseCache(t)
	ctx := context.Background()

	req := &ajax.Request{URL: "/api/users"}
	require.NoError(t, rc.Store(ctx, req, textResponse(200, "users")))

	require.NoError(t, rc.Invalidate(ctx, req))

	_, ok := rc.Lookup(ctx, req, nil)
	assert.False(t, ok)
}

func TestResponseCache_Flush(t *testing.T) {
	rc := newTestResponseCache(t)
	ctx := context.Background()

	reqs := []*ajax.Request{
		{URL: "/api/a"},
		{URL: "/api/b"},
		{URL: "/api/c"},
	}
	for _, req := range reqs {
		require.NoError(t, rc.Store(ctx, req, textResponse(200, "x")))
	}

	require.NoError(t, rc.Flush(ctx))

	for _, req := range reqs {
		_, ok := rc.Lookup(ctx, req, nil)
		assert.False(t, ok)
	}
}

func TestResponseCache_CorruptEntry(t *testing.T) {
	store := newTestMemoryStore(t, 100, 5*time.Minute)
	rc := NewResponseCache(store, time.Minute, observability.NopLogger())
	defer rc.Close()

	ctx := context.Background()
	req := &ajax.Request{URL: "/api/corrupt"}

	// Plant garbage under the request's key
	key := rc.cacheKey(req)
	require.NoError(t, store.Set(ctx, key, []byte("not json"), time.Minute))

	_, ok := rc.Lookup(ctx, req, nil)
	assert.False(t, ok)

	// The corrupt entry was removed
	_, err := store.Get(ctx, key)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestResponseCache_DisabledStore(t *testing.T) {
	rc := NewResponseCache(NewDisabledStore(), time.Minute, observability.NopLogger())
	defer rc.Close()

	ctx := context.Background()
	req := &ajax.Request{URL: "/api/users"}

	// Store and lookup are silent no-ops
	assert.NoError(t, rc.Store(ctx, req, textResponse(200, "x")))

	_, ok := rc.Lookup(ctx, req, nil)
	assert.False(t, ok)

	assert.NoError(t, rc.Invalidate(ctx, req))
	assert.NoError(t, rc.Flush(ctx))
	assert.Equal(t, Stats{}, rc.Stats())
}

func TestResponseCache_Stats(t *testing.T) {
	rc := newTestResponseCache(t)
	ctx := context.Background()

	req := &ajax.Request{URL: "/api/users"}
	require.NoError(t, rc.Store(ctx, req, textResponse(200, "users")))

	_, ok := rc.Lookup(ctx, req, nil)
	require.True(t, ok)

	_, _ = rc.Lookup(ctx, &ajax.Request{URL: "/api/missing"}, nil)

	stats := rc.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Size)
}

func TestResponseCache_LongSignatureIsHashed(t *testing.T) {
	rc := newTestResponseCache(t)
	ctx := context.Background()

	req := &ajax.Request{
		URL:   "/api/search",
		Query: url.Values{"q": {strings.Repeat("x", maxKeyLength)}},
	}

	// The derived key is the fixed-length hash
	assert.Len(t, rc.cacheKey(req), 64)

	require.NoError(t, rc.Store(ctx, req, textResponse(200, "found")))

	resp, ok := rc.Lookup(ctx, req, nil)
	require.True(t, ok)
	assert.Equal(t, "found", resp.Text())
}

func TestDefaultComparator(t *testing.T) {
	tests := []struct {
		name     string
		prev     *ajax.Request
		cur      *ajax.Request
		expected bool
	}{
		{
			name:     "both nil bodies match",
			prev:     &ajax.Request{URL: "/a"},
			cur:      &ajax.Request{URL: "/a"},
			expected: true,
		},
		{
			name:     "equal json bodies match",
			prev:     &ajax.Request{Body: []byte(`{"a":1}`)},
			cur:      &ajax.Request{Body: []byte(`{"a":1}`)},
			expected: true,
		},
		{
			name:     "key order does not matter",
			prev:     &ajax.Request{Body: []byte(`{"a":1,"b":2}`)},
			cur:      &ajax.Request{Body: []byte(`{"b":2,"a":1}`)},
			expected: true,
		},
		{
			name:     "different bodies do not match",
			prev:     &ajax.Request{Body: []byte(`{"a":1}`)},
			cur:      &ajax.Request{Body: []byte(`{"a":2}`)},
			expected: false,
		},
		{
			name:     "nil vs present body does not match",
			prev:     &ajax.Request{},
			cur:      &ajax.Request{Body: []byte(`{"a":1}`)},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DefaultComparator(tt.prev, tt.cur))
		})
	}
}
