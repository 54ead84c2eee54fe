package dispatch

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/virtend/virtend/internal/ajax"
	"github.com/virtend/virtend/internal/cache"
	"github.com/virtend/virtend/internal/config"
	"github.com/virtend/virtend/internal/observability"
	"github.com/virtend/virtend/internal/router"
	"github.com/virtend/virtend/internal/util"
)

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *router.Registry) {
	t.Helper()

	reg := router.New(observability.NopLogger())

	store, err := cache.New(&config.CacheConfig{
		Enabled: true,
		Type:    config.CacheTypeMemory,
	}, observability.NopLogger())
	require.NoError(t, err)
	rc := cache.NewResponseCache(store, time.Minute, observability.NopLogger())
	t.Cleanup(func() { _ = rc.Close() })

	base := []Option{
		WithLogger(observability.NopLogger()),
		WithRegistry(reg),
		WithCache(rc),
	}
	return New(append(base, opts...)...), reg
}

func addEndpoint(t *testing.T, reg *router.Registry, method, pattern string, h ajax.Handler) *router.Endpoint {
	t.Helper()

	m, err := router.CompilePattern(pattern)
	require.NoError(t, err)

	ep, err := reg.Add(&router.Endpoint{Method: method, Matcher: m, Handler: h})
	require.NoError(t, err)
	return ep
}

// countingProxy fulfills every request with resp and counts invocations.
func countingProxy(calls *atomic.Int64, resp *ajax.Response) ajax.ProxyFunc {
	return func(_ context.Context, _ *ajax.Request) (*ajax.Response, error) {
		calls.Add(1)
		return resp, nil
	}
}

func TestEngine_Dispatch_Interception(t *testing.T) {
	var proxyCalls atomic.Int64
	e, reg := newTestEngine(t, WithProxy(countingProxy(&proxyCalls, ajax.NewResponse(200, nil, []byte("network")))))

	addEndpoint(t, reg, "GET", "/api/users", func(w ajax.ResponseWriter, r *ajax.Request) {
		_ = w.Send("virtual")
	})

	resp, err := e.Do(context.Background(), &ajax.Request{URL: "/api/users"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "virtual", resp.Text())
	assert.Equal(t, int64(0), proxyCalls.Load(), "intercepted request must not reach the proxy")
}

func TestEngine_Dispatch_TemplateParams(t *testing.T) {
	e, reg := newTestEngine(t)

	addEndpoint(t, reg, "GET", "/users/:id/posts/:postId", func(w ajax.ResponseWriter, r *ajax.Request) {
		_ = w.JSON(map[string]string{
			"id":     r.Params.Get("id"),
			"postId": r.Params.Get("postId"),
		})
	})

	resp, err := e.Do(context.Background(), &ajax.Request{URL: "/users/42/posts/7"}, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"42","postId":"7"}`, resp.Text())
}

func TestEngine_Dispatch_RegexpParams(t *testing.T) {
	e, reg := newTestEngine(t)

	re := regexp.MustCompile(`^/items/(\d+)(?:/(detail))?$`)
	ep, err := reg.Add(&router.Endpoint{
		Method:  "GET",
		Matcher: router.NewRegexpMatcher(re),
		Handler: func(w ajax.ResponseWriter, r *ajax.Request) {
			_ = w.JSON([]string{r.Params.At(0), r.Params.At(1)})
		},
	})
	require.NoError(t, err)
	defer reg.Remove(ep)

	// Optional group absent keeps its positional slot
	resp, err := e.Do(context.Background(), &ajax.Request{URL: "/items/99"}, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `["99",""]`, resp.Text())

	resp, err = e.Do(context.Background(), &ajax.Request{URL: "/items/99/detail"}, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `["99","detail"]`, resp.Text())
}

func TestEngine_Dispatch_MergedQuery(t *testing.T) {
	e, reg := newTestEngine(t)

	addEndpoint(t, reg, "GET", "/search", func(w ajax.ResponseWriter, r *ajax.Request) {
		_ = w.JSON(map[string]string{
			"q":    r.Query.Get("q"),
			"page": r.Query.Get("page"),
		})
	})

	req := &ajax.Request{
		URL:   "/search?q=from-url&page=1",
		Query: map[string][]string{"q": {"explicit-wins"}},
	}

	resp, err := e.Do(context.Background(), req, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"q":"explicit-wins","page":"1"}`, resp.Text())
}

func TestEngine_Dispatch_JSONBodyDecoded(t *testing.T) {
	e, reg := newTestEngine(t)

	addEndpoint(t, reg, "POST", "/orders", func(w ajax.ResponseWriter, r *ajax.Request) {
		body, ok := r.Body.(map[string]any)
		if !ok {
			_ = w.SendStatus(http.StatusBadRequest)
			return
		}
		_ = w.JSON(map[string]any{"received": body["item"]})
	})

	req := &ajax.Request{
		Method: "POST",
		URL:    "/orders",
		Header: http.Header{"Content-Type": {"application/json"}},
		Body:   []byte(`{"item":"widget"}`),
	}

	resp, err := e.Do(context.Background(), req, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"received":"widget"}`, resp.Text())
}

func TestEngine_Dispatch_RawBodyWithoutContentType(t *testing.T) {
	e, reg := newTestEngine(t)

	addEndpoint(t, reg, "POST", "/raw", func(w ajax.ResponseWriter, r *ajax.Request) {
		raw, ok := r.Body.([]byte)
		if !ok {
			_ = w.SendStatus(http.StatusBadRequest)
			return
		}
		_ = w.Send(string(raw))
	})

	req := &ajax.Request{
		Method: "POST",
		URL:    "/raw",
		Body:   []byte(`{"still":"raw"}`),
	}

	resp, err := e.Do(context.Background(), req, nil)
	require.NoError(t, err)
	assert.Equal(t, `{"still":"raw"}`, resp.Text())
}

func TestEngine_Dispatch_ProxiedResponseCached(t *testing.T) {
	var proxyCalls atomic.Int64
	e, _ := newTestEngine(t, WithProxy(countingProxy(&proxyCalls, ajax.NewResponse(200, nil, []byte("fresh")))))

	ctx := context.Background()
	req := &ajax.Request{URL: "/api/data"}

	resp, err := e.Do(ctx, req, nil)
	require.NoError(t, err)
	assert.Equal(t, "fresh", resp.Text())
	assert.Equal(t, int64(1), proxyCalls.Load())

	// Equal request is served from cache
	resp, err = e.Do(ctx, &ajax.Request{URL: "/api/data"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "fresh", resp.Text())
	assert.Equal(t, int64(1), proxyCalls.Load(), "second dispatch must hit the cache")
}

func TestEngine_Dispatch_InterceptedNeverCached(t *testing.T) {
	e, reg := newTestEngine(t)

	var handlerCalls atomic.Int64
	addEndpoint(t, reg, "GET", "/virtual", func(w ajax.ResponseWriter, r *ajax.Request) {
		handlerCalls.Add(1)
		_ = w.Send("synthesized")
	})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := e.Do(ctx, &ajax.Request{URL: "/virtual"}, nil)
		require.NoError(t, err)
	}

	assert.Equal(t, int64(3), handlerCalls.Load(), "handler responses are never cached")
}

func TestEngine_Dispatch_RejectedProxyNotCached(t *testing.T) {
	var calls atomic.Int64
	failing := func(_ context.Context, _ *ajax.Request) (*ajax.Response, error) {
		calls.Add(1)
		return nil, util.NewProxyError("/api/flaky", errors.New("connection refused"))
	}
	e, _ := newTestEngine(t, WithProxy(failing))

	ctx := context.Background()

	_, err := e.Do(ctx, &ajax.Request{URL: "/api/flaky"}, nil)
	require.Error(t, err)

	// Second dispatch proxies again: the failure was not cached
	_, err = e.Do(ctx, &ajax.Request{URL: "/api/flaky"}, nil)
	require.Error(t, err)
	assert.Equal(t, int64(2), calls.Load())
}

func TestEngine_Dispatch_ComparatorGatesCache(t *testing.T) {
	var proxyCalls atomic.Int64
	e, _ := newTestEngine(t, WithProxy(countingProxy(&proxyCalls, ajax.NewResponse(200, nil, []byte("ok")))))

	ctx := context.Background()

	_, err := e.Do(ctx, &ajax.Request{Method: "POST", URL: "/api/save", Body: []byte(`{"v":1}`)}, nil)
	require.NoError(t, err)
	require.Equal(t, int64(1), proxyCalls.Load())

	// Same signature but different payload re-dispatches
	_, err = e.Do(ctx, &ajax.Request{Method: "POST", URL: "/api/save", Body: []byte(`{"v":2}`)}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), proxyCalls.Load())

	// Equal payload is served from cache
	_, err = e.Do(ctx, &ajax.Request{Method: "POST", URL: "/api/save", Body: []byte(`{"v":2}`)}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), proxyCalls.Load())
}

func TestEngine_Dispatch_StructBodyHitsCache(t *testing.T) {
	var proxyCalls atomic.Int64
	e, _ := newTestEngine(t, WithProxy(countingProxy(&proxyCalls, ajax.NewResponse(200, nil, []byte("ok")))))

	ctx := context.Background()

	// Field declaration order differs from the canonical (sorted) key
	// order of the encoded JSON.
	type payload struct {
		Zeta  int    `json:"zeta"`
		Alpha string `json:"alpha"`
	}

	_, err := e.Do(ctx, &ajax.Request{Method: "POST", URL: "/api/save", Body: payload{Zeta: 1, Alpha: "x"}}, nil)
	require.NoError(t, err)
	require.Equal(t, int64(1), proxyCalls.Load())

	// The identical struct payload is served from cache
	_, err = e.Do(ctx, &ajax.Request{Method: "POST", URL: "/api/save", Body: payload{Zeta: 1, Alpha: "x"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), proxyCalls.Load(), "second dispatch must hit the cache")
}

func TestEngine_Do_ShortAggregation(t *testing.T) {
	e, _ := newTestEngine(t, WithProxy(countingProxy(new(atomic.Int64), ajax.NewResponse(200, nil, []byte("ok")))))

	// An aggregator that swallows settlements must surface an error from
	// Do, not panic it.
	short := func(ctx context.Context, total int, settlements <-chan ajax.Settlement) ([]ajax.Result, error) {
		for i := 0; i < total; i++ {
			<-settlements
		}
		return nil, nil
	}

	resp, err := e.Do(context.Background(), &ajax.Request{URL: "/api/data"}, &ajax.Options{Aggregator: short})
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, util.ErrShortAggregation)
}

func TestEngine_Dispatch_ForceReusesAnyEntry(t *testing.T) {
	var proxyCalls atomic.Int64
	e, _ := newTestEngine(t, WithProxy(countingProxy(&proxyCalls, ajax.NewResponse(200, nil, []byte("cached")))))

	ctx := context.Background()

	_, err := e.Do(ctx, &ajax.Request{Method: "POST", URL: "/api/save", Body: []byte(`{"v":1}`)}, nil)
	require.NoError(t, err)
	require.Equal(t, int64(1), proxyCalls.Load())

	// Different payload, but Force narrows matching to the signature
	resp, err := e.Do(ctx,
		&ajax.Request{Method: "POST", URL: "/api/save", Body: []byte(`{"v":999}`)},
		&ajax.Options{Force: true})
	require.NoError(t, err)
	assert.Equal(t, "cached", resp.Text())
	assert.Equal(t, int64(1), proxyCalls.Load())
}

func TestEngine_Dispatch_Passthrough(t *testing.T) {
	e, _ := newTestEngine(t, WithProxy(countingProxy(new(atomic.Int64), ajax.NewResponse(200, nil, []byte("net")))))

	items := []any{"plain string", 42, map[string]any{"k": "v"}}

	results, err := e.Dispatch(context.Background(), items, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.True(t, results[0].Fulfilled())
	assert.Equal(t, "plain string", results[0].Value)
	assert.Equal(t, 42, results[1].Value)
	assert.Equal(t, map[string]any{"k": "v"}, results[2].Value)
}

func TestEngine_Dispatch_MixedBatchPositionalOrder(t *testing.T) {
	e, reg := newTestEngine(t)

	// The slow endpoint settles last but keeps its slot
	addEndpoint(t, reg, "GET", "/slow", func(w ajax.ResponseWriter, r *ajax.Request) {
		time.Sleep(40 * time.Millisecond)
		_ = w.Send("slow")
	})
	addEndpoint(t, reg, "GET", "/fast", func(w ajax.ResponseWriter, r *ajax.Request) {
		_ = w.Send("fast")
	})

	items := []any{
		&ajax.Request{URL: "/slow"},
		"passthrough",
		&ajax.Request{URL: "/fast"},
	}

	results, err := e.Dispatch(context.Background(), items, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)

	resp, ok := results[0].Response()
	require.True(t, ok)
	assert.Equal(t, "slow", resp.Text())

	assert.Equal(t, "passthrough", results[1].Value)

	resp, ok = results[2].Response()
	require.True(t, ok)
	assert.Equal(t, "fast", resp.Text())
}

func TestEngine_Dispatch_AllSettled_RejectionDoesNotFailBatch(t *testing.T) {
	e, reg := newTestEngine(t)

	addEndpoint(t, reg, "GET", "/good", func(w ajax.ResponseWriter, r *ajax.Request) {
		_ = w.Send("good")
	})
	addEndpoint(t, reg, "GET", "/bad", func(w ajax.ResponseWriter, r *ajax.Request) {
		_ = w.SendStatus(500)
	})

	results, err := e.Dispatch(context.Background(), []any{
		&ajax.Request{URL: "/good"},
		&ajax.Request{URL: "/bad"},
	}, nil)
	require.NoError(t, err, "all-settled batches never fail")

	assert.True(t, results[0].Fulfilled())
	require.True(t, results[1].Rejected())

	var statusErr *util.StatusError
	require.ErrorAs(t, results[1].Err, &statusErr)
	assert.Equal(t, 500, statusErr.Code)
}

func TestEngine_Dispatch_FirstError_CancelsInFlight(t *testing.T) {
	unblocked := make(chan struct{})
	proxy := func(ctx context.Context, req *ajax.Request) (*ajax.Response, error) {
		if req.URL == "/hangs" {
			<-ctx.Done()
			close(unblocked)
			return nil, ctx.Err()
		}
		return nil, errors.New("boom")
	}
	e, _ := newTestEngine(t, WithProxy(proxy))

	results, err := e.Dispatch(context.Background(), []any{
		&ajax.Request{URL: "/hangs"},
		&ajax.Request{URL: "/fails"},
	}, &ajax.Options{Aggregator: ajax.FirstError})

	require.EqualError(t, err, "boom")
	require.True(t, results[1].Rejected())

	// The engine cancelled the child context when the aggregator returned
	select {
	case <-unblocked:
	case <-time.After(2 * time.Second):
		t.Fatal("in-flight proxy did not observe cancellation")
	}
}

func TestEngine_Dispatch_HandlerPanic(t *testing.T) {
	e, reg := newTestEngine(t)

	addEndpoint(t, reg, "GET", "/panics", func(w ajax.ResponseWriter, r *ajax.Request) {
		panic("kaboom")
	})

	_, err := e.Do(context.Background(), &ajax.Request{URL: "/panics"}, nil)
	require.Error(t, err)

	var panicErr *util.HandlerPanicError
	require.ErrorAs(t, err, &panicErr)
	assert.Equal(t, "kaboom", panicErr.Value)
	assert.NotEmpty(t, panicErr.Stack)
}

func TestEngine_Dispatch_PanicAfterCompletion(t *testing.T) {
	e, reg := newTestEngine(t)

	addEndpoint(t, reg, "GET", "/late-panic", func(w ajax.ResponseWriter, r *ajax.Request) {
		_ = w.Send("done")
		panic("after completion")
	})

	// The completion wins; the panic is logged but changes nothing
	resp, err := e.Do(context.Background(), &ajax.Request{URL: "/late-panic"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "done", resp.Text())
}

func TestEngine_Dispatch_AsyncHandlerCompletion(t *testing.T) {
	e, reg := newTestEngine(t)

	addEndpoint(t, reg, "GET", "/deferred", func(w ajax.ResponseWriter, r *ajax.Request) {
		go func() {
			time.Sleep(20 * time.Millisecond)
			_ = w.Send("eventually")
		}()
	})

	resp, err := e.Do(context.Background(), &ajax.Request{URL: "/deferred"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "eventually", resp.Text())
}

func TestEngine_Dispatch_HandlerNeverCompletes(t *testing.T) {
	e, reg := newTestEngine(t)

	addEndpoint(t, reg, "GET", "/silent", func(w ajax.ResponseWriter, r *ajax.Request) {
		// Returns without a terminal call
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	results, _ := e.Dispatch(ctx, []any{&ajax.Request{URL: "/silent"}}, nil)
	require.Len(t, results, 1)
	require.True(t, results[0].Rejected())
	assert.ErrorIs(t, results[0].Err, context.DeadlineExceeded)
}

func TestEngine_Dispatch_EndpointDelay(t *testing.T) {
	e, reg := newTestEngine(t)

	m, err := router.CompilePattern("/delayed")
	require.NoError(t, err)
	_, err = reg.Add(&router.Endpoint{
		Method:  "GET",
		Matcher: m,
		Delay:   30 * time.Millisecond,
		Handler: func(w ajax.ResponseWriter, r *ajax.Request) {
			_ = w.Send("late")
		},
	})
	require.NoError(t, err)

	start := time.Now()
	resp, err := e.Do(context.Background(), &ajax.Request{URL: "/delayed"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "late", resp.Text())
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestEngine_Dispatch_NoProxyConfigured(t *testing.T) {
	e := New(WithLogger(observability.NopLogger()))

	_, err := e.Do(context.Background(), &ajax.Request{URL: "/anywhere"}, nil)
	assert.ErrorIs(t, err, util.ErrNoProxy)
}

func TestEngine_Dispatch_ProxyToOverride(t *testing.T) {
	var engineProxy, callProxy atomic.Int64
	e, _ := newTestEngine(t, WithProxy(countingProxy(&engineProxy, ajax.NewResponse(200, nil, []byte("engine")))))

	resp, err := e.Do(context.Background(), &ajax.Request{URL: "/somewhere"}, &ajax.Options{
		ProxyTo: countingProxy(&callProxy, ajax.NewResponse(200, nil, []byte("override"))),
	})
	require.NoError(t, err)
	assert.Equal(t, "override", resp.Text())
	assert.Equal(t, int64(0), engineProxy.Load())
	assert.Equal(t, int64(1), callProxy.Load())
}

func TestEngine_Dispatch_EmptyBatch(t *testing.T) {
	e, _ := newTestEngine(t)

	results, err := e.Dispatch(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestEngine_Dispatch_RequestValueItem(t *testing.T) {
	e, reg := newTestEngine(t)

	addEndpoint(t, reg, "GET", "/value", func(w ajax.ResponseWriter, r *ajax.Request) {
		_ = w.Send("by value")
	})

	results, err := e.Dispatch(context.Background(), []any{
		ajax.Request{URL: "/value"},
	}, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)

	resp, ok := results[0].Response()
	require.True(t, ok)
	assert.Equal(t, "by value", resp.Text())
}

func TestEngine_NestedDispatch(t *testing.T) {
	e, reg := newTestEngine(t)

	addEndpoint(t, reg, "GET", "/inner", func(w ajax.ResponseWriter, r *ajax.Request) {
		_ = w.Send("inner value")
	})
	addEndpoint(t, reg, "GET", "/outer", func(w ajax.ResponseWriter, r *ajax.Request) {
		inner, err := r.Do(r.Context(), &ajax.Request{URL: "/inner"}, nil)
		if err != nil {
			_ = w.SendStatus(http.StatusBadGateway)
			return
		}
		_ = w.Send("outer saw: " + inner.Text())
	})

	resp, err := e.Do(context.Background(), &ajax.Request{URL: "/outer"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "outer saw: inner value", resp.Text())
}

func TestEngine_SetIntercepting(t *testing.T) {
	var proxyCalls atomic.Int64
	e, reg := newTestEngine(t, WithProxy(countingProxy(&proxyCalls, ajax.NewResponse(200, nil, []byte("network")))))

	addEndpoint(t, reg, "GET", "/api/users", func(w ajax.ResponseWriter, r *ajax.Request) {
		_ = w.Send("virtual")
	})

	require.True(t, e.Intercepting())
	e.SetIntercepting(false)

	resp, err := e.Do(context.Background(), &ajax.Request{URL: "/api/users"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "network", resp.Text())
	assert.Equal(t, int64(1), proxyCalls.Load())
}

func TestEngine_Dispatch_GuardedEndpoint(t *testing.T) {
	var proxyCalls atomic.Int64
	e, reg := newTestEngine(t, WithProxy(countingProxy(&proxyCalls, ajax.NewResponse(200, nil, []byte("network")))))

	guard, err := router.NewGuard(`'debug' in query`)
	require.NoError(t, err)

	m, err := router.CompilePattern("/api/data")
	require.NoError(t, err)
	_, err = reg.Add(&router.Endpoint{
		Method:  "GET",
		Matcher: m,
		Guard:   guard,
		Handler: func(w ajax.ResponseWriter, r *ajax.Request) {
			_ = w.Send("debug view")
		},
	})
	require.NoError(t, err)

	// Guard rejects: request goes to the network
	resp, err := e.Do(context.Background(), &ajax.Request{URL: "/api/data"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "network", resp.Text())

	// Guard accepts: request is intercepted
	resp, err = e.Do(context.Background(), &ajax.Request{URL: "/api/data?debug=1"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "debug view", resp.Text())
}

func TestDecodeHandlerBody(t *testing.T) {
	jsonHeader := http.Header{"Content-Type": {"application/json"}}

	tests := []struct {
		name     string
		req      *ajax.Request
		expected any
	}{
		{
			name:     "nil body",
			req:      &ajax.Request{},
			expected: nil,
		},
		{
			name:     "structured body passes through",
			req:      &ajax.Request{Body: map[string]any{"k": "v"}},
			expected: map[string]any{"k": "v"},
		},
		{
			name:     "json bytes decoded",
			req:      &ajax.Request{Header: jsonHeader, Body: []byte(`{"n":1}`)},
			expected: map[string]any{"n": 1.0},
		},
		{
			name:     "json string decoded",
			req:      &ajax.Request{Header: jsonHeader, Body: `[1,2]`},
			expected: []any{1.0, 2.0},
		},
		{
			name:     "bytes without content type stay raw",
			req:      &ajax.Request{Body: []byte(`{"n":1}`)},
			expected: []byte(`{"n":1}`),
		},
		{
			name:     "invalid json stays raw",
			req:      &ajax.Request{Header: jsonHeader, Body: []byte(`{broken`)},
			expected: []byte(`{broken`),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := decodeHandlerBody(tt.req, observability.NopLogger())
			assert.Equal(t, tt.expected, got)
		})
	}
}
