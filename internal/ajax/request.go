package ajax

import (
	"context"
	"maps"
	"mime"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/virtend/virtend/internal/util"
)

// Params holds the values extracted from a URL by a pattern match.
//
// Placeholder patterns fill Named (placeholder name to segment value) and
// mirror the values into Positional in template order. Regular-expression
// patterns fill Positional with the capture groups in group order, keeping
// an empty-string slot for groups that did not participate so indices stay
// stable; named groups additionally populate Named.
type Params struct {
	Named      map[string]string
	Positional []string
}

// Get returns the named parameter value, or "" when absent.
func (p Params) Get(name string) string {
	return p.Named[name]
}

// Has reports whether the named parameter is present.
func (p Params) Has(name string) bool {
	_, ok := p.Named[name]
	return ok
}

// At returns the positional parameter at index i, or "" when out of range.
func (p Params) At(i int) string {
	if i < 0 || i >= len(p.Positional) {
		return ""
	}
	return p.Positional[i]
}

// Len returns the number of positional parameter slots.
func (p Params) Len() int {
	return len(p.Positional)
}

// clone returns a deep copy of the params.
func (p Params) clone() Params {
	out := Params{}
	if p.Named != nil {
		out.Named = maps.Clone(p.Named)
	}
	if p.Positional != nil {
		out.Positional = slices.Clone(p.Positional)
	}
	return out
}

// DispatchFunc dispatches a mixed list of items and returns their
// positional results. The dispatch engine binds its own implementation to
// handler-facing requests so nested dispatches from inside handlers run
// with interception and caching.
type DispatchFunc func(ctx context.Context, items []any, opts *Options) ([]Result, error)

// Request describes a request to dispatch. Callers construct it as a plain
// literal; the dispatch engine additionally binds a context, the match
// params, and a dispatch function before handing it to a handler.
type Request struct {
	// Method is the HTTP method. Empty means GET.
	Method string

	// URL is the request target: a path, optionally with a query string,
	// or an absolute URL.
	URL string

	// Query holds explicit query parameters. They are merged over any
	// query string carried by URL; on a key collision Query wins.
	Query url.Values

	// Header holds request headers.
	Header http.Header

	// Body is the request payload: raw bytes, a string, or an already
	// structured value.
	Body any

	// Params holds pattern-match parameters. Populated only on
	// handler-facing requests.
	Params Params

	ctx      context.Context
	dispatch DispatchFunc
}

// CanonicalMethod returns the upper-cased method, defaulting to GET.
func (r *Request) CanonicalMethod() string {
	m := strings.ToUpper(strings.TrimSpace(r.Method))
	if m == "" {
		return http.MethodGet
	}
	return m
}

// Path returns the path component of URL. Pattern matching and endpoint
// resolution operate on this value, so absolute and relative request URLs
// match the same endpoints.
func (r *Request) Path() string {
	u, err := url.Parse(r.URL)
	if err != nil {
		return r.URL
	}
	if u.Path == "" {
		return r.URL
	}
	return u.Path
}

// MergedQuery returns the canonical query view: parameters parsed from the
// URL query string with the explicit Query values laid over them. The
// result is a copy; mutating it does not affect the request.
func (r *Request) MergedQuery() url.Values {
	merged := url.Values{}
	if u, err := url.Parse(r.URL); err == nil {
		for k, vs := range u.Query() {
			merged[k] = slices.Clone(vs)
		}
	}
	for k, vs := range r.Query {
		merged[k] = slices.Clone(vs)
	}
	return merged
}

// Context returns the bound context, or context.Background when the
// request is not handler-bound.
func (r *Request) Context() context.Context {
	if r.ctx != nil {
		return r.ctx
	}
	return context.Background()
}

// Bind returns a copy of r bound to ctx and a dispatch function. The
// dispatch engine calls it when building the handler-facing request.
func (r *Request) Bind(ctx context.Context, fn DispatchFunc) *Request {
	out := r.Clone()
	out.ctx = ctx
	out.dispatch = fn
	return out
}

// Dispatch dispatches items through the engine this request is bound to.
// It returns ErrNoDispatcher on requests constructed outside a handler.
func (r *Request) Dispatch(ctx context.Context, items []any, opts *Options) ([]Result, error) {
	if r.dispatch == nil {
		return nil, util.ErrNoDispatcher
	}
	return r.dispatch(ctx, items, opts)
}

// Do dispatches a single request through the engine this request is bound
// to and unwraps its settlement.
func (r *Request) Do(ctx context.Context, req *Request, opts *Options) (*Response, error) {
	results, err := r.Dispatch(ctx, []any{req}, opts)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, util.ErrShortAggregation
	}
	res := results[0]
	if res.Rejected() {
		return nil, res.Err
	}
	resp, _ := res.Response()
	return resp, nil
}

// Clone returns a copy of r with its own query, header, and params. The
// body value and any handler bindings are carried over as-is.
func (r *Request) Clone() *Request {
	out := &Request{
		Method:   r.Method,
		URL:      r.URL,
		Body:     r.Body,
		Params:   r.Params.clone(),
		ctx:      r.ctx,
		dispatch: r.dispatch,
	}
	if r.Query != nil {
		out.Query = url.Values{}
		for k, vs := range r.Query {
			out.Query[k] = slices.Clone(vs)
		}
	}
	if r.Header != nil {
		out.Header = r.Header.Clone()
	}
	return out
}

// HasJSONContentType reports whether the header declares a JSON payload.
// An absent Content-Type returns false.
func HasJSONContentType(h http.Header) bool {
	ct := h.Get("Content-Type")
	if ct == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(strings.Split(ct, ";")[0]))
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}
