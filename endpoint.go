package virtend

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/virtend/virtend/internal/router"
	"github.com/virtend/virtend/internal/util"
)

// EndpointOption configures a registration.
type EndpointOption func(*router.Endpoint) error

// WithName labels the endpoint in logs and the admin listing.
func WithName(name string) EndpointOption {
	return func(ep *router.Endpoint) error {
		ep.Name = name
		return nil
	}
}

// WithGuard restricts interception to requests the CEL expression
// accepts. The expression sees method, path, params, query, and header;
// requests it turns down fall through to the next endpoint, the cache,
// and the proxy.
func WithGuard(expr string) EndpointOption {
	return func(ep *router.Endpoint) error {
		guard, err := router.NewGuard(expr)
		if err != nil {
			return err
		}
		ep.Guard = guard
		return nil
	}
}

// WithDelay applies synthetic latency before the handler runs.
func WithDelay(d time.Duration) EndpointOption {
	return func(ep *router.Endpoint) error {
		if d < 0 {
			return fmt.Errorf("negative delay %v", d)
		}
		ep.Delay = d
		return nil
	}
}

// Add registers a virtual endpoint intercepting requests whose method
// and URL match. Patterns are literal paths, :name templates, or
// wildcard forms with * and ?; method "" or "*" matches any method.
// Endpoints match in registration order: the first whose method,
// pattern, and guard all accept a request wins, so overlapping
// registrations shadow rather than conflict.
func (i *Interceptor) Add(method, pattern string, h Handler, opts ...EndpointOption) (*Endpoint, error) {
	matcher, err := router.CompilePattern(pattern)
	if err != nil {
		return nil, err
	}
	return i.register(method, matcher, h, opts)
}

// AddRegexp registers a virtual endpoint matching request paths against
// re. Capture groups fill Params positionally, with empty-string slots
// for groups that did not participate; named groups also fill
// Params.Named.
func (i *Interceptor) AddRegexp(method string, re *regexp.Regexp, h Handler, opts ...EndpointOption) (*Endpoint, error) {
	if re == nil {
		return nil, fmt.Errorf("%w: nil regexp", util.ErrInvalidPattern)
	}
	return i.register(method, router.NewRegexpMatcher(re), h, opts)
}

// MustAdd is like Add but panics on error, for package-level
// registration of known-good endpoints.
func (i *Interceptor) MustAdd(method, pattern string, h Handler, opts ...EndpointOption) *Endpoint {
	ep, err := i.Add(method, pattern, h, opts...)
	if err != nil {
		panic("virtend: Add(" + strconv.Quote(pattern) + "): " + err.Error())
	}
	return ep
}

// Remove unregisters an endpoint. Returns false when the endpoint is not
// registered, including after Destroy.
func (i *Interceptor) Remove(ep *Endpoint) bool {
	return i.registry.Remove(ep)
}

// register stamps and stores a built endpoint.
func (i *Interceptor) register(method string, matcher router.Matcher, h Handler, opts []EndpointOption) (*Endpoint, error) {
	if i.Destroyed() {
		return nil, util.ErrDestroyed
	}

	ep := &router.Endpoint{
		Method:       method,
		Matcher:      matcher,
		Handler:      h,
		RegisteredAt: i.now(),
	}
	for _, opt := range opts {
		if err := opt(ep); err != nil {
			return nil, err
		}
	}
	return i.registry.Add(ep)
}
