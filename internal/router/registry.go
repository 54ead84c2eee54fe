package router

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/virtend/virtend/internal/ajax"
	"github.com/virtend/virtend/internal/observability"
)

// Match is the outcome of a successful resolution.
type Match struct {
	Endpoint *Endpoint
	Params   ajax.Params
}

// Registry is the ordered collection of registered endpoints.
//
// Resolution walks endpoints strictly in registration order and returns
// the first whose method, matcher, and guard all accept the request, so
// overlapping registrations shadow rather than conflict. Removing an
// earlier registration makes a shadowed one reachable again.
type Registry struct {
	logger observability.Logger

	mu        sync.RWMutex
	endpoints []*Endpoint
}

// New creates an empty registry.
func New(logger observability.Logger) *Registry {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Registry{
		logger:    logger,
		endpoints: make([]*Endpoint, 0),
	}
}

// Add registers an endpoint and assigns its ID. The same endpoint value
// cannot be registered twice; register a fresh value instead.
func (r *Registry) Add(ep *Endpoint) (*Endpoint, error) {
	if err := ep.Validate(); err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.endpoints {
		if existing == ep {
			return nil, fmt.Errorf("endpoint %s already registered", ep.ID)
		}
	}

	ep.ID = newEndpointID()
	ep.Method = ep.canonicalMethod()
	if ep.RegisteredAt.IsZero() {
		ep.RegisteredAt = time.Now()
	}

	r.endpoints = append(r.endpoints, ep)
	GetRouterMetrics().endpointsGauge.Set(float64(len(r.endpoints)))

	r.logger.Debug("endpoint registered",
		observability.String("id", ep.ID),
		observability.String("method", ep.Method),
		observability.String("pattern", ep.Matcher.Pattern()),
		observability.String("type", ep.Matcher.Type()))

	return ep, nil
}

// Remove unregisters an endpoint. Removing an endpoint that is not
// registered is a no-op and returns false.
func (r *Registry) Remove(ep *Endpoint) bool {
	if ep == nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for i, existing := range r.endpoints {
		if existing == ep {
			r.removeAt(i)
			return true
		}
	}
	return false
}

// RemoveID unregisters the endpoint with the given ID. Returns false
// when no such registration exists.
func (r *Registry) RemoveID(id string) bool {
	if id == "" {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for i, existing := range r.endpoints {
		if existing.ID == id {
			r.removeAt(i)
			return true
		}
	}
	return false
}

// removeAt removes the endpoint at index i.
// Must be called with lock held.
func (r *Registry) removeAt(i int) {
	ep := r.endpoints[i]
	r.endpoints = append(r.endpoints[:i], r.endpoints[i+1:]...)
	GetRouterMetrics().endpointsGauge.Set(float64(len(r.endpoints)))

	r.logger.Debug("endpoint removed",
		observability.String("id", ep.ID),
		observability.String("method", ep.Method),
		observability.String("pattern", ep.Matcher.Pattern()))
}

// Resolve finds the first endpoint, in registration order, whose method,
// matcher, and guard all accept the request. A guard evaluation error
// counts as a non-match and is logged at warn level.
func (r *Registry) Resolve(method, path string, env GuardEnv) (*Match, bool) {
	canonical := strings.ToUpper(strings.TrimSpace(method))

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, ep := range r.endpoints {
		if !ep.matchesMethod(canonical) {
			continue
		}

		ok, params := ep.Matcher.Match(path)
		if !ok {
			continue
		}

		if ep.Guard != nil {
			allowed, err := ep.Guard.Eval(canonical, path, params, env)
			if err != nil {
				r.logger.Warn("guard evaluation failed, skipping endpoint",
					observability.String("id", ep.ID),
					observability.String("guard", ep.Guard.Expr()),
					observability.Error(err))
				continue
			}
			if !allowed {
				continue
			}
		}

		GetRouterMetrics().resolveTotal.WithLabelValues("hit").Inc()
		return &Match{Endpoint: ep, Params: params}, true
	}

	GetRouterMetrics().resolveTotal.WithLabelValues("miss").Inc()
	return nil, false
}

// Len returns the number of registered endpoints.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.endpoints)
}

// Clear removes every registration and returns how many were removed.
func (r *Registry) Clear() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.endpoints)
	r.endpoints = r.endpoints[:0]
	GetRouterMetrics().endpointsGauge.Set(0)

	if n > 0 {
		r.logger.Debug("registry cleared",
			observability.Int("removed", n))
	}
	return n
}

// Snapshot returns the admin view of every registration, in
// registration order.
func (r *Registry) Snapshot() []EndpointInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]EndpointInfo, 0, len(r.endpoints))
	for _, ep := range r.endpoints {
		info := EndpointInfo{
			ID:           ep.ID,
			Name:         ep.Name,
			Method:       ep.Method,
			Pattern:      ep.Matcher.Pattern(),
			PatternType:  ep.Matcher.Type(),
			DelayMs:      ep.Delay.Milliseconds(),
			RegisteredAt: ep.RegisteredAt,
		}
		if ep.Guard != nil {
			info.Guard = ep.Guard.Expr()
		}
		infos = append(infos, info)
	}
	return infos
}
