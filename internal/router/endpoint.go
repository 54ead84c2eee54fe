package router

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/virtend/virtend/internal/ajax"
	"github.com/virtend/virtend/internal/util"
)

// Endpoint is a registered virtual endpoint: a method filter, a path
// matcher, and the handler invoked when both accept a request. The
// registered value itself is the removal token.
type Endpoint struct {
	// ID uniquely identifies the registration. Assigned by Add.
	ID string

	// Name is an optional human-readable label used in logs and the
	// admin listing.
	Name string

	// Method is the HTTP method filter, upper-cased. "*" matches any
	// method.
	Method string

	// Matcher decides whether a path belongs to this endpoint.
	Matcher Matcher

	// Handler answers intercepted requests.
	Handler ajax.Handler

	// Guard optionally restricts interception to requests the CEL
	// predicate accepts.
	Guard *Guard

	// Delay is synthetic latency applied before the handler runs.
	Delay time.Duration

	// RegisteredAt records when the endpoint was added.
	RegisteredAt time.Time
}

// Validate checks that the endpoint can be registered.
func (e *Endpoint) Validate() error {
	if e == nil {
		return fmt.Errorf("nil endpoint")
	}
	if e.Handler == nil {
		return util.ErrNilHandler
	}
	if e.Matcher == nil {
		return fmt.Errorf("%w: endpoint has no matcher", util.ErrInvalidPattern)
	}
	return util.ValidateHTTPMethod(e.canonicalMethod())
}

// matchesMethod reports whether the endpoint accepts the canonical
// request method.
func (e *Endpoint) matchesMethod(method string) bool {
	m := e.canonicalMethod()
	return m == "*" || m == method
}

// canonicalMethod returns the upper-cased method, defaulting to "*".
func (e *Endpoint) canonicalMethod() string {
	m := strings.ToUpper(strings.TrimSpace(e.Method))
	if m == "" {
		return "*"
	}
	return m
}

// Label returns the endpoint's name when set, otherwise its pattern.
func (e *Endpoint) Label() string {
	if e.Name != "" {
		return e.Name
	}
	return e.Matcher.Pattern()
}

// EndpointInfo is the admin-facing snapshot of a registration.
type EndpointInfo struct {
	ID           string    `json:"id"`
	Name         string    `json:"name,omitempty"`
	Method       string    `json:"method"`
	Pattern      string    `json:"pattern"`
	PatternType  string    `json:"patternType"`
	Guard        string    `json:"guard,omitempty"`
	DelayMs      int64     `json:"delayMs,omitempty"`
	RegisteredAt time.Time `json:"registeredAt"`
}

// newEndpointID generates a unique registration ID.
func newEndpointID() string {
	return uuid.NewString()
}
