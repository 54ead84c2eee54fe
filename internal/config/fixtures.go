package config

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/virtend/virtend/internal/util"
)

// FixtureFile is the root of a fixture YAML document: a list of
// declaratively registered endpoints answering with static responses.
type FixtureFile struct {
	// Endpoints are registered in file order, so earlier entries shadow
	// later ones on overlapping patterns.
	Endpoints []FixtureEndpoint `yaml:"endpoints" json:"endpoints"`
}

// FixtureEndpoint declares one virtual endpoint.
type FixtureEndpoint struct {
	// Name is an optional label used in logs and the admin listing.
	Name string `yaml:"name,omitempty" json:"name,omitempty"`

	// Method is the HTTP method filter. Empty or "*" matches any method.
	Method string `yaml:"method,omitempty" json:"method,omitempty"`

	// Pattern is a literal or :name template path pattern. Exactly one
	// of Pattern, Regexp, and Prefix must be set.
	Pattern string `yaml:"pattern,omitempty" json:"pattern,omitempty"`

	// Regexp is a regular-expression path pattern.
	Regexp string `yaml:"regexp,omitempty" json:"regexp,omitempty"`

	// Prefix is a path-prefix pattern matched at segment boundaries.
	Prefix string `yaml:"prefix,omitempty" json:"prefix,omitempty"`

	// Guard is an optional CEL predicate restricting interception.
	Guard string `yaml:"guard,omitempty" json:"guard,omitempty"`

	// Delay is synthetic latency applied before responding.
	Delay Duration `yaml:"delay,omitempty" json:"delay,omitempty"`

	// Response describes the static response.
	Response FixtureResponse `yaml:"response" json:"response"`
}

// FixtureResponse describes the static response of a fixture endpoint.
type FixtureResponse struct {
	// Status is the response status code. Zero means 200; values of
	// 400 and above reject the intercepted request. Statuses other than
	// 200 answer with the standard reason phrase, so JSON and Body
	// require a 200 status.
	Status int `yaml:"status,omitempty" json:"status,omitempty"`

	// Headers are attached to the response.
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`

	// JSON is an arbitrary document sent as application/json. Mutually
	// exclusive with Body.
	JSON any `yaml:"json,omitempty" json:"json,omitempty"`

	// Body is a plain-text response body. Mutually exclusive with JSON.
	Body string `yaml:"body,omitempty" json:"body,omitempty"`
}

// ValidationError represents a fixture validation error.
type ValidationError struct {
	Path    string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// HasErrors returns true if there are validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// ValidateFixtures validates a fixture file.
func ValidateFixtures(f *FixtureFile) error {
	v := &fixtureValidator{}
	return v.validate(f)
}

// fixtureValidator accumulates validation errors with field paths.
type fixtureValidator struct {
	errors ValidationErrors
}

func (v *fixtureValidator) addError(path, message string) {
	v.errors = append(v.errors, ValidationError{Path: path, Message: message})
}

func (v *fixtureValidator) validate(f *FixtureFile) error {
	if f == nil {
		v.addError("", "fixture file is nil")
		return v.errors
	}

	for i := range f.Endpoints {
		v.validateEndpoint(fmt.Sprintf("endpoints[%d]", i), &f.Endpoints[i])
	}

	if v.errors.HasErrors() {
		return v.errors
	}
	return nil
}

func (v *fixtureValidator) validateEndpoint(path string, ep *FixtureEndpoint) {
	forms := 0
	for _, form := range []string{ep.Pattern, ep.Regexp, ep.Prefix} {
		if form != "" {
			forms++
		}
	}
	if forms == 0 {
		v.addError(path, "one of pattern, regexp, or prefix is required")
	}
	if forms > 1 {
		v.addError(path, "pattern, regexp, and prefix are mutually exclusive")
	}
	if ep.Regexp != "" {
		if err := util.ValidateRegex(ep.Regexp); err != nil {
			v.addError(path+".regexp", err.Error())
		}
	}
	if ep.Method != "" {
		if err := util.ValidateHTTPMethod(ep.Method); err != nil {
			v.addError(path+".method", err.Error())
		}
	}
	if ep.Delay < 0 {
		v.addError(path+".delay", "delay cannot be negative")
	}

	v.validateResponse(path+".response", &ep.Response)
}

func (v *fixtureValidator) validateResponse(path string, r *FixtureResponse) {
	if r.Status != 0 {
		if err := util.ValidateHTTPStatusCode(r.Status); err != nil {
			v.addError(path+".status", err.Error())
		}
	}
	if r.JSON != nil && r.Body != "" {
		v.addError(path, "json and body are mutually exclusive")
	}
	if (r.JSON != nil || r.Body != "") && r.Status != 0 && r.Status != http.StatusOK {
		v.addError(path, "json and body require status 200")
	}
	for name := range r.Headers {
		if err := util.ValidateHeaderName(name); err != nil {
			v.addError(path+".headers", err.Error())
		}
	}
}
