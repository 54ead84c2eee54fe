package util

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// knownMethods is the accepted HTTP method set. "*" is the any-method
// wildcard used by endpoint registrations.
var knownMethods = map[string]struct{}{
	"GET": {}, "HEAD": {}, "POST": {}, "PUT": {}, "PATCH": {},
	"DELETE": {}, "OPTIONS": {}, "TRACE": {}, "CONNECT": {}, "*": {},
}

// tokenChars matches an RFC 7230 header field name.
var tokenChars = regexp.MustCompile("^[!#$%&'*+\\-.^_`|~0-9A-Za-z]+$")

// ValidateHTTPMethod rejects methods outside the known verb set.
// Matching is case-insensitive.
func ValidateHTTPMethod(method string) error {
	if _, ok := knownMethods[strings.ToUpper(method)]; !ok {
		return fmt.Errorf("unknown HTTP method %q", method)
	}
	return nil
}

// ValidateHTTPStatusCode rejects codes outside the 1xx-5xx range.
func ValidateHTTPStatusCode(code int) error {
	if code < 100 || code > 599 {
		return fmt.Errorf("status code %d out of range 100-599", code)
	}
	return nil
}

// ValidateHeaderName rejects names that are not valid header field
// names.
func ValidateHeaderName(name string) error {
	if !tokenChars.MatchString(name) {
		return fmt.Errorf("invalid header name %q", name)
	}
	return nil
}

// ValidateRegex rejects patterns that do not compile. The empty pattern
// is fine; it means "no pattern given" in fixture declarations.
func ValidateRegex(pattern string) error {
	if pattern == "" {
		return nil
	}
	if _, err := regexp.Compile(pattern); err != nil {
		return fmt.Errorf("bad regexp %q: %w", pattern, err)
	}
	return nil
}

// ValidateURL rejects anything that is not an absolute http or https
// URL with a host.
func ValidateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("bad URL %q: %w", raw, err)
	}
	switch {
	case u.Scheme != "http" && u.Scheme != "https":
		return fmt.Errorf("URL %q: scheme must be http or https", raw)
	case u.Host == "":
		return fmt.Errorf("URL %q has no host", raw)
	}
	return nil
}

// ValidateNonEmpty rejects blank values, naming the offending field.
func ValidateNonEmpty(value, field string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s must not be empty", field)
	}
	return nil
}
