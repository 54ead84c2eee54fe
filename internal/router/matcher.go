package router

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/virtend/virtend/internal/ajax"
	"github.com/virtend/virtend/internal/util"
)

// Matcher decides whether a request path belongs to an endpoint and
// extracts whatever parameters the pattern declares.
type Matcher interface {
	Match(path string) (bool, ajax.Params)

	// Type names the pattern style: exact, prefix, template, wildcard,
	// or regexp.
	Type() string

	// Pattern returns the pattern the matcher was built from.
	Pattern() string
}

// CompilePattern compiles a URL pattern into a matcher.
//
// Patterns containing :name segments yield a template matcher with one
// named parameter per placeholder. Patterns containing wildcards (* or
// ?) yield a wildcard matcher. Everything else matches exactly.
func CompilePattern(pattern string) (Matcher, error) {
	switch {
	case pattern == "":
		return nil, fmt.Errorf("%w: empty pattern", util.ErrInvalidPattern)
	case HasTemplateParams(pattern):
		return NewTemplateMatcher(pattern)
	case HasWildcards(pattern):
		return NewWildcardMatcher(pattern)
	default:
		return NewExactMatcher(pattern), nil
	}
}

// HasTemplateParams reports whether pattern contains :name placeholder
// segments. A bare colon is not a placeholder.
func HasTemplateParams(pattern string) bool {
	for _, part := range strings.Split(pattern, "/") {
		if len(part) > 1 && part[0] == ':' {
			return true
		}
	}
	return false
}

// HasWildcards reports whether pattern contains * or ? wildcards.
func HasWildcards(pattern string) bool {
	return strings.ContainsAny(pattern, "*?")
}

// ExactMatcher matches one path and nothing else.
type ExactMatcher struct {
	path string
}

// NewExactMatcher creates an exact path matcher.
func NewExactMatcher(path string) *ExactMatcher {
	return &ExactMatcher{path: path}
}

func (m *ExactMatcher) Match(path string) (bool, ajax.Params) {
	return path == m.path, ajax.Params{}
}

func (m *ExactMatcher) Type() string { return "exact" }

func (m *ExactMatcher) Pattern() string { return m.path }

// PrefixMatcher matches every path under a prefix, honoring segment
// boundaries: /api matches /api and /api/x but not /apix.
type PrefixMatcher struct {
	prefix string
}

// NewPrefixMatcher creates a prefix path matcher.
func NewPrefixMatcher(prefix string) *PrefixMatcher {
	return &PrefixMatcher{prefix: prefix}
}

func (m *PrefixMatcher) Match(path string) (bool, ajax.Params) {
	rest, found := strings.CutPrefix(path, m.prefix)
	ok := found &&
		(rest == "" || rest[0] == '/' || strings.HasSuffix(m.prefix, "/"))
	return ok, ajax.Params{}
}

func (m *PrefixMatcher) Type() string { return "prefix" }

func (m *PrefixMatcher) Pattern() string { return m.prefix }

// TemplateMatcher matches paths with :name placeholder segments like
// /food/:kind. A placeholder matches exactly one non-empty segment.
type TemplateMatcher struct {
	pattern string
	names   []string
	regex   *regexp.Regexp
}

// placeholderName constrains placeholder names to what regexp group
// names accept.
var placeholderName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// NewTemplateMatcher compiles pattern into an anchored regular
// expression with one named group per placeholder.
func NewTemplateMatcher(pattern string) (*TemplateMatcher, error) {
	var (
		expr  strings.Builder
		names []string
		seen  = make(map[string]bool)
	)
	expr.WriteByte('^')

	for _, part := range strings.Split(strings.Trim(pattern, "/"), "/") {
		if part == "" {
			continue
		}
		name, isPlaceholder := strings.CutPrefix(part, ":")
		if !isPlaceholder || name == "" {
			expr.WriteByte('/')
			expr.WriteString(regexp.QuoteMeta(part))
			continue
		}

		if !placeholderName.MatchString(name) {
			return nil, fmt.Errorf("%w: bad placeholder %q in %q",
				util.ErrInvalidPattern, part, pattern)
		}
		if seen[name] {
			return nil, fmt.Errorf("%w: duplicate placeholder %q in %q",
				util.ErrInvalidPattern, name, pattern)
		}
		seen[name] = true
		names = append(names, name)
		expr.WriteString("/(?P<" + name + ">[^/]+)")
	}
	expr.WriteByte('$')

	regex, err := regexp.Compile(expr.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrInvalidPattern, err)
	}

	return &TemplateMatcher{pattern: pattern, names: names, regex: regex}, nil
}

// Match extracts both named and positional parameters, the latter in
// placeholder order.
func (m *TemplateMatcher) Match(path string) (bool, ajax.Params) {
	groups := m.regex.FindStringSubmatch(path)
	if groups == nil {
		return false, ajax.Params{}
	}

	params := ajax.Params{
		Named:      make(map[string]string, len(m.names)),
		Positional: groups[1:],
	}
	for i, name := range m.names {
		params.Named[name] = groups[i+1]
	}
	return true, params
}

func (m *TemplateMatcher) Type() string { return "template" }

func (m *TemplateMatcher) Pattern() string { return m.pattern }

// Names returns the placeholder names in template order.
func (m *TemplateMatcher) Names() []string {
	return append([]string(nil), m.names...)
}

// WildcardMatcher matches glob-style patterns: * spans within a
// segment, ** spans across segments, ? matches a single character.
type WildcardMatcher struct {
	pattern string
	regex   *regexp.Regexp
}

// NewWildcardMatcher creates a wildcard path matcher.
func NewWildcardMatcher(pattern string) (*WildcardMatcher, error) {
	regex, err := regexp.Compile(globToRegexp(pattern))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrInvalidPattern, err)
	}
	return &WildcardMatcher{pattern: pattern, regex: regex}, nil
}

func globToRegexp(pattern string) string {
	var expr strings.Builder
	expr.WriteByte('^')
	for i := 0; i < len(pattern); {
		switch pattern[i] {
		case '*':
			if strings.HasPrefix(pattern[i:], "**") {
				expr.WriteString(".*")
				i += 2
			} else {
				expr.WriteString("[^/]*")
				i++
			}
		case '?':
			expr.WriteString("[^/]")
			i++
		default:
			expr.WriteString(regexp.QuoteMeta(pattern[i : i+1]))
			i++
		}
	}
	expr.WriteByte('$')
	return expr.String()
}

func (m *WildcardMatcher) Match(path string) (bool, ajax.Params) {
	return m.regex.MatchString(path), ajax.Params{}
}

func (m *WildcardMatcher) Type() string { return "wildcard" }

func (m *WildcardMatcher) Pattern() string { return m.pattern }
