package router

import (
	"fmt"
	"regexp"
	"sync"

	"github.com/virtend/virtend/internal/ajax"
	"github.com/virtend/virtend/internal/util"
)

// RegexpMatcher matches paths using a regular expression. The match is
// unanchored: the expression may hit anywhere in the path unless it is
// anchored explicitly.
type RegexpMatcher struct {
	regex *regexp.Regexp
}

// NewRegexpMatcher creates a matcher around a compiled regular
// expression.
func NewRegexpMatcher(re *regexp.Regexp) *RegexpMatcher {
	return &RegexpMatcher{regex: re}
}

// Match checks if the path matches the expression. Positional
// parameters carry capture groups 1..n with empty strings preserved
// for groups that did not participate in the match, so indices stay
// stable. Named groups additionally populate the named parameters.
func (m *RegexpMatcher) Match(path string) (bool, ajax.Params) {
	groups := m.regex.FindStringSubmatch(path)
	if groups == nil {
		return false, ajax.Params{}
	}

	params := ajax.Params{}
	if len(groups) > 1 {
		params.Positional = append([]string(nil), groups[1:]...)
	}
	for i, name := range m.regex.SubexpNames() {
		if name == "" || i >= len(groups) {
			continue
		}
		if params.Named == nil {
			params.Named = make(map[string]string)
		}
		params.Named[name] = groups[i]
	}

	return true, params
}

// Type returns the matcher type.
func (m *RegexpMatcher) Type() string { return "regexp" }

// Pattern returns the source expression.
func (m *RegexpMatcher) Pattern() string { return m.regex.String() }

// regexCacheLimit bounds the compiled expressions kept per cache
// generation.
const regexCacheLimit = 500

// reCache holds compiled expressions in two generations. Lookups
// promote cold entries into the hot generation; when the hot
// generation fills, it becomes the cold one and whatever the old cold
// generation still held is discarded. Fixture reloads recompile the
// same patterns repeatedly, so this keeps compilation off the reload
// path with a hard bound on memory.
var reCache = struct {
	sync.Mutex
	hot, cold map[string]*regexp.Regexp
}{
	hot:  make(map[string]*regexp.Regexp),
	cold: make(map[string]*regexp.Regexp),
}

// CompileRegexp compiles a regular expression pattern into a matcher,
// reusing previously compiled expressions where it can.
func CompileRegexp(pattern string) (*RegexpMatcher, error) {
	metrics := GetRouterMetrics()

	reCache.Lock()
	re, ok := reCache.hot[pattern]
	if !ok {
		if re, ok = reCache.cold[pattern]; ok {
			reCache.hot[pattern] = re
		}
	}
	reCache.Unlock()
	if ok {
		metrics.regexCacheHits.Inc()
		return NewRegexpMatcher(re), nil
	}
	metrics.regexCacheMisses.Inc()

	// Compilation is the expensive part; keep it outside the lock.
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrInvalidPattern, err)
	}

	reCache.Lock()
	if len(reCache.hot) >= regexCacheLimit {
		metrics.regexCacheEvictions.Add(float64(len(reCache.cold)))
		reCache.cold = reCache.hot
		reCache.hot = make(map[string]*regexp.Regexp, regexCacheLimit)
	}
	reCache.hot[pattern] = re
	metrics.regexCacheSize.Set(float64(len(reCache.hot) + len(reCache.cold)))
	reCache.Unlock()

	return NewRegexpMatcher(re), nil
}
