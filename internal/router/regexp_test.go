package router

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/virtend/virtend/internal/util"
)

func TestRegexpMatcher(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		pattern        string
		path           string
		expected       bool
		wantPositional []string
	}{
		{
			name:           "capture group",
			pattern:        `/food/(\w+)`,
			path:           "/food/tacos",
			expected:       true,
			wantPositional: []string{"tacos"},
		},
		{
			name:           "multiple capture groups",
			pattern:        `/users/(\d+)/orders/(\d+)`,
			path:           "/users/42/orders/1001",
			expected:       true,
			wantPositional: []string{"42", "1001"},
		},
		{
			name:           "optional group keeps positional slot",
			pattern:        `/report/(\d+)(?:\.(\w+))?`,
			path:           "/report/7",
			expected:       true,
			wantPositional: []string{"7", ""},
		},
		{
			name:           "unanchored match",
			pattern:        `/food/(\w+)`,
			path:           "/api/food/tacos",
			expected:       true,
			wantPositional: []string{"tacos"},
		},
		{
			name:     "no match",
			pattern:  `/food/(\w+)`,
			path:     "/drinks/cola",
			expected: false,
		},
		{
			name:           "no groups",
			pattern:        `^/ping$`,
			path:           "/ping",
			expected:       true,
			wantPositional: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			matcher := NewRegexpMatcher(regexp.MustCompile(tt.pattern))

			matched, params := matcher.Match(tt.path)
			assert.Equal(t, tt.expected, matched)
			assert.Equal(t, "regexp", matcher.Type())
			assert.Equal(t, tt.pattern, matcher.Pattern())

			if !tt.expected {
				return
			}
			assert.Equal(t, tt.wantPositional, params.Positional)
		})
	}
}

func TestRegexpMatcher_NamedGroups(t *testing.T) {
	t.Parallel()

	matcher := NewRegexpMatcher(regexp.MustCompile(`/food/(?P<kind>\w+)`))

	matched, params := matcher.Match("/food/tacos")
	require.True(t, matched)
	assert.Equal(t, "tacos", params.Get("kind"))
	assert.Equal(t, "tacos", params.At(0), "named groups keep their positional slot")
}

func TestCompileRegexp(t *testing.T) {
	t.Parallel()

	matcher, err := CompileRegexp(`/food/(\w+)`)
	require.NoError(t, err)

	matched, params := matcher.Match("/food/tacos")
	require.True(t, matched)
	assert.Equal(t, "tacos", params.At(0))

	// Compiling the same pattern again reuses the cached expression.
	again, err := CompileRegexp(`/food/(\w+)`)
	require.NoError(t, err)
	assert.Equal(t, matcher.Pattern(), again.Pattern())
}

func TestCompileRegexp_Invalid(t *testing.T) {
	t.Parallel()

	_, err := CompileRegexp(`/food/(`)
	assert.ErrorIs(t, err, util.ErrInvalidPattern)
}
