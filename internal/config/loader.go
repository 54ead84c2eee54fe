package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFixtures reads the fixture file at path, expands environment
// references in it, and validates the result.
func LoadFixtures(path string) (*FixtureFile, error) {
	data, err := os.ReadFile(path) //nolint:gosec // the caller names the file on purpose
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture file %s: %w", path, err)
	}
	return parseFixtures(data)
}

// LoadFixturesFromReader behaves like LoadFixtures for an already-open
// source, such as an embedded fixture or a test literal.
func LoadFixturesFromReader(r io.Reader) (*FixtureFile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixtures: %w", err)
	}
	return parseFixtures(data)
}

func parseFixtures(data []byte) (*FixtureFile, error) {
	var ff FixtureFile
	if err := yaml.Unmarshal([]byte(expandEnv(string(data))), &ff); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := ValidateFixtures(&ff); err != nil {
		return nil, fmt.Errorf("invalid fixtures: %w", err)
	}
	return &ff, nil
}

// expandEnv substitutes ${VAR} and ${VAR:-default} references with
// values from the process environment. An unset variable expands to
// its default, or to nothing when none is given. $$ yields a literal
// dollar sign.
func expandEnv(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		if s[i] != '$' || i+1 == len(s) {
			b.WriteByte(s[i])
			i++
			continue
		}
		switch s[i+1] {
		case '$':
			b.WriteByte('$')
			i += 2
		case '{':
			end := strings.IndexByte(s[i+2:], '}')
			if end < 0 {
				b.WriteString(s[i:])
				return b.String()
			}
			name, fallback, _ := strings.Cut(s[i+2:i+2+end], ":-")
			if v, ok := os.LookupEnv(name); ok {
				b.WriteString(v)
			} else {
				b.WriteString(fallback)
			}
			i += end + 3
		default:
			b.WriteByte('$')
			i++
		}
	}
	return b.String()
}
