package cache

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/virtend/virtend/internal/ajax"
)

func TestSignature(t *testing.T) {
	tests := []struct {
		name     string
		req      *ajax.Request
		expected string
	}{
		{
			name:     "bare path defaults to GET",
			req:      &ajax.Request{URL: "/api/users"},
			expected: "GET:/api/users",
		},
		{
			name:     "method is canonicalized",
			req:      &ajax.Request{Method: "post", URL: "/api/users"},
			expected: "POST:/api/users",
		},
		{
			name:     "query keys are sorted",
			req:      &ajax.Request{URL: "/api/users?b=2&a=1"},
			expected: "GET:/api/users?a=1&b=2",
		},
		{
			name: "explicit query wins over URL query",
			req: &ajax.Request{
				URL:   "/api/users?a=1",
				Query: url.Values{"a": {"9"}, "c": {"3"}},
			},
			expected: "GET:/api/users?a=9&c=3",
		},
		{
			name:     "absolute URL reduces to path",
			req:      &ajax.Request{URL: "https://example.com/v1/items?z=1"},
			expected: "GET:/v1/items?z=1",
		},
		{
			name: "multi-value keeps value order",
			req: &ajax.Request{
				URL:   "/search",
				Query: url.Values{"tag": {"b", "a"}},
			},
			expected: "GET:/search?tag=b&tag=a",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Signature(tt.req))
		})
	}
}

func TestSignature_QuerySpellingEquivalence(t *testing.T) {
	// The same logical request spelled two ways signs identically.
	inURL := &ajax.Request{URL: "/api/items?page=2&size=10"}
	explicit := &ajax.Request{
		URL:   "/api/items",
		Query: url.Values{"size": {"10"}, "page": {"2"}},
	}

	assert.Equal(t, Signature(inURL), Signature(explicit))
}

func TestCanonicalURL_NoQuery(t *testing.T) {
	req := &ajax.Request{URL: "/plain/path"}
	assert.Equal(t, "/plain/path", CanonicalURL(req))
}

func TestPayloadFingerprint(t *testing.T) {
	t.Run("nil body is empty", func(t *testing.T) {
		assert.Equal(t, "", PayloadFingerprint(nil))
	})

	t.Run("empty bytes and empty string are empty", func(t *testing.T) {
		assert.Equal(t, "", PayloadFingerprint([]byte{}))
		assert.Equal(t, "", PayloadFingerprint(""))
	})

	t.Run("json key order does not matter", func(t *testing.T) {
		a := PayloadFingerprint([]byte(`{"a":1,"b":2}`))
		b := PayloadFingerprint([]byte(`{"b":2,"a":1}`))
		assert.Equal(t, a, b)
	})

	t.Run("string and bytes of same json match", func(t *testing.T) {
		a := PayloadFingerprint(`{"id":7}`)
		b := PayloadFingerprint([]byte(`{"id":7}`))
		assert.Equal(t, a, b)
	})

	t.Run("structured value matches its encoding", func(t *testing.T) {
		a := PayloadFingerprint(map[string]any{"id": 7.0, "name": "x"})
		b := PayloadFingerprint([]byte(`{"name":"x","id":7}`))
		assert.Equal(t, a, b)
	})

	t.Run("struct fields out of declaration order still match", func(t *testing.T) {
		body := struct {
			Zeta  int `json:"zeta"`
			Alpha int `json:"alpha"`
		}{Zeta: 1, Alpha: 2}
		assert.Equal(t, PayloadFingerprint(serializeBody(body)), PayloadFingerprint(body))
	})

	t.Run("different payloads differ", func(t *testing.T) {
		a := PayloadFingerprint([]byte(`{"id":1}`))
		b := PayloadFingerprint([]byte(`{"id":2}`))
		assert.NotEqual(t, a, b)
	})

	t.Run("non-json bytes hash as raw", func(t *testing.T) {
		a := PayloadFingerprint([]byte("plain text"))
		b := PayloadFingerprint([]byte("plain text"))
		c := PayloadFingerprint([]byte("other text"))
		assert.Equal(t, a, b)
		assert.NotEqual(t, a, c)
	})
}

func TestValidateKey(t *testing.T) {
	assert.NoError(t, ValidateKey("short"))
	assert.NoError(t, ValidateKey(strings.Repeat("x", maxKeyLength)))
	assert.ErrorIs(t, ValidateKey(strings.Repeat("x", maxKeyLength+1)), ErrKeyTooLong)
}

func TestHashKey(t *testing.T) {
	hash := HashKey("some-key")

	// SHA256 hex digest is 64 characters
	assert.Len(t, hash, 64)

	// Deterministic
	assert.Equal(t, hash, HashKey("some-key"))
	assert.NotEqual(t, hash, HashKey("other-key"))
}

func TestSanitizeKey(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		expected string
	}{
		{"spaces replaced", "GET:/a b", "GET:/a_b"},
		{"newlines removed", "key\nwith\nnewlines", "keywithnewlines"},
		{"tabs removed", "key\twith\ttabs", "keywithtabs"},
		{"clean key unchanged", "GET:/api/users?a=1", "GET:/api/users?a=1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeKey(tt.key))
		})
	}
}
