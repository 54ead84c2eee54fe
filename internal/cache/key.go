package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/url"
	"sort"
	"strings"

	"github.com/virtend/virtend/internal/ajax"
)

// maxKeyLength is the longest signature stored verbatim; longer
// signatures are hashed before use as backend keys.
const maxKeyLength = 1024

// Signature returns the cache identity of a request: the canonical
// method joined with the canonical URL. Two requests with the same
// signature address the same cache slot regardless of how their query
// parameters were spelled.
func Signature(req *ajax.Request) string {
	return req.CanonicalMethod() + ":" + CanonicalURL(req)
}

// CanonicalURL returns the request path with the merged query string
// re-encoded in sorted key order. Requests that differ only in query
// parameter ordering or in how the query was supplied (URL string vs
// explicit values) canonicalize to the same URL.
func CanonicalURL(req *ajax.Request) string {
	path := req.Path()
	query := encodeSortedQuery(req.MergedQuery())
	if query == "" {
		return path
	}
	return path + "?" + query
}

// encodeSortedQuery encodes values with keys in sorted order. Values
// under a key keep their original order.
func encodeSortedQuery(values url.Values) string {
	if len(values) == 0 {
		return ""
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		for _, v := range values[k] {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}

// PayloadFingerprint returns a stable fingerprint of a request body for
// payload-equality comparison. JSON payloads are canonicalized first so
// key ordering does not affect the result; non-JSON payloads are hashed
// as raw bytes. A nil body returns the empty string.
func PayloadFingerprint(body any) string {
	switch v := body.(type) {
	case nil:
		return ""
	case []byte:
		if len(v) == 0 {
			return ""
		}
		return fingerprintBytes(v)
	case string:
		if v == "" {
			return ""
		}
		return fingerprintBytes([]byte(v))
	default:
		// Structs marshal in field-declaration order, so the encoded
		// bytes go through the same canonicalization as raw payloads.
		data, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return fingerprintBytes(data)
	}
}

// fingerprintBytes canonicalizes raw bytes that contain JSON before
// hashing, so logically equal JSON documents fingerprint identically.
func fingerprintBytes(data []byte) string {
	var decoded any
	if err := json.Unmarshal(data, &decoded); err == nil {
		if canonical, err := json.Marshal(decoded); err == nil {
			return hashBytes(canonical)
		}
	}
	return hashBytes(data)
}

// hashBytes computes a truncated SHA256 hex digest.
func hashBytes(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:16])
}

// ValidateKey checks that a key is usable as a backend cache key.
func ValidateKey(key string) error {
	if len(key) > maxKeyLength {
		return ErrKeyTooLong
	}
	return nil
}

// HashKey hashes a key to a fixed length.
func HashKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}

// SanitizeKey removes or replaces characters that might cause issues in cache keys.
func SanitizeKey(key string) string {
	// Replace problematic characters
	replacer := strings.NewReplacer(
		" ", "_",
		"\n", "",
		"\r", "",
		"\t", "",
	)
	return replacer.Replace(key)
}
