package ajax

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Response is a synthesized or proxied response to a dispatched request.
type Response struct {
	// StatusCode is the numeric status, e.g. 200.
	StatusCode int

	// Status is the full status line, e.g. "200 OK".
	Status string

	// Header holds the response headers.
	Header http.Header

	// Body is the raw response body.
	Body []byte
}

// NewResponse builds a response with the standard status line for code.
// The header map is used as-is when non-nil.
func NewResponse(code int, header http.Header, body []byte) *Response {
	if header == nil {
		header = http.Header{}
	}
	return &Response{
		StatusCode: code,
		Status:     fmt.Sprintf("%d %s", code, http.StatusText(code)),
		Header:     header,
		Body:       body,
	}
}

// ContentType returns the Content-Type header value.
func (r *Response) ContentType() string {
	if r.Header == nil {
		return ""
	}
	return r.Header.Get("Content-Type")
}

// Text returns the body as a string.
func (r *Response) Text() string {
	return string(r.Body)
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response body: %w", err)
	}
	return nil
}

// JSON returns the body decoded into the generic JSON shape
// (map[string]any, []any, string, float64, bool, nil).
func (r *Response) JSON() (any, error) {
	var v any
	if err := r.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// Clone returns a copy of the response with its own header and body.
func (r *Response) Clone() *Response {
	out := &Response{
		StatusCode: r.StatusCode,
		Status:     r.Status,
	}
	if r.Header != nil {
		out.Header = r.Header.Clone()
	}
	if r.Body != nil {
		out.Body = make([]byte, len(r.Body))
		copy(out.Body, r.Body)
	}
	return out
}
