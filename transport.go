package virtend

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/virtend/virtend/internal/ajax"
	"github.com/virtend/virtend/internal/util"
)

// Transport returns an http.RoundTripper view of the interceptor, so a
// host *http.Client routes its requests through interception, cache, and
// proxy. Synthesized and proxied error statuses come back as ordinary
// *http.Response values, matching transport conventions; only
// transport-level failures surface as errors.
func (i *Interceptor) Transport() http.RoundTripper {
	return roundTripper{interceptor: i}
}

// Client returns a fresh *http.Client dispatching through the
// interceptor.
func (i *Interceptor) Client() *http.Client {
	return &http.Client{Transport: i.Transport()}
}

// InterceptClient swaps the client's transport for the interceptor's and
// records the original, which Destroy (or RestoreClient) puts back.
// Intercepting a nil client, an already intercepted client, or after
// Destroy is a no-op.
func (i *Interceptor) InterceptClient(c *http.Client) {
	if c == nil || i.Destroyed() {
		return
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if _, ok := i.intercepted[c]; ok {
		return
	}
	if i.intercepted == nil {
		i.intercepted = make(map[*http.Client]http.RoundTripper)
	}
	i.intercepted[c] = c.Transport
	c.Transport = i.Transport()
}

// RestoreClient puts back the transport a client had before
// InterceptClient. Returns false for clients this interceptor is not
// holding.
func (i *Interceptor) RestoreClient(c *http.Client) bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	transport, ok := i.intercepted[c]
	if !ok {
		return false
	}
	delete(i.intercepted, c)
	c.Transport = transport
	return true
}

// roundTripper adapts the dispatch engine to http.RoundTripper.
type roundTripper struct {
	interceptor *Interceptor
}

// RoundTrip dispatches the request through the engine. Rejections that
// carry an HTTP status convert back into plain responses; everything
// else is a transport error.
func (rt roundTripper) RoundTrip(httpReq *http.Request) (*http.Response, error) {
	req, err := inboundRequest(httpReq)
	if err != nil {
		return nil, err
	}

	resp, err := rt.interceptor.engine.Do(httpReq.Context(), req, &ajax.Options{})
	if err != nil {
		var statusErr *util.StatusError
		if errors.As(err, &statusErr) {
			return outboundResponse(httpReq, statusResponse(statusErr)), nil
		}
		return nil, err
	}
	return outboundResponse(httpReq, resp), nil
}

// inboundRequest converts an *http.Request into a dispatchable request.
// The body is drained and closed here, as the transport contract
// requires.
func inboundRequest(r *http.Request) (*ajax.Request, error) {
	req := &ajax.Request{
		Method: r.Method,
		URL:    r.URL.String(),
	}
	if r.Header != nil {
		req.Header = r.Header.Clone()
	}

	if r.Body != nil && r.Body != http.NoBody {
		defer func() { _ = r.Body.Close() }()
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, fmt.Errorf("read request body: %w", err)
		}
		if len(data) > 0 {
			req.Body = data
		}
	}
	return req, nil
}

// outboundResponse converts a dispatched response into the
// *http.Response shape client code expects.
func outboundResponse(httpReq *http.Request, resp *ajax.Response) *http.Response {
	status := resp.Status
	if status == "" {
		status = fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	header := resp.Header
	if header == nil {
		header = http.Header{}
	}

	return &http.Response{
		Status:        status,
		StatusCode:    resp.StatusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(resp.Body)),
		ContentLength: int64(len(resp.Body)),
		Request:       httpReq,
	}
}

// statusResponse rebuilds the response a StatusError rejection stands
// for.
func statusResponse(err *util.StatusError) *ajax.Response {
	return ajax.NewResponse(err.Code, nil, err.Body)
}
