package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/virtend/virtend/internal/ajax"
	"github.com/virtend/virtend/internal/observability"
	"github.com/virtend/virtend/internal/util"
)

// proxyTracerName is the OTEL tracer name for outbound proxy requests.
const proxyTracerName = "virtend/proxy"

// hopHeaders are headers that should not be forwarded.
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

type options struct {
	client  *http.Client
	baseURL *url.URL
	timeout time.Duration
	logger  observability.Logger
}

// Option is a functional option for configuring the proxy function.
type Option func(*options) error

// WithClient sets the HTTP client used for outbound requests.
func WithClient(client *http.Client) Option {
	return func(o *options) error {
		o.client = client
		return nil
	}
}

// WithBaseURL sets the base URL that relative request URLs resolve
// against. Requests with absolute URLs are dispatched as-is.
func WithBaseURL(raw string) Option {
	return func(o *options) error {
		u, err := url.Parse(raw)
		if err != nil {
			return util.WrapError(err, "parse base URL")
		}
		if !u.IsAbs() {
			return fmt.Errorf("base URL %q is not absolute", raw)
		}
		o.baseURL = u
		return nil
	}
}

// WithTimeout sets a per-request timeout applied on top of the caller's
// context.
func WithTimeout(d time.Duration) Option {
	return func(o *options) error {
		o.timeout = d
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(o *options) error {
		o.logger = logger
		return nil
	}
}

// New builds a proxy function that performs real HTTP egress. The
// returned function translates the request into an outbound HTTP call on
// the configured client, drains the response, and reports error statuses
// (400 and above) as a StatusError with the response body preserved.
// Transport-level failures come back as a ProxyError.
func New(opts ...Option) (ajax.ProxyFunc, error) {
	o := &options{
		client: http.DefaultClient,
		logger: observability.NopLogger(),
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}

	tracer := otel.Tracer(proxyTracerName)

	return func(ctx context.Context, req *ajax.Request) (*ajax.Response, error) {
		target, err := resolveTarget(req, o.baseURL)
		if err != nil {
			return nil, err
		}

		method := req.CanonicalMethod()

		ctx, span := tracer.Start(ctx, "proxy.request",
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				attribute.String("http.method", method),
				attribute.String("url.full", target),
			),
		)
		defer span.End()

		if o.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, o.timeout)
			defer cancel()
		}

		start := time.Now()
		resp, err := o.doRequest(ctx, method, target, req)
		GetProxyMetrics().requestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			o.logger.Debug("proxy request failed",
				observability.String("method", method),
				observability.String("url", target),
				observability.Error(err),
			)
			return nil, err
		}

		span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
		GetProxyMetrics().requestsTotal.WithLabelValues(method, statusClass(resp.StatusCode)).Inc()

		if resp.StatusCode >= 400 {
			statusErr := util.NewStatusErrorWithBody(resp.StatusCode, "", resp.Body)
			span.SetStatus(codes.Error, statusErr.Error())
			GetProxyMetrics().errorsTotal.WithLabelValues(errorTypeStatus).Inc()
			return nil, statusErr
		}

		return resp, nil
	}, nil
}

// doRequest performs one outbound HTTP exchange and drains the response.
func (o *options) doRequest(ctx context.Context, method, target string, req *ajax.Request) (*ajax.Response, error) {
	body, contentType, err := encodeBody(req.Body)
	if err != nil {
		return nil, util.WrapError(err, "encode request body")
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, util.NewProxyError(target, err)
	}

	copyOutboundHeaders(httpReq.Header, req.Header)
	if contentType != "" && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	httpResp, err := o.client.Do(httpReq)
	if err != nil {
		GetProxyMetrics().errorsTotal.WithLabelValues(classifyTransportError(err)).Inc()
		return nil, util.NewProxyError(target, err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		GetProxyMetrics().errorsTotal.WithLabelValues(errorTypeTransport).Inc()
		return nil, util.NewProxyError(target, util.WrapError(err, "read response body"))
	}

	return ajax.NewResponse(httpResp.StatusCode, httpResp.Header.Clone(), respBody), nil
}

// resolveTarget produces the absolute URL to dial. The merged query view
// is used so explicit Query values reach the network the same way they
// reach matchers and the cache.
func resolveTarget(req *ajax.Request, base *url.URL) (string, error) {
	u, err := url.Parse(req.URL)
	if err != nil {
		return "", util.WrapError(err, "parse request URL")
	}

	if q := req.MergedQuery(); len(q) > 0 {
		u.RawQuery = q.Encode()
	}

	if !u.IsAbs() {
		if base == nil {
			return "", fmt.Errorf("relative URL %q requires a base URL", req.URL)
		}
		u = base.ResolveReference(u)
	}

	return u.String(), nil
}

// encodeBody turns the request payload into a reader. Raw bytes and
// strings pass through untouched; structured values are JSON-encoded with
// a matching content type.
func encodeBody(body any) (io.Reader, string, error) {
	switch v := body.(type) {
	case nil:
		return nil, "", nil
	case []byte:
		if len(v) == 0 {
			return nil, "", nil
		}
		return bytes.NewReader(v), "", nil
	case string:
		if v == "" {
			return nil, "", nil
		}
		return strings.NewReader(v), "", nil
	case io.Reader:
		return v, "", nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, "", err
		}
		return bytes.NewReader(data), "application/json; charset=utf-8", nil
	}
}

// copyOutboundHeaders copies request headers minus hop-by-hop headers.
func copyOutboundHeaders(dst, src http.Header) {
	for k, vs := range src {
		for _, v := range vs {
			dst.Add(k, v)
		}
	}
	for _, h := range hopHeaders {
		dst.Del(h)
	}
}

// statusClass buckets a status code for metric labels.
func statusClass(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

// classifyTransportError maps a client error to a metric label.
func classifyTransportError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return errorTypeTimeout
	}
	return errorTypeTransport
}
