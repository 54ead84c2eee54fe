package dispatch

import (
	"context"
	"encoding/json"
	"runtime/debug"
	"time"

	"github.com/virtend/virtend/internal/ajax"
	"github.com/virtend/virtend/internal/observability"
	"github.com/virtend/virtend/internal/router"
	"github.com/virtend/virtend/internal/util"
)

// invokeHandler runs the endpoint handler for a matched request and
// waits for its terminal call. Handlers may complete after returning,
// from another goroutine; context cancellation while waiting rejects the
// item with the context error. A panic inside the handler rejects the
// item with a HandlerPanicError.
func (e *Engine) invokeHandler(ctx context.Context, ep *router.Endpoint, params ajax.Params, req *ajax.Request) ajax.Result {
	if ep.Delay > 0 {
		select {
		case <-time.After(ep.Delay):
		case <-ctx.Done():
			return ajax.Reject(ctx.Err())
		}
	}

	ctx = util.ContextWithEndpoint(ctx, ep.Label())
	logger := e.logger.WithContext(ctx)

	w := newResponseWriter(logger)
	hreq := e.buildHandlerRequest(ctx, req, params)

	func() {
		defer func() {
			if r := recover(); r != nil {
				stack := debug.Stack()
				logger.Error("handler panic recovered",
					observability.Any("error", r),
					observability.String("stack", string(stack)))
				GetDispatchMetrics().panicsRecovered.Inc()
				_ = w.reject(&util.HandlerPanicError{Value: r, Stack: stack})
			}
		}()
		ep.Handler(w, hreq)
	}()

	select {
	case res := <-w.completed:
		return res
	case <-ctx.Done():
		return ajax.Reject(ctx.Err())
	}
}

// buildHandlerRequest creates the request view a handler receives: match
// params populated, query merged, raw JSON bodies decoded, context and
// nested dispatch bound.
func (e *Engine) buildHandlerRequest(ctx context.Context, req *ajax.Request, params ajax.Params) *ajax.Request {
	hreq := req.Bind(ctx, e.dispatchFunc())
	hreq.Params = params
	hreq.Query = req.MergedQuery()
	hreq.Body = decodeHandlerBody(req, e.logger)
	return hreq
}

// decodeHandlerBody returns the body a handler sees. Structured values
// pass through as-is; raw bytes or strings under a JSON content type are
// decoded. A declared-JSON body that fails to decode stays raw.
func decodeHandlerBody(req *ajax.Request, logger observability.Logger) any {
	var raw []byte
	switch v := req.Body.(type) {
	case nil:
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return req.Body
	}

	if len(raw) == 0 || !ajax.HasJSONContentType(req.Header) {
		return req.Body
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		logger.Debug("request body declared JSON but failed to decode",
			observability.Error(err))
		return req.Body
	}
	return decoded
}
