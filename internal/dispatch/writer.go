package dispatch

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/virtend/virtend/internal/ajax"
	"github.com/virtend/virtend/internal/observability"
	"github.com/virtend/virtend/internal/util"
)

// responseWriter is the ajax.ResponseWriter handed to handlers. The
// first terminal call settles the item on the completion channel; later
// terminal calls change nothing and report util.ErrAlreadyCompleted.
// Safe for use from a goroutine other than the handler's own.
type responseWriter struct {
	logger observability.Logger
	header http.Header

	mu        sync.Mutex
	done      bool
	completed chan ajax.Result
}

func newResponseWriter(logger observability.Logger) *responseWriter {
	return &responseWriter{
		logger:    logger,
		header:    http.Header{},
		completed: make(chan ajax.Result, 1),
	}
}

// Header returns the header map sent with the response. Mutations after
// a terminal call have no effect: the terminal call snapshots the map.
func (w *responseWriter) Header() http.Header {
	return w.header
}

// Send completes the item fulfilled with a 200 text/plain response.
func (w *responseWriter) Send(body string) error {
	return w.fulfill(http.StatusOK, []byte(body), "text/plain; charset=utf-8")
}

// JSON completes the item fulfilled with a 200 application/json response.
// A marshalling failure rejects the item instead and is returned.
func (w *responseWriter) JSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		wrapped := util.WrapError(err, "encode json response")
		if rejectErr := w.reject(wrapped); rejectErr != nil {
			return rejectErr
		}
		return wrapped
	}
	return w.fulfill(http.StatusOK, data, "application/json; charset=utf-8")
}

// SendStatus completes the item with the given status code and the
// standard reason phrase as the body. Codes of 400 and above reject the
// item with a StatusError; lower codes fulfill it.
func (w *responseWriter) SendStatus(code int) error {
	body := http.StatusText(code)
	if code >= http.StatusBadRequest {
		return w.reject(util.NewStatusErrorWithBody(code, "", []byte(body)))
	}
	return w.fulfill(code, []byte(body), "text/plain; charset=utf-8")
}

// fulfill settles the item with a synthesized response.
func (w *responseWriter) fulfill(code int, body []byte, contentType string) error {
	w.mu.Lock()
	if w.done {
		w.mu.Unlock()
		w.logger.Error("terminal call on already completed response",
			observability.Int("status", code))
		return util.ErrAlreadyCompleted
	}
	w.done = true
	header := w.header.Clone()
	w.mu.Unlock()

	if header.Get("Content-Type") == "" && contentType != "" {
		header.Set("Content-Type", contentType)
	}

	w.completed <- ajax.Fulfill(ajax.NewResponse(code, header, body))
	return nil
}

// reject settles the item as rejected with err. Returns
// util.ErrAlreadyCompleted when a terminal call already happened.
func (w *responseWriter) reject(err error) error {
	w.mu.Lock()
	if w.done {
		w.mu.Unlock()
		w.logger.Error("terminal call on already completed response",
			observability.Error(err))
		return util.ErrAlreadyCompleted
	}
	w.done = true
	w.mu.Unlock()

	w.completed <- ajax.Reject(err)
	return nil
}
