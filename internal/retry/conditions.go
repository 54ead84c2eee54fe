package retry

import (
	"errors"
	"io"
	"net"
	"net/url"
	"syscall"
)

// IsNetworkError reports whether err is a transient network failure worth
// retrying: timeouts, connection resets and refusals, and closed
// connections. Application-level errors return false.
func IsNetworkError(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF):
		return true
	}

	// *net.OpError also satisfies net.Error, so it must be checked before
	// the generic timeout branch or non-timeout dial failures get lost.
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Timeout()
	}

	// net.Error.Temporary is deprecated since Go 1.18; only timeouts are
	// a reliable signal here.
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
