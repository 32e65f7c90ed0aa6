package httpclient

import (
	"errors"
	"fmt"
	"io"
	"net/http"
)

// maxDrainSize bounds how much of a failed response body is read before the
// connection is handed back to the transport.
const maxDrainSize = 64 * 1024

var (
	// ErrMaxRetriesExceeded is returned when every configured attempt ended
	// with a server error response.
	ErrMaxRetriesExceeded = errors.New("maximum number of attempts tried")

	// ErrInvalidURL is returned when a request URL has no scheme or host and
	// therefore no origin to pool a session for.
	ErrInvalidURL = errors.New("invalid request URL: scheme and host are required")

	// ErrInvalidProxyAddress is returned when the SOCKS5 proxy address is not
	// in "host:port" format.
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")

	// ErrInvalidOption is returned by New when an option value is out of range.
	ErrInvalidOption = errors.New("invalid client option")
)

// StatusError is the response error produced for a server error status.
// The response body has already been drained and closed.
type StatusError struct {
	// Method is the HTTP method of the failed request.
	Method string

	// URL is the request URL.
	URL string

	// StatusCode is the HTTP status returned by the server.
	StatusCode int

	// Status is the status line text, e.g. "503 Service Unavailable".
	Status string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: server responded %s", e.Method, e.URL, e.Status)
}

// newStatusError builds a StatusError from resp and releases its body.
func newStatusError(method, rawURL string, resp *http.Response) *StatusError {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainSize)) //nolint:errcheck // best effort drain
	_ = resp.Body.Close()                                                 //nolint:errcheck // body already consumed

	status := resp.Status
	if status == "" {
		status = fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	return &StatusError{
		Method:     method,
		URL:        rawURL,
		StatusCode: resp.StatusCode,
		Status:     status,
	}
}

// IsServerError reports whether status is in the 500-599 range.
func IsServerError(status int) bool {
	return status >= 500 && status <= 599
}
