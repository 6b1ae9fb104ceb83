package walrus

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
)

var (
	// ErrMalformedResponse means the publisher answered 200 without a
	// recognizable blob id field. Fatal for the attempt.
	ErrMalformedResponse = errors.New("walrus: malformed publisher response")

	// ErrFetchFailed wraps the last underlying cause after the retrieval
	// retry budget is spent.
	ErrFetchFailed = errors.New("walrus: blob fetch failed")
)

// StatusError is a non-2xx response from the publisher or aggregator. Body
// keeps a short snippet of the raw response for logs; callers surface their
// own user-facing message.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("walrus: unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("walrus: unexpected status %d: %s", e.StatusCode, e.Body)
}

// IsRateLimited reports whether err is an HTTP 429 from the store.
func IsRateLimited(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusTooManyRequests
}

// IsTransient reports whether err is worth retrying: a gateway error
// (502/503/504), a timeout, or a plain network failure. Everything else,
// including a malformed response, is fatal for the attempt.
func IsTransient(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		switch se.StatusCode {
		case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	if errors.Is(err, ErrMalformedResponse) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	var ue *url.Error
	return errors.As(err, &ue)
}

// IsNotFound reports an aggregator 404. Retrieval treats it as transient:
// a freshly written blob may not be replicated to every node yet.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

func bodySnippet(body []byte) string {
	const max = 200
	if len(body) > max {
		body = body[:max]
	}
	return string(body)
}
