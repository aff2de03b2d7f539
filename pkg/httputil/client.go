package httputil

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// DefaultTimeout bounds a single outbound request.
const DefaultTimeout = 60 * time.Second

// maxErrorBody caps how much of an error response is kept for messages.
const maxErrorBody = 2048

// NewHTTPClient creates an HTTP client with the given timeout.
// A zero timeout uses [DefaultTimeout].
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// StatusError is a non-2xx HTTP response.
type StatusError struct {
	Code       int
	Body       string
	RetryAfter int // seconds, from the Retry-After header when present
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("status %d: %s", e.Code, e.Body)
	}
	return fmt.Sprintf("status %d", e.Code)
}

// CheckStatus returns nil for 2xx responses. Other responses produce a
// [*StatusError], wrapped in [RetryableError] for 5xx. CheckStatus reads
// (part of) the body on failure but never closes it.
func CheckStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	err := &StatusError{Code: resp.StatusCode, Body: string(body)}
	if s := resp.Header.Get("Retry-After"); s != "" {
		if n, convErr := strconv.Atoi(s); convErr == nil {
			err.RetryAfter = n
		}
	}
	if resp.StatusCode >= 500 {
		return &RetryableError{Err: err, After: time.Duration(err.RetryAfter) * time.Second}
	}
	return err
}
