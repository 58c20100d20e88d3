package httpclient

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// MaxErrorBodySize bounds the part of an error response body kept in HTTPError
const MaxErrorBodySize = 512

// HTTPError represents an HTTP error
type HTTPError struct {
	StatusCode int
	Message    string
	URL        string

	// Body is a truncated excerpt of the response body
	Body string

	// RetryAfter is the delay requested by the server, zero when absent
	RetryAfter time.Duration
}

// Error returns the error message
func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d for URL %s: %s", e.StatusCode, e.URL, e.Message)
	}
	return fmt.Sprintf("HTTP %d for URL %s: %s: %s", e.StatusCode, e.URL, e.Message, e.Body)
}

// NewHTTPError creates a new HTTP error
func NewHTTPError(statusCode int, url, message string) error {
	return &HTTPError{
		StatusCode: statusCode,
		URL:        url,
		Message:    message,
	}
}

func newResponseError(resp *http.Response, url string, body []byte) *HTTPError {
	return &HTTPError{
		StatusCode: resp.StatusCode,
		URL:        url,
		Message:    resp.Status,
		Body:       truncate(strings.TrimSpace(string(body)), MaxErrorBodySize),
		RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}

// parseRetryAfter understands the delay-seconds form only
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
