// Package httpclient is the JSON-over-HTTP client used to call the directory
// provider and the stage endpoint of other replicas.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

const (
	// DefaultTimeout applies when a constructor is given a zero timeout.
	DefaultTimeout = 30 * time.Second

	// MaxResponseSize caps a successful response body (100MB).
	MaxResponseSize = 100 << 20

	// UserAgent is sent on every request.
	UserAgent = "dirsync/1.0"
)

// Client issues JSON requests and returns raw response bodies.
type Client interface {
	// Get fetches url and requires a 200 response.
	Get(ctx context.Context, url string) ([]byte, error)

	// PostJSON posts payload encoded as JSON and accepts any 2xx response.
	PostJSON(ctx context.Context, url string, payload any) ([]byte, error)
}

// DefaultClient implements Client on top of net/http.
type DefaultClient struct {
	client *http.Client
}

// NewDefaultClient returns a Client on a fresh http.Client.
func NewDefaultClient(timeout time.Duration) Client {
	return NewClient(&http.Client{}, timeout)
}

// NewClient copies httpClient, keeping its transport (an oauth2 one, for
// instance) and replacing its timeout. Zero means DefaultTimeout.
func NewClient(httpClient *http.Client, timeout time.Duration) Client {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	c := *httpClient
	c.Timeout = timeout
	return &DefaultClient{client: &c}
}

// Get implements Client
func (c *DefaultClient) Get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, http.StatusOK, http.StatusOK)
}

// PostJSON implements Client
func (c *DefaultClient) PostJSON(ctx context.Context, url string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, http.StatusOK, http.StatusMultipleChoices-1)
}

// do sends req and accepts status codes in [lo, hi]. The trace context of the
// request is propagated so receiving replicas continue the same trace.
func (c *DefaultClient) do(req *http.Request, lo, hi int) ([]byte, error) {
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")
	otel.GetTextMapPropagator().Inject(req.Context(), propagation.HeaderCarrier(req.Header))

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < lo || resp.StatusCode > hi {
		excerpt, _ := readLimited(resp.Body, MaxErrorBodySize)
		return nil, newResponseError(resp, req.URL.String(), excerpt)
	}

	if resp.ContentLength > MaxResponseSize {
		return nil, tooLarge(resp.ContentLength)
	}
	body, err := readLimited(resp.Body, MaxResponseSize)
	if err != nil {
		return nil, err
	}
	if len(body) > MaxResponseSize {
		return nil, tooLarge(int64(len(body)))
	}
	return body, nil
}

// readLimited reads at most limit+1 bytes so callers can tell an overflow apart.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}

func tooLarge(size int64) error {
	return fmt.Errorf("response of at least %d bytes exceeds maximum allowed size of %d bytes", size, MaxResponseSize)
}
