// Package httpjson fetches JSON documents from public HTTP APIs and classifies
// failures into the ports source error sentinels.
package httpjson

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"amethyst-storefront/internal/core/ports"
)

// maxBody caps how much of a response is read.
const maxBody = 4 << 20

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// NewClient returns an *http.Client with the given timeout.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
}

// Unwrap classifies a status error as a malformed source response.
func (e *StatusError) Unwrap() error {
	return ports.ErrSourceResponse
}

// Get issues a GET and decodes the JSON body into out.
// Transport failures wrap ports.ErrSourceUnavailable; bad status or body wraps ports.ErrSourceResponse.
func Get(ctx context.Context, client HTTPClient, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ports.ErrSourceResponse, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: GET %s: %v", ports.ErrSourceUnavailable, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
		return &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ports.ErrSourceResponse, url, err)
	}
	return nil
}
