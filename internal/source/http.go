// Package source talks to every place plant records come from: the catalog
// backend, the Perenual, Trefle and Wikipedia APIs, and the offline CSV file.
// Each call is its own failure boundary; callers move on to the next source.
package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"herbolive/internal/logging"
)

const maxBodyBytes = 4 << 20

// defaultUserAgent identifies HerboLive to third-party APIs.
const defaultUserAgent = "HerboLive/1.0 (plant catalog viewer)"

// NewHTTPClient returns a client with the given timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// get performs a GET and returns the body of a 2xx response.
// Non-2xx responses become *StatusError.
func get(ctx context.Context, client *http.Client, url, accept, userAgent string) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if accept == "" {
		accept = "application/json"
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		logging.APIDebug("GET %s -> %d", redact(url), resp.StatusCode)
		return nil, &StatusError{Code: resp.StatusCode, URL: redact(url)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	logging.APIDebug("GET %s -> %d (%d bytes)", redact(url), resp.StatusCode, len(body))
	return body, nil
}
