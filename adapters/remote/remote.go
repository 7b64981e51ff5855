// Package remote provides adapters for the external HTTP collaborators:
// the user-profile service that verifies identities and the storage
// service that reports storage state. Both are treated as opaque; their
// failures never touch usage state.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client provides timeout-bounded HTTP communication with a collaborator.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// ClientConfig configures a collaborator client.
type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
}

// NewClient creates a new collaborator HTTP client.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
	}
}

// get performs an authenticated GET against the collaborator and decodes
// the JSON response into result.
func (c *Client) get(ctx context.Context, path, bearerToken string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+bearerToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &RemoteError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
		}
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	return nil
}

// RemoteError represents an error response from a collaborator.
type RemoteError struct {
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error %d: %s", e.StatusCode, e.Message)
}

// IsAuthFailure returns true if the collaborator rejected the caller's
// credentials.
func IsAuthFailure(err error) bool {
	if re, ok := err.(*RemoteError); ok {
		return re.StatusCode == http.StatusUnauthorized || re.StatusCode == http.StatusForbidden
	}
	return false
}
