package pool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrRateLimited indicates the pool API rejected the request with HTTP 429.
var ErrRateLimited = errors.New("pool API rate limited")

// APIError represents a non-2xx response from the pool API.
type APIError struct {
	StatusCode int
	Endpoint   string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("pool API error (HTTP %d) at %s: %s", e.StatusCode, e.Endpoint, e.Message)
	}
	return fmt.Sprintf("pool API error (HTTP %d) at %s", e.StatusCode, e.Endpoint)
}

// Client is the interface for reading pool telemetry.
type Client interface {
	// Workers returns the worker list for the configured address.
	Workers(ctx context.Context) (*ClientStats, error)
	// PoolStats returns pool-wide statistics.
	PoolStats(ctx context.Context) (*PoolStats, error)
	// NetworkStats returns network-wide statistics.
	NetworkStats(ctx context.Context) (*NetworkStats, error)
}

// HTTPClient is the HTTP implementation of Client for public-pool.io
// compatible APIs.
type HTTPClient struct {
	baseURL    string
	address    string
	httpClient *http.Client
}

// ClientOption is a function that configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.httpClient = client
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a pool API client for one payout address.
func NewClient(baseURL, address string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		baseURL: baseURL,
		address: address,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *HTTPClient) Workers(ctx context.Context) (*ClientStats, error) {
	stats := &ClientStats{}
	if err := c.get(ctx, "/client/"+c.address, stats); err != nil {
		return nil, err
	}
	return stats, nil
}

func (c *HTTPClient) PoolStats(ctx context.Context) (*PoolStats, error) {
	stats := &PoolStats{}
	if err := c.get(ctx, "/pool", stats); err != nil {
		return nil, err
	}
	return stats, nil
}

func (c *HTTPClient) NetworkStats(ctx context.Context) (*NetworkStats, error) {
	stats := &NetworkStats{}
	if err := c.get(ctx, "/network", stats); err != nil {
		return nil, err
	}
	return stats, nil
}

func (c *HTTPClient) get(ctx context.Context, endpoint string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w at %s", ErrRateLimited, endpoint)
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return &APIError{StatusCode: resp.StatusCode, Endpoint: endpoint, Message: string(bodyBytes)}
	}

	if err := json.Unmarshal(bodyBytes, result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// Ensure HTTPClient implements Client
var _ Client = (*HTTPClient)(nil)
