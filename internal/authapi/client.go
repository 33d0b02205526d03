// Package authapi is a thin HTTP client for the remote service's /api/auth endpoints.
//
// The client reports what the service answered and nothing more: any HTTP status,
// including 4xx and 5xx, is returned as a Response with a nil error. An error is only
// returned when no response was obtained (bad URL, transport failure, timeout,
// cancelled context, unreadable body).
package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	RegisterPath    = "/api/auth/register"
	VerifyEmailPath = "/api/auth/verify-email"
	LoginPath       = "/api/auth/login"
	HealthPath      = "/health/live"

	// maxResponseBodySize caps how much of a response body is read
	maxResponseBodySize = 1 << 20
)

type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     *slog.Logger
}

// Response is the status and body returned by the service.
type Response struct {
	StatusCode int
	Body       []byte
}

// IsSuccess reports whether the status code is 2xx.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// NewClient returns a client for the service at baseURL (scheme and host, optionally a path prefix).
// A zero timeout means no client side timeout.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base URL must use http or https, got %q", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("base URL has no host: %q", baseURL)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")

	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL: u,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}, nil
}

// Register creates a new account. The service answers 201 on success.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*Response, error) {
	return c.postJSON(ctx, RegisterPath, req)
}

// VerifyEmail submits a verification token. An empty token is sent as-is.
func (c *Client) VerifyEmail(ctx context.Context, token string) (*Response, error) {
	query := url.Values{}
	query.Set("token", token)
	return c.do(ctx, http.MethodGet, VerifyEmailPath, query, nil)
}

// Login authenticates with email and password.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*Response, error) {
	return c.postJSON(ctx, LoginPath, req)
}

// Health calls the liveness endpoint.
func (c *Client) Health(ctx context.Context) (*Response, error) {
	return c.do(ctx, http.MethodGet, HealthPath, nil, nil)
}

// BaseURL returns the configured service URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

func (c *Client) postJSON(ctx context.Context, path string, payload any) (*Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, nil, body)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte) (*Response, error) {
	endpoint := c.baseURL.JoinPath(path)
	if query != nil {
		endpoint.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s %s request: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s %s response: %w", method, path, err)
	}

	c.logger.Debug("auth api call",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       respBody,
	}, nil
}
