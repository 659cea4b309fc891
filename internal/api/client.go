// Package api provides a typed client for the interview backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

const defaultTimeout = 60 * time.Second

// Client performs JSON requests against the interview backend.
type Client struct {
	baseURL    string
	token      func() string
	userAgent  string
	httpClient *http.Client
	requestID  func() string
}

// Option configures the client.
type Option func(*Client)

// WithTimeout sets the client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithTokenSource sets the function providing the bearer token.
func WithTokenSource(token func() string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      func() string { return "" },
		userAgent:  "mockprep",
		httpClient: &http.Client{Timeout: defaultTimeout},
		requestID:  func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured backend URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) get(ctx context.Context, path string, authed bool, out any) error {
	return c.do(ctx, http.MethodGet, path, authed, nil, out)
}

func (c *Client) post(ctx context.Context, path string, authed bool, body, out any) error {
	return c.do(ctx, http.MethodPost, path, authed, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, authed bool, body, out any) error {
	var token string
	if authed {
		token = c.token()
		if token == "" {
			return ErrNoToken
		}
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", c.requestID())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &Error{Message: NetworkErrorMessage, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Status: resp.StatusCode, Message: NetworkErrorMessage, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseError(resp.StatusCode, data)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Status: resp.StatusCode, Message: RequestFailedMessage, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

func sessionPath(sessionID, suffix string) string {
	return "/interview/session/" + url.PathEscape(sessionID) + suffix
}
