// Package gateway provides an HTTP client for the remote mail service.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Client talks to the remote mail service over HTTP/JSON.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Compile-time check that Client implements Gateway.
var _ Gateway = (*Client)(nil)

// Config holds configuration for creating a gateway client.
type Config struct {
	URL           string
	APIKey        string
	AllowInsecure bool
	Timeout       time.Duration
	RateLimitQPS  float64 // 0 disables client-side throttling
}

// New creates a new gateway client.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("gateway URL is required")
	}

	parsedURL, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("URL scheme must be http or https, got: %s", parsedURL.Scheme)
	}

	// Enforce HTTPS unless AllowInsecure is set
	if parsedURL.Scheme == "http" && !cfg.AllowInsecure {
		return nil, fmt.Errorf("HTTPS required for the mail gateway\n\n" +
			"Options:\n" +
			"  1. Use HTTPS: [gateway] url = \"https://mail.example.com\"\n" +
			"  2. For local development: add 'allow_insecure = true' to [gateway] in config.toml")
	}

	if parsedURL.Host == "" {
		return nil, fmt.Errorf("gateway URL must include a host (e.g., https://mail.example.com)")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	c := &Client{
		baseURL: strings.TrimSuffix(cfg.URL, "/"),
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
	if cfg.RateLimitQPS > 0 {
		burst := int(cfg.RateLimitQPS)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitQPS), burst)
	}
	return c, nil
}

// BaseURL returns the service root without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// APIError is a non-2xx response from the mail service.
type APIError struct {
	Status  int
	Code    string // "error" field of the payload
	Message string // "message" field of the payload
	Body    string // raw body when it was not a JSON payload
	Method  string
	Path    string
}

func (e *APIError) Error() string {
	if e.Code == "" && e.Message == "" && e.Body != "" {
		return fmt.Sprintf("gateway error (%d) on %s %s: %s", e.Status, e.Method, e.Path, e.Body)
	}
	return fmt.Sprintf("gateway error (%d) on %s %s: %s", e.Status, e.Method, e.Path, e.UserMessage())
}

// Structured reports whether the server sent a JSON error payload.
func (e *APIError) Structured() bool {
	return e.Code != "" || e.Message != ""
}

// UserMessage returns the most descriptive text of the JSON payload, or the
// status text when there was none.
func (e *APIError) UserMessage() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Code != "":
		return e.Code
	default:
		return http.StatusText(e.Status)
	}
}

// IsNotFound reports whether err is a 404 from the service.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// errorPayload matches the service's error body.
type errorPayload struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

const maxErrorBody = 512

// handleErrorResponse reads an error response and returns an *APIError.
func handleErrorResponse(resp *http.Response, method, path string) error {
	body, _ := io.ReadAll(resp.Body)

	apiErr := &APIError{Status: resp.StatusCode, Method: method, Path: path}
	var payload errorPayload
	if err := json.Unmarshal(body, &payload); err == nil {
		apiErr.Code = payload.Error
		apiErr.Message = payload.Message
	} else if text := strings.TrimSpace(string(body)); text != "" {
		if len(text) > maxErrorBody {
			text = text[:maxErrorBody]
		}
		apiErr.Body = text
	}
	return apiErr
}

// doRequest performs an authenticated HTTP request. The caller closes the
// response body.
func (c *Client) doRequest(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

// do sends an optional JSON body and decodes an optional JSON result.
func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}

	resp, err := c.doRequest(ctx, method, path, body, contentType)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return decodeResponse(resp, method, path, out)
}

// decodeResponse maps non-2xx to *APIError and decodes JSON into out.
func decodeResponse(resp *http.Response, method, path string, out interface{}) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return handleErrorResponse(resp, method, path)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response from %s %s: %w", method, path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response from %s %s: %w", method, path, err)
	}
	return nil
}

// escape escapes a single path segment.
func escape(segment string) string {
	return url.PathEscape(segment)
}
