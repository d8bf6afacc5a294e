package client

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

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/muurk/cellwatch/internal/analysis"
	"github.com/muurk/cellwatch/internal/capture"
	"github.com/muurk/cellwatch/internal/logging"
)

const (
	// DefaultTimeout is the default HTTP request timeout
	DefaultTimeout = 10 * time.Second

	// DefaultMaxRetries is the default number of retry attempts for failed
	// idempotent requests
	DefaultMaxRetries = 3

	// DefaultRetryDelay is the initial delay between retry attempts
	DefaultRetryDelay = 500 * time.Millisecond

	// DefaultMaxRetryDelay is the maximum delay for exponential backoff
	DefaultMaxRetryDelay = 5 * time.Second

	// maxErrorBody caps the error body read from a failed response.
	maxErrorBody = 4096
)

// Client talks to the HTTP status surface of a cellwatch daemon.
type Client struct {
	// BaseURL is the daemon URL (e.g., "http://192.168.4.16:8080")
	BaseURL string

	// HTTPClient is the underlying HTTP client
	HTTPClient *http.Client

	// MaxRetries bounds retries of GET requests. POSTs are never retried.
	MaxRetries    int
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
}

// StartResult is the response of a successful capture start.
type StartResult struct {
	SessionID string         `json:"session_id"`
	Status    capture.Status `json:"status"`
	Start     time.Time      `json:"start"`
}

// New creates a client for the daemon at baseURL.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:       strings.TrimRight(baseURL, "/"),
		HTTPClient:    &http.Client{Timeout: DefaultTimeout},
		MaxRetries:    DefaultMaxRetries,
		RetryDelay:    DefaultRetryDelay,
		MaxRetryDelay: DefaultMaxRetryDelay,
	}
}

// SetTimeout sets the HTTP request timeout
func (c *Client) SetTimeout(timeout time.Duration) {
	c.HTTPClient.Timeout = timeout
}

// Status returns the capture manager state.
func (c *Client) Status(ctx context.Context) (capture.State, error) {
	var st capture.State
	return st, c.get(ctx, "/api/status", &st)
}

// Report returns the live report of the running capture.
func (c *Client) Report(ctx context.Context) (analysis.Report, error) {
	var r analysis.Report
	return r, c.get(ctx, "/api/report", &r)
}

// Captures lists the captures known to the daemon.
func (c *Client) Captures(ctx context.Context) ([]capture.Info, error) {
	var infos []capture.Info
	return infos, c.get(ctx, "/api/captures", &infos)
}

// CaptureReport returns the report of a finished capture.
func (c *Client) CaptureReport(ctx context.Context, name string) (analysis.Report, error) {
	var r analysis.Report
	return r, c.get(ctx, "/api/captures/"+url.PathEscape(name)+"/report", &r)
}

// Start starts a live capture on the daemon.
func (c *Client) Start(ctx context.Context) (StartResult, error) {
	var res StartResult
	return res, c.once(ctx, http.MethodPost, "/api/capture/start", &res)
}

// Stop stops the live capture and returns its final report.
func (c *Client) Stop(ctx context.Context) (analysis.Report, error) {
	var r analysis.Report
	return r, c.once(ctx, http.MethodPost, "/api/capture/stop", &r)
}

// get performs an idempotent request, retrying retryable failures with
// exponential backoff.
func (c *Client) get(ctx context.Context, path string, out any) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.RetryDelay
	b.MaxInterval = c.MaxRetryDelay
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(max(c.MaxRetries, 0))), ctx)

	op := func() error {
		err := c.once(ctx, http.MethodGet, path, out)
		if err != nil && !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		logging.Debug("Daemon request failed, retrying",
			zap.String("path", path),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}
	return backoff.RetryNotify(op, policy, notify)
}

// once performs a single request and decodes a JSON response into out.
func (c *Client) once(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, nil)
	if err != nil {
		return &Error{Type: ErrTypeNetwork, Message: "failed to create request", Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return classifyNetworkError(method+" "+path+" failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newHTTPError(resp.StatusCode, errorMessage(resp))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return classifyNetworkError("failed to read response body", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return newParseError("failed to parse JSON response", err)
	}
	return nil
}

// errorMessage extracts the daemon's {"error": ...} body, falling back to
// the status text.
func errorMessage(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return e.Error
	}
	if msg := string(bytes.TrimSpace(body)); msg != "" {
		return fmt.Sprintf("%d %s: %s", resp.StatusCode, http.StatusText(resp.StatusCode), msg)
	}
	return fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
}
