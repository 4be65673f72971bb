// Package upstream provides the HTTP client for the remote backend API.
// All outbound traffic from the gateway — proxied dashboard calls and the
// gateway's own identity checks — goes through a Client constructed here,
// with an explicit timeout and an explicit lifecycle (construct at startup,
// Close at shutdown).
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
)

// ErrUnreachable wraps any transport-level failure talking to the backend.
// Callers map it to a 502 instead of letting the handler crash.
var ErrUnreachable = errors.New("upstream unreachable")

// ErrUnauthorized is returned when the backend rejects the bearer token.
var ErrUnauthorized = errors.New("upstream rejected credentials")

const (
	defaultTimeout = 30 * time.Second

	// identityRetryMax bounds retries for identity checks. The proxy path
	// never retries; identity checks are idempotent GETs so a single retry
	// on transport failure is safe.
	identityRetryMax = 1
)

// Client issues requests against a single backend base URL.
type Client struct {
	baseURL string
	http    *http.Client
	retry   *retryablehttp.Client
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides the default per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithHTTPClient replaces the underlying HTTP client. Used by tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// New creates a Client for the given backend base URL. The URL must be
// absolute; a trailing slash is stripped so path joining is uniform.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing backend URL: %w", err)
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("backend URL %q is not absolute", baseURL)
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Transport: cleanhttp.DefaultPooledTransport(),
			Timeout:   defaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}

	retry := retryablehttp.NewClient()
	retry.HTTPClient = c.http
	retry.RetryMax = identityRetryMax
	retry.RetryWaitMin = 100 * time.Millisecond
	retry.RetryWaitMax = 500 * time.Millisecond
	retry.Logger = nil
	c.retry = retry

	return c, nil
}

// Close releases pooled connections. Call during graceful shutdown.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

// BaseURL returns the configured backend base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// buildURL joins the backend base URL with a resource path and raw query.
func (c *Client) buildURL(path, rawQuery string) string {
	p := strings.TrimLeft(path, "/")
	if rawQuery != "" {
		return c.baseURL + "/" + p + "?" + rawQuery
	}
	return c.baseURL + "/" + p
}

// Forward sends a request to the backend and returns the raw response.
// The caller owns resp.Body. Headers are used as given — Forward adds
// nothing and removes nothing, so the caller controls exactly what the
// backend sees. Transport failures are wrapped in ErrUnreachable; the
// request context carries cancellation from the inbound request, so an
// aborted client call abandons the outbound one too.
func (c *Client) Forward(ctx context.Context, method, path, rawQuery string, header http.Header, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.buildURL(path, rawQuery), body)
	if err != nil {
		return nil, fmt.Errorf("building upstream request: %w", err)
	}
	for k, vs := range header {
		req.Header[k] = vs
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	return resp, nil
}
