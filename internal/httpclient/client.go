package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/proxy"
)

// Default client settings.
const (
	// DefaultTimeout bounds each request, including reading the body.
	DefaultTimeout = 5 * time.Second

	// DefaultMaxRetry is the number of attempts made for one request.
	// The default of 1 means a server error is not retried at all.
	DefaultMaxRetry = 1

	// DefaultRetryDelay is the fixed wait between attempts.
	DefaultRetryDelay = 100 * time.Millisecond

	// DefaultMaxConnections caps concurrent connections per session.
	DefaultMaxConnections = 10
)

// idempotentMethods are retried on server errors without opt-in.
var idempotentMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodOptions: true,
	http.MethodTrace:   true,
	http.MethodPut:     true,
	http.MethodDelete:  true,
}

// Client issues HTTP requests through a pool of per-origin sessions.
// Its configuration is fixed at construction time.
type Client struct {
	// headers is applied to every request.
	headers map[string]string

	// userAgent is sent when no User-Agent header is configured.
	userAgent string

	// verifyTLS enables certificate verification. Off by default.
	verifyTLS bool

	// timeout bounds one request attempt.
	timeout time.Duration

	// maxRetry is the total number of attempts per request.
	maxRetry int

	// retryDelay is the wait between attempts.
	retryDelay time.Duration

	// maxConnections caps concurrent connections per session.
	maxConnections int

	// retryNonIdempotent allows retrying POST and PATCH.
	retryNonIdempotent bool

	// proxyAddress is the SOCKS5 proxy, empty for direct connections.
	proxyAddress string

	// dialer is the SOCKS5 dialer built from proxyAddress.
	dialer proxy.Dialer

	pool   *Pool
	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHeaders sets headers applied to every request.
func WithHeaders(headers map[string]string) Option {
	return func(c *Client) {
		c.headers = make(map[string]string, len(headers))
		for k, v := range headers {
			c.headers[k] = v
		}
	}
}

// WithUserAgent sets the User-Agent used when headers do not set one.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithVerifyTLS toggles TLS certificate verification.
func WithVerifyTLS(verify bool) Option {
	return func(c *Client) {
		c.verifyTLS = verify
	}
}

// WithTimeout sets the total timeout of one request attempt.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithMaxRetry sets the total number of attempts per request.
func WithMaxRetry(n int) Option {
	return func(c *Client) {
		c.maxRetry = n
	}
}

// WithRetryDelay sets the wait between attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) {
		c.retryDelay = d
	}
}

// WithMaxConnections caps concurrent connections per session.
func WithMaxConnections(n int) Option {
	return func(c *Client) {
		c.maxConnections = n
	}
}

// WithRetryNonIdempotent allows server errors on POST and PATCH to be
// retried. Retrying them can repeat side effects on the server.
func WithRetryNonIdempotent(allow bool) Option {
	return func(c *Client) {
		c.retryNonIdempotent = allow
	}
}

// WithSOCKS5Proxy routes every session through the SOCKS5 proxy at address
// ("host:port").
func WithSOCKS5Proxy(address string) Option {
	return func(c *Client) {
		c.proxyAddress = address
	}
}

// WithPool makes the client use pool instead of a private one.
// Clients sharing a pool share sessions and are all affected by
// CloseConnections.
func WithPool(pool *Pool) Option {
	return func(c *Client) {
		c.pool = pool
	}
}

// WithLogger sets the logger for retry and session events.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a Client. Nothing is dialed until the first request.
func New(opts ...Option) (*Client, error) {
	c := &Client{
		timeout:        DefaultTimeout,
		maxRetry:       DefaultMaxRetry,
		retryDelay:     DefaultRetryDelay,
		maxConnections: DefaultMaxConnections,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.timeout <= 0 {
		return nil, fmt.Errorf("%w: timeout must be positive", ErrInvalidOption)
	}
	if c.retryDelay < 0 {
		return nil, fmt.Errorf("%w: retry delay must be non-negative", ErrInvalidOption)
	}
	if c.maxConnections <= 0 {
		return nil, fmt.Errorf("%w: max connections must be positive", ErrInvalidOption)
	}

	if c.proxyAddress != "" {
		dialer, err := newSOCKS5Dialer(c.proxyAddress)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		c.dialer = dialer
	}

	if c.pool == nil {
		c.pool = NewPool()
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}

	c.logger.Debug("http client created",
		"headers", c.headers,
		"timeout", c.timeout,
		"max_retry", c.maxRetry,
		"verify_tls", c.verifyTLS,
		"proxy", c.proxyAddress,
	)

	return c, nil
}

// Pool returns the session pool used by the client.
func (c *Client) Pool() *Pool {
	return c.pool
}

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, rawURL string) (*http.Response, error) {
	return c.Request(ctx, http.MethodGet, rawURL, nil, "")
}

// Post issues a POST request with the given body.
func (c *Client) Post(ctx context.Context, rawURL, contentType string, body []byte) (*http.Response, error) {
	return c.Request(ctx, http.MethodPost, rawURL, body, contentType)
}

// Request sends method to rawURL through the session pooled for its origin.
//
// A 5xx response counts as a failed attempt. Up to maxRetry attempts are
// made, waiting retryDelay between them. Transport errors and non-5xx
// responses end the loop on the attempt that produced them. The caller must
// close the body of the returned response.
func (c *Client) Request(ctx context.Context, method, rawURL string, body []byte, contentType string) (*http.Response, error) {
	target, err := parseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	origin, err := originOf(rawURL, target)
	if err != nil {
		return nil, err
	}
	session := c.pool.getOrCreate(origin, c.newSession)

	var lastErr *StatusError
	for attempt := 1; attempt <= c.maxRetry; attempt++ {
		resp, err := c.send(ctx, session, method, rawURL, target, body, contentType)
		if err != nil {
			return nil, err
		}

		if !IsServerError(resp.StatusCode) {
			return resp, nil
		}

		lastErr = newStatusError(method, rawURL, resp)
		if !c.retryable(method) {
			return nil, lastErr
		}

		c.logger.Debug("server error response",
			"method", method,
			"url", rawURL,
			"status", lastErr.StatusCode,
			"attempt", attempt,
			"max_retry", c.maxRetry,
		)

		if attempt < c.maxRetry {
			if err := c.sleep(ctx); err != nil {
				return nil, err
			}
		}
	}

	if lastErr == nil {
		return nil, fmt.Errorf("%s %s: %w", method, rawURL, ErrMaxRetriesExceeded)
	}
	return nil, fmt.Errorf("%w (%d attempt(s)): %w", ErrMaxRetriesExceeded, c.maxRetry, lastErr)
}

// send performs one attempt. rawURL is kept for error messages; target is
// what goes on the wire.
func (c *Client) send(ctx context.Context, session *Session, method, rawURL string, target *url.URL, body []byte, contentType string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := session.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, rawURL, err)
	}
	return resp, nil
}

// retryable reports whether a server error on method may be retried.
func (c *Client) retryable(method string) bool {
	return c.retryNonIdempotent || idempotentMethods[method]
}

// sleep waits retryDelay or until ctx is done.
func (c *Client) sleep(ctx context.Context) error {
	if c.retryDelay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(c.retryDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// CloseConnections closes every pooled session and clears the pool.
// It is safe to call more than once.
func (c *Client) CloseConnections() {
	n := c.pool.Len()
	c.pool.CloseAll()
	if n > 0 {
		c.logger.Debug("closed pooled sessions", "count", n)
	}
}
