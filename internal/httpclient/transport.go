package httpclient

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/net/proxy"
)

// maxRedirects is the number of redirects a session follows before handing
// the last redirect response back to the caller.
const maxRedirects = 10

// idleConnTimeout is how long an unused pooled connection is kept open.
const idleConnTimeout = 30 * time.Second

// newSession builds the session for origin from the client's fixed settings.
func (c *Client) newSession(origin string) *Session {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   c.timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: !c.verifyTLS, //nolint:gosec // verification is opt-in
		},
		MaxConnsPerHost:     c.maxConnections,
		MaxIdleConns:        c.maxConnections,
		MaxIdleConnsPerHost: c.maxConnections,
		IdleConnTimeout:     idleConnTimeout,
		TLSHandshakeTimeout: c.timeout,
		ForceAttemptHTTP2:   true,
	}

	if c.dialer != nil {
		transport.Proxy = nil
		transport.DialContext = c.dialContext
	}

	var rt http.RoundTripper = transport
	if len(c.headers) > 0 || c.userAgent != "" {
		rt = &headerInjectingTransport{
			base:      transport,
			headers:   c.headers,
			userAgent: c.userAgent,
		}
	}

	c.logger.Debug("opened pooled session",
		"origin", origin,
		"max_connections", c.maxConnections,
		"verify_tls", c.verifyTLS,
	)

	return &Session{
		origin:    origin,
		transport: transport,
		client: &http.Client{
			Transport: rt,
			Timeout:   c.timeout,
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

// dialContext dials through the configured SOCKS5 proxy.
// The x/net SOCKS5 dialer honours contexts; other dialers are raced against
// ctx so a cancelled request does not wait for the dial to finish.
func (c *Client) dialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if cd, ok := c.dialer.(proxy.ContextDialer); ok {
		return cd.DialContext(ctx, network, address)
	}

	type dialResult struct {
		conn net.Conn
		err  error
	}
	resultCh := make(chan dialResult, 1)
	go func() {
		conn, err := c.dialer.Dial(network, address)
		resultCh <- dialResult{conn, err}
	}()

	select {
	case result := <-resultCh:
		return result.conn, result.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// newSOCKS5Dialer validates address and returns a SOCKS5 dialer for it.
func newSOCKS5Dialer(address string) (proxy.Dialer, error) {
	if !isValidProxyAddress(address) {
		return nil, ErrInvalidProxyAddress
	}
	return proxy.SOCKS5("tcp", address, nil, proxy.Direct)
}

// isValidProxyAddress checks for a non-empty host and a port in 1-65535.
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return false
	}
	return n >= 1 && n <= 65535
}

// headerInjectingTransport adds the client's fixed header set to every
// request, including the ones issued while following redirects.
type headerInjectingTransport struct {
	base      http.RoundTripper
	headers   map[string]string
	userAgent string
}

// RoundTrip implements http.RoundTripper.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())

	if t.userAgent != "" && clone.Header.Get("User-Agent") == "" {
		clone.Header.Set("User-Agent", t.userAgent)
	}
	for key, value := range t.headers {
		clone.Header.Set(key, value)
	}

	return t.base.RoundTrip(clone)
}
