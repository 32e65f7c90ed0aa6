package httpclient

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
)

// Session is a reusable connection handle to one origin.
// It owns the transport whose idle connections are kept between requests.
type Session struct {
	// origin is the "scheme://host[:port]" key this session serves.
	origin string

	// client sends requests; its transport may be wrapped for header injection.
	client *http.Client

	// transport is the pooled transport underneath client.
	transport *http.Transport
}

// Origin returns the origin this session serves.
func (s *Session) Origin() string {
	return s.origin
}

// close releases every idle connection held by the session's transport.
// Responses still being read keep working; their connections are simply not
// returned to the pool.
func (s *Session) close() {
	s.transport.CloseIdleConnections()
}

// Pool maps origins to open sessions.
//
// Pool is safe for concurrent use. Lookup-or-create and CloseAll hold the
// same mutex, so a close never clears an entry while another goroutine is
// creating it.
type Pool struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewPool returns an empty pool.
func NewPool() *Pool {
	return &Pool{
		sessions: make(map[string]*Session),
	}
}

// getOrCreate returns the session for origin, calling create to build one
// when the origin has not been seen since the last CloseAll.
func (p *Pool) getOrCreate(origin string, create func(origin string) *Session) *Session {
	p.mu.Lock()
	defer p.mu.Unlock()

	if s, ok := p.sessions[origin]; ok {
		return s
	}
	s := create(origin)
	p.sessions[origin] = s
	return s
}

// Session returns the pooled session for origin, if any.
func (p *Pool) Session(origin string) (*Session, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.sessions[origin]
	return s, ok
}

// Len returns the number of pooled sessions.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions)
}

// Origins returns the pooled origins in sorted order.
func (p *Pool) Origins() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	origins := make([]string, 0, len(p.sessions))
	for origin := range p.sessions {
		origins = append(origins, origin)
	}
	sort.Strings(origins)
	return origins
}

// CloseAll closes every session and empties the pool.
// Calling it on an empty pool does nothing.
func (p *Pool) CloseAll() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for origin, s := range p.sessions {
		s.close()
		delete(p.sessions, origin)
	}
}

// Origin returns the "scheme://host[:port]" key for rawURL.
// The scheme and host are taken verbatim; no case folding or default-port
// handling is applied.
func Origin(rawURL string) (string, error) {
	u, err := parseURL(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	return originOf(rawURL, u)
}

func originOf(rawURL string, u *url.URL) (string, error) {
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	return u.Scheme + "://" + u.Host, nil
}

// parseURL parses rawURL. A "%" that does not start a valid escape is
// taken literally, so links such as "/100%" can still be requested.
func parseURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err == nil {
		return u, nil
	}
	if escaped := escapeStrayPercents(rawURL); escaped != rawURL {
		if u, escapedErr := url.Parse(escaped); escapedErr == nil {
			return u, nil
		}
	}
	return nil, err
}

// escapeStrayPercents replaces every "%" not followed by two hex digits
// with "%25".
func escapeStrayPercents(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + 4)
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && (i+2 >= len(s) || !isHex(s[i+1]) || !isHex(s[i+2])) {
			b.WriteString("%25")
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func isHex(c byte) bool {
	switch {
	case '0' <= c && c <= '9', 'a' <= c && c <= 'f', 'A' <= c && c <= 'F':
		return true
	}
	return false
}
