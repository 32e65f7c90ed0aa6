package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/nao1215/linkcrawl/internal/crawler"
	"github.com/nao1215/linkcrawl/internal/httpclient"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "linkcrawl"

	// DefaultDepth is the crawl depth budget.
	DefaultDepth = crawler.DefaultMaxDepth

	// DefaultTimeout bounds a single request.
	DefaultTimeout = httpclient.DefaultTimeout

	// DefaultMaxRetry is the number of attempts per request.
	DefaultMaxRetry = httpclient.DefaultMaxRetry

	// DefaultRetryDelay is the wait between attempts on a 5xx response.
	DefaultRetryDelay = httpclient.DefaultRetryDelay

	// DefaultMaxConnections caps concurrent connections per origin.
	DefaultMaxConnections = httpclient.DefaultMaxConnections

	// DefaultBatchSize crawls one seed at a time.
	DefaultBatchSize = 1

	// DefaultMaxBodySize limits the bytes read from one page.
	DefaultMaxBodySize = crawler.DefaultMaxBodySize

	// DefaultUserAgent identifies linkcrawl in HTTP requests.
	DefaultUserAgent = "linkcrawl/1.0 (+https://github.com/nao1215/linkcrawl)"
)

// Config holds every option of a crawl run. It is filled from CLI flags and
// the config file, validated once, then passed down explicitly.
type Config struct {
	// Targets are the seed URLs to crawl.
	Targets []string

	// Depth is the crawl depth budget. For the sequential traversal it
	// bounds the number of pages fetched to Depth+1.
	Depth int

	// Timeout bounds each HTTP request.
	Timeout time.Duration

	// MaxRetry is the number of attempts per request when the server
	// answers with a 5xx status.
	MaxRetry int

	// RetryDelay is the wait between attempts.
	RetryDelay time.Duration

	// MaxConnections caps concurrent connections per origin.
	MaxConnections int

	// VerifyTLS enables certificate verification. It is off by default.
	VerifyTLS bool

	// Headers are sent with every request.
	Headers map[string]string

	// UserAgent is the User-Agent header sent unless Headers sets one.
	UserAgent string

	// SOCKS5Proxy routes every connection through a SOCKS5 proxy
	// ("host:port") when non-empty.
	SOCKS5Proxy string

	// ContinueOnError records failing pages and keeps crawling instead of
	// aborting the crawl.
	ContinueOnError bool

	// Parallelism selects the layered traversal with this many parallel
	// fetches per layer. Zero keeps the sequential traversal.
	Parallelism int

	// BatchSize is the number of seeds crawled at once.
	BatchSize int

	// MaxBodySize is the maximum number of bytes read per page.
	// Zero selects DefaultMaxBodySize.
	MaxBodySize int64

	// Verbose enables debug logging.
	Verbose bool

	// ConfigFilePath is the explicit path of the config file. When empty the
	// file is searched for, see FindConfigFile.
	ConfigFilePath string

	// SiteConfigs holds the loaded config file, if any.
	SiteConfigs *File

	// JSONReport selects JSON output. Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport selects Markdown output.
	MarkdownReport bool

	// ReportFile redirects the report to a file instead of stdout.
	ReportFile string
}

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		Depth:          DefaultDepth,
		Timeout:        DefaultTimeout,
		MaxRetry:       DefaultMaxRetry,
		RetryDelay:     DefaultRetryDelay,
		MaxConnections: DefaultMaxConnections,
		BatchSize:      DefaultBatchSize,
		MaxBodySize:    DefaultMaxBodySize,
		UserAgent:      DefaultUserAgent,
		Headers:        make(map[string]string),
	}
}

// XDGConfigDir returns the XDG config directory for linkcrawl.
// On Linux: ~/.config/linkcrawl
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}
	for _, target := range c.Targets {
		if err := ValidateURL(target); err != nil {
			return err
		}
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.MaxRetry < 1 {
		return ErrInvalidMaxRetry
	}
	if c.RetryDelay < 0 {
		return ErrInvalidRetryDelay
	}
	if c.MaxConnections <= 0 {
		return ErrInvalidMaxConnections
	}
	if c.Depth < 0 {
		return ErrInvalidDepth
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.Parallelism < 0 {
		return ErrInvalidParallelism
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	return nil
}

// ValidateURL checks that rawURL is an absolute http or https URL with a host.
// The URL is otherwise left as the user typed it; the crawler compares URLs
// as plain strings.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %q: %w", ErrInvalidURL, rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: %q has scheme %q", ErrInvalidURL, rawURL, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: %q has no host", ErrInvalidURL, rawURL)
	}
	return nil
}

// SiteFor returns the config file settings that apply to target: the file's
// defaults merged with the entry for target's origin. It returns the zero
// SiteConfig when no file was loaded.
func (c *Config) SiteFor(target string) SiteConfig {
	if c.SiteConfigs == nil {
		return SiteConfig{}
	}
	origin, err := httpclient.Origin(target)
	if err != nil {
		return c.SiteConfigs.GetSiteConfig("")
	}
	return c.SiteConfigs.GetSiteConfig(origin)
}
