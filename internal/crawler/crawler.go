package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/nao1215/linkcrawl/internal/model"
)

// DefaultMaxDepth is the depth budget used when the caller has no preference.
const DefaultMaxDepth = 3

// DefaultMaxBodySize bounds how much of a page body is read.
const DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB

// ErrCrawlInProgress is returned when a Crawler is asked to start a second
// traversal while one is running. The running traversal closes the
// fetcher's connections when it ends, so overlapping traversals on one
// fetcher are refused.
var ErrCrawlInProgress = errors.New("crawl already in progress")

// Fetcher issues GET requests through pooled connections.
// *httpclient.Client satisfies it.
type Fetcher interface {
	// Get fetches url. The caller closes the response body.
	Get(ctx context.Context, url string) (*http.Response, error)

	// CloseConnections releases every pooled connection.
	CloseConnections()
}

// State is the lifecycle state of a Crawler.
type State int

const (
	// StateIdle means no traversal has run yet.
	StateIdle State = iota

	// StateRunning means a traversal is in progress.
	StateRunning

	// StateCompleted means the last traversal returned its visited set.
	StateCompleted

	// StateFailed means the last traversal ended with an error.
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Crawler discovers the URLs reachable from a seed.
// A Crawler runs one traversal at a time and may be reused afterwards.
type Crawler struct {
	// fetcher performs page requests and owns the connection pool.
	fetcher Fetcher

	logger *slog.Logger

	// continueOnError turns fetch and parse failures into recorded skips.
	continueOnError bool

	// maxBodySize limits the bytes read from one page.
	maxBodySize int64

	// concurrency is the number of parallel fetches per layer. Zero selects
	// the sequential traversal for CrawlReport.
	concurrency int

	mu    sync.Mutex
	state State
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Crawler) {
		c.logger = logger
	}
}

// WithContinueOnError makes the traversal log and record a failing URL and
// move on, instead of aborting on the first error.
func WithContinueOnError(continueOnError bool) Option {
	return func(c *Crawler) {
		c.continueOnError = continueOnError
	}
}

// WithMaxBodySize sets the maximum number of body bytes read per page.
func WithMaxBodySize(size int64) Option {
	return func(c *Crawler) {
		if size > 0 {
			c.maxBodySize = size
		}
	}
}

// WithLayered makes CrawlReport use the layered traversal with up to n
// parallel fetches. n <= 0 keeps the sequential traversal.
func WithLayered(n int) Option {
	return func(c *Crawler) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// New creates a Crawler that fetches pages through fetcher.
func New(fetcher Fetcher, opts ...Option) *Crawler {
	c := &Crawler{
		fetcher:     fetcher,
		maxBodySize: DefaultMaxBodySize,
		state:       StateIdle,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = slog.Default()
	}

	return c
}

// State returns the current lifecycle state.
func (c *Crawler) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Crawl performs the sequential breadth-first traversal from baseURL and
// returns every URL discovered, including ones never fetched.
//
// The loop runs while the queue is non-empty and depth <= maxDepth, and
// depth advances once per URL dequeued.
func (c *Crawler) Crawl(ctx context.Context, baseURL string, maxDepth int) (URLSet, error) {
	report := model.NewCrawlReport(baseURL, maxDepth, model.CrawlModeSequential)
	return c.run(ctx, report, c.traverse)
}

// CrawlReport crawls baseURL with the configured traversal and returns the
// outcome as a report. On failure the report carries the error message and
// the error is also returned.
func (c *Crawler) CrawlReport(ctx context.Context, baseURL string, maxDepth int) (*model.CrawlReport, error) {
	mode := model.CrawlModeSequential
	traversal := c.traverse
	if c.concurrency > 0 {
		mode = model.CrawlModeLayered
		traversal = c.traverseLayers
	}

	report := model.NewCrawlReport(baseURL, maxDepth, mode)
	visited, err := c.run(ctx, report, traversal)
	if err == nil {
		report.SetVisited(visited.Sorted())
	}
	report.Finish(err)
	return report, err
}

// traversalFunc runs one traversal, recording progress in report.
type traversalFunc func(ctx context.Context, report *model.CrawlReport) (URLSet, error)

// run drives the state machine around a traversal. Pooled connections are
// closed on every exit path once the traversal has started.
func (c *Crawler) run(ctx context.Context, report *model.CrawlReport, traversal traversalFunc) (visited URLSet, err error) {
	if err := c.begin(); err != nil {
		return nil, err
	}
	defer func() {
		c.fetcher.CloseConnections()
		c.end(err)
	}()

	c.logger.Info("crawl started",
		"url", report.BaseURL,
		"max_depth", report.MaxDepth,
		"mode", report.Mode,
	)

	visited, err = traversal(ctx, report)
	if err != nil {
		c.logger.Error("error while crawling links", "url", report.BaseURL, "error", err)
		return nil, err
	}

	c.logger.Info("crawl completed",
		"url", report.BaseURL,
		"visited", visited.Len(),
		"pages_fetched", report.PagesFetched,
	)
	return visited, nil
}

// begin moves the crawler into StateRunning.
func (c *Crawler) begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateRunning {
		return ErrCrawlInProgress
	}
	c.state = StateRunning
	return nil
}

// end moves the crawler into its terminal state.
func (c *Crawler) end(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.state = StateFailed
		return
	}
	c.state = StateCompleted
}

// traverse is the sequential traversal behind Crawl.
func (c *Crawler) traverse(ctx context.Context, report *model.CrawlReport) (URLSet, error) {
	visited := NewURLSet(report.BaseURL)
	queue := []string{report.BaseURL}
	depth := 0

	for len(queue) > 0 && depth <= report.MaxDepth {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		pageURL := queue[0]
		queue = queue[1:]

		report.PagesFetched++
		links, err := c.visit(ctx, pageURL)
		if err != nil {
			if !c.continueOnError {
				return nil, err
			}
			c.logger.Warn("skipping page", "url", pageURL, "error", err)
			report.AddFailure(pageURL, err)
		}

		for _, link := range links {
			if visited.Add(link) {
				queue = append(queue, link)
			}
		}
		depth++
	}

	return visited, nil
}

// visit fetches pageURL and returns its resolved links.
func (c *Crawler) visit(ctx context.Context, pageURL string) ([]string, error) {
	c.logger.Debug("fetching page", "url", pageURL)

	body, err := c.getPage(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	return LinksOnPage(pageURL, body)
}

// getPage returns the body of pageURL when the response status is exactly
// 200. Any other status yields an empty body and no error.
func (c *Crawler) getPage(ctx context.Context, pageURL string) (string, error) {
	resp, err := c.fetcher.Get(ctx, pageURL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Debug("no content", "url", pageURL, "status", resp.StatusCode, "header", resp.Header)
		return "", nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize+1))
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", pageURL, err)
	}
	if int64(len(body)) > c.maxBodySize {
		c.logger.Warn("page body truncated, links past the limit are ignored",
			"url", pageURL,
			"max_body_size", c.maxBodySize,
		)
		body = body[:c.maxBodySize]
	}
	return string(body), nil
}
