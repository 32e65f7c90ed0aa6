package model

import (
	"sort"
	"time"
)

// CrawlMode identifies which traversal produced a report.
type CrawlMode string

const (
	// CrawlModeSequential is the one-URL-at-a-time traversal whose depth
	// counter advances on every dequeue.
	CrawlModeSequential CrawlMode = "sequential"

	// CrawlModeLayered is the bounded-parallel traversal whose depth counter
	// advances once per BFS layer.
	CrawlModeLayered CrawlMode = "layered"
)

// CrawlReport is the result of crawling one seed URL.
type CrawlReport struct {
	// BaseURL is the seed the traversal started from.
	BaseURL string `json:"base_url"`

	// MaxDepth is the depth budget the traversal ran with.
	MaxDepth int `json:"max_depth"`

	// Mode is the traversal mode.
	Mode CrawlMode `json:"mode"`

	// Visited holds every discovered URL, sorted. Empty when the crawl failed.
	Visited []string `json:"visited"`

	// PagesFetched counts URLs dequeued and requested.
	PagesFetched int `json:"pages_fetched"`

	// Failed lists URLs whose fetch or parse failed while the crawler was
	// configured to continue on error.
	Failed []FailedURL `json:"failed,omitempty"`

	// Error is the message of the error that aborted the crawl.
	Error string `json:"error,omitempty"`

	// StartedAt is when the traversal began.
	StartedAt time.Time `json:"started_at"`

	// Duration is the wall time of the traversal.
	Duration time.Duration `json:"duration"`
}

// FailedURL records one URL that could not be crawled.
type FailedURL struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}

// NewCrawlReport creates an empty report for baseURL.
func NewCrawlReport(baseURL string, maxDepth int, mode CrawlMode) *CrawlReport {
	return &CrawlReport{
		BaseURL:   baseURL,
		MaxDepth:  maxDepth,
		Mode:      mode,
		Visited:   make([]string, 0),
		Failed:    make([]FailedURL, 0),
		StartedAt: time.Now(),
	}
}

// SetVisited stores urls in sorted order.
func (r *CrawlReport) SetVisited(urls []string) {
	visited := make([]string, len(urls))
	copy(visited, urls)
	sort.Strings(visited)
	r.Visited = visited
}

// AddFailure records a URL that failed without aborting the crawl.
func (r *CrawlReport) AddFailure(url string, err error) {
	r.Failed = append(r.Failed, FailedURL{URL: url, Error: err.Error()})
}

// Finish stamps the duration and, when err is non-nil, the error message.
// A failed crawl keeps no visited URLs.
func (r *CrawlReport) Finish(err error) {
	r.Duration = time.Since(r.StartedAt)
	if err != nil {
		r.Error = err.Error()
		r.Visited = make([]string, 0)
	}
}

// Succeeded reports whether the crawl completed.
func (r *CrawlReport) Succeeded() bool {
	return r.Error == ""
}
