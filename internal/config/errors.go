package config

import "errors"

// Configuration validation errors.
// These are returned by Config.Validate and ValidateURL so callers can
// branch on them with errors.Is.
var (
	// ErrNoTarget is returned when no seed URL is given.
	ErrNoTarget = errors.New("no target specified: provide at least one URL to crawl")

	// ErrInvalidTimeout is returned when the request timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidMaxRetry is returned when fewer than one attempt per request
	// is configured. Zero attempts would fail every fetch.
	ErrInvalidMaxRetry = errors.New("invalid max retry: must be at least 1")

	// ErrInvalidRetryDelay is returned when the delay between attempts is negative.
	ErrInvalidRetryDelay = errors.New("invalid retry delay: must be non-negative")

	// ErrInvalidMaxConnections is returned when the per-origin connection cap
	// is not positive.
	ErrInvalidMaxConnections = errors.New("invalid max connections: must be positive")

	// ErrInvalidDepth is returned when the crawl depth is negative.
	ErrInvalidDepth = errors.New("invalid depth: must be non-negative")

	// ErrInvalidBatchSize is returned when the number of concurrently crawled
	// seeds is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrInvalidParallelism is returned when the per-layer fetch limit is negative.
	ErrInvalidParallelism = errors.New("invalid parallelism: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the body size limit is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidURL is returned when a seed is not an absolute http or https
	// URL with a host.
	ErrInvalidURL = errors.New("invalid URL: must be an absolute http or https URL")
)
