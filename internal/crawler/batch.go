package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/linkcrawl/internal/model"
	"golang.org/x/sync/errgroup"
)

// Target is one seed of a batch crawl.
type Target struct {
	// URL is the seed URL.
	URL string

	// MaxDepth is the depth budget for this seed.
	MaxDepth int
}

// Factory builds the Crawler for one target. Each target should get its own
// fetcher, since a finished crawl closes every connection of its pool.
type Factory func(target Target) (*Crawler, error)

// BatchCrawler crawls several seeds concurrently.
type BatchCrawler struct {
	factory     Factory
	concurrency int
	logger      *slog.Logger
}

// BatchOption configures a BatchCrawler.
type BatchOption func(*BatchCrawler)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchCrawler) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of seeds crawled at once.
// Default is 1.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchCrawler) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchCrawler creates a BatchCrawler that obtains a Crawler per target
// from factory.
func NewBatchCrawler(factory Factory, opts ...BatchOption) *BatchCrawler {
	b := &BatchCrawler{
		factory:     factory,
		concurrency: 1,
	}

	for _, opt := range opts {
		opt(b)
	}

	if b.logger == nil {
		b.logger = slog.Default()
	}

	return b
}

// ProcessBatch crawls every target and returns one report per target, in
// target order. A failing target does not stop the others; its error is
// recorded in its report. The returned error is non-nil only when ctx ends.
func (b *BatchCrawler) ProcessBatch(ctx context.Context, targets []Target) ([]*model.CrawlReport, error) {
	b.logger.Info("starting batch crawl",
		"total_targets", len(targets),
		"concurrency", b.concurrency,
	)
	startTime := time.Now()

	// Each goroutine writes only its own index.
	reports := make([]*model.CrawlReport, len(targets))
	err := b.each(ctx, targets, func(report *model.CrawlReport, index int) {
		reports[index] = report
	})

	b.logger.Info("batch crawl complete",
		"total_targets", len(targets),
		"elapsed", time.Since(startTime),
	)
	return reports, err
}

// ProcessBatchWithCallback crawls every target and hands each report to
// callback as soon as it is ready, together with the target's index.
// callback runs on the crawling goroutine and must be safe for concurrent use.
func (b *BatchCrawler) ProcessBatchWithCallback(
	ctx context.Context,
	targets []Target,
	callback func(report *model.CrawlReport, index int),
) error {
	return b.each(ctx, targets, callback)
}

func (b *BatchCrawler) each(
	ctx context.Context,
	targets []Target,
	callback func(report *model.CrawlReport, index int),
) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	for i, target := range targets {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			b.logger.Info("crawling target",
				"url", target.URL,
				"index", i+1,
				"total", len(targets),
			)

			report := b.crawlTarget(ctx, target)
			if report.Succeeded() {
				b.logger.Info("target completed", "url", target.URL, "visited", len(report.Visited))
			} else {
				b.logger.Warn("target failed", "url", target.URL, "error", report.Error)
			}

			callback(report, i)
			return nil
		})
	}

	return g.Wait()
}

// crawlTarget always returns a report; failures end up in report.Error.
func (b *BatchCrawler) crawlTarget(ctx context.Context, target Target) *model.CrawlReport {
	c, err := b.factory(target)
	if err != nil {
		report := model.NewCrawlReport(target.URL, target.MaxDepth, model.CrawlModeSequential)
		report.Finish(fmt.Errorf("failed to create crawler for %s: %w", target.URL, err))
		return report
	}

	//nolint:errcheck // the error is stored in the report
	report, _ := c.CrawlReport(ctx, target.URL, target.MaxDepth)
	return report
}
