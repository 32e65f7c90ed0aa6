package crawler

import (
	"context"

	"github.com/nao1215/linkcrawl/internal/model"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the per-layer fetch limit used by CrawlLayered when
// WithLayered was not given.
const DefaultConcurrency = 4

// CrawlLayered is the bounded-parallel variant of Crawl. It processes the
// frontier one breadth-first layer at a time, fetching up to the configured
// number of pages of a layer in parallel.
//
// Depth is layer-based here: layer 0 is the seed and layers 0..maxDepth are
// fetched. Links found in a layer are merged in frontier order, then in
// extraction order, so the result does not depend on which fetch finishes
// first.
func (c *Crawler) CrawlLayered(ctx context.Context, baseURL string, maxDepth int) (URLSet, error) {
	report := model.NewCrawlReport(baseURL, maxDepth, model.CrawlModeLayered)
	return c.run(ctx, report, c.traverseLayers)
}

// traverseLayers is the layered traversal behind CrawlLayered.
func (c *Crawler) traverseLayers(ctx context.Context, report *model.CrawlReport) (URLSet, error) {
	limit := c.concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	visited := NewURLSet(report.BaseURL)
	frontier := []string{report.BaseURL}

	for layer := 0; layer <= report.MaxDepth && len(frontier) > 0; layer++ {
		c.logger.Debug("crawling layer", "layer", layer, "pages", len(frontier))

		links, errs, err := c.fetchLayer(ctx, frontier, limit)
		if err != nil {
			return nil, err
		}
		report.PagesFetched += len(frontier)

		next := make([]string, 0)
		for i, pageURL := range frontier {
			if errs[i] != nil {
				c.logger.Warn("skipping page", "url", pageURL, "error", errs[i])
				report.AddFailure(pageURL, errs[i])
				continue
			}
			for _, link := range links[i] {
				if visited.Add(link) {
					next = append(next, link)
				}
			}
		}
		frontier = next
	}

	return visited, nil
}

// fetchLayer visits every page of frontier with at most limit fetches in
// flight. links[i] and errs[i] belong to frontier[i]. In fail-fast mode the
// first page error cancels the rest of the layer and is returned as err;
// otherwise page errors are only reported through errs.
func (c *Crawler) fetchLayer(ctx context.Context, frontier []string, limit int) (links [][]string, errs []error, err error) {
	links = make([][]string, len(frontier))
	errs = make([]error, len(frontier))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, pageURL := range frontier {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			found, err := c.visit(gctx, pageURL)
			if err != nil {
				if !c.continueOnError {
					return err
				}
				errs[i] = err
				return nil
			}
			links[i] = found
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	// A cancelled parent may leave every worker returning early without error.
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	return links, errs, nil
}
