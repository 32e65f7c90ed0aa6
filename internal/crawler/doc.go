// Package crawler discovers the pages reachable from a seed URL.
//
// # Traversal
//
// Crawler.Crawl performs a breadth-first traversal with one URL in flight at
// a time. The seed is added to the visited set and queued; the loop then
// pops one URL, fetches it, extracts its links and queues every link not
// seen before. A URL is queued at most once per traversal.
//
// The depth counter advances once per URL dequeued, not once per BFS layer,
// so maxDepth bounds the number of pages fetched (maxDepth+1) rather than the
// link distance from the seed:
//
//	maxDepth = 0  -> only the seed is fetched
//	maxDepth = 1  -> the seed and the first queued link are fetched
//
// Crawler.CrawlLayered is the bounded-parallel alternative. It fetches a
// whole layer concurrently and advances depth once per layer, which makes
// maxDepth the link distance from the seed.
//
// # Links
//
// Every <a> element with an href attribute contributes one link, resolved
// against the page URL by ResolveLink:
//   - "/path" is joined with the page URL
//   - "#fragment" resolves to the page URL itself
//   - anything else is kept verbatim
//
// No other normalization is applied. Verbatim links such as "about.html" or
// "mailto:x@y" enter the visited set and, when dequeued, fail to fetch.
//
// # Errors and cleanup
//
// By default any fetch or parse error aborts the traversal and is returned
// without partial results. WithContinueOnError records the failing URL and
// keeps going instead. On every exit path the fetcher's pooled connections
// are closed before the call returns.
package crawler
