// Package main provides the entry point for the linkcrawl CLI.
//
// linkcrawl discovers the URLs reachable from one or more seed pages by a
// breadth-first crawl, reusing one pooled HTTP session per origin and
// retrying requests that fail with a server error.
//
// Usage:
//
//	linkcrawl crawl <url>...
//	linkcrawl init
//
// See --help for all available options.
package main

func main() {
	Execute()
}
