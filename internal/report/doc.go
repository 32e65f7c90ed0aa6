// Package report renders crawl reports.
//
// Three Writer implementations are provided:
//   - SimpleWriter: plain text for the terminal, or just the URL list
//   - JSONWriter and FullJSONWriter: JSON for tool integration
//   - MarkdownWriter: GitHub Flavored Markdown with tables and a mermaid chart
//
// Report data lives in the model package; this package only formats it.
package report
