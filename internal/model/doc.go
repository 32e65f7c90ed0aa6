// Package model defines the result types shared by the crawler, the report
// writers and the CLI.
//
// CrawlReport is JSON-serializable so it can be written as-is by the JSON
// report writer.
package model
