package report

import (
	"io"
	"net/url"

	"github.com/nao1215/linkcrawl/internal/model"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Writer defines the interface for report output.
type Writer interface {
	// Write outputs one crawl report.
	// Returns the number of bytes written and any error encountered.
	Write(report *model.CrawlReport) (int, error)

	// WriteAll outputs the reports of a batch crawl as one document.
	WriteAll(reports []*model.CrawlReport) (int, error)
}

// MultiWriter writes to multiple Writers simultaneously.
// This is useful for outputting to both terminal and file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(report *model.CrawlReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteAll outputs the reports to all configured Writers.
func (m *MultiWriter) WriteAll(reports []*model.CrawlReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteAll(reports)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

var titleCaser = cases.Title(language.English)

// modeLabel returns the display name of a crawl mode ("Sequential").
func modeLabel(mode model.CrawlMode) string {
	return titleCaser.String(string(mode))
}

// status returns "complete", "complete with failures" or "failed".
func status(report *model.CrawlReport) string {
	switch {
	case !report.Succeeded():
		return "failed"
	case len(report.Failed) > 0:
		return "complete with failures"
	default:
		return "complete"
	}
}

// statusLabel returns the title-cased status ("Complete With Failures").
func statusLabel(report *model.CrawlReport) string {
	return titleCaser.String(status(report))
}

// hostOf returns the host of rawURL, or "other" for entries without one
// such as mailto: or relative links kept verbatim.
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "other"
	}
	return u.Host
}
