package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/linkcrawl/internal/model"
)

// SimpleWriter outputs human-readable plain text reports for the terminal.
type SimpleWriter struct {
	baseWriter

	// urlsOnly prints just the visited URLs, one per line, so the output
	// can be piped into other tools.
	urlsOnly bool

	// verbose adds failure details and timing.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithURLsOnly restricts the output to the visited URLs.
func WithURLsOnly(urlsOnly bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.urlsOnly = urlsOnly
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *model.CrawlReport) (int, error) {
	var sb strings.Builder
	w.writeReport(&sb, report)
	return io.WriteString(w.output, sb.String())
}

// WriteAll outputs the reports one after another.
func (w *SimpleWriter) WriteAll(reports []*model.CrawlReport) (int, error) {
	var sb strings.Builder
	for _, report := range reports {
		w.writeReport(&sb, report)
	}
	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeReport(sb *strings.Builder, report *model.CrawlReport) {
	if w.urlsOnly {
		for _, u := range report.Visited {
			sb.WriteString(u)
			sb.WriteString("\n")
		}
		return
	}

	w.writeHeader(sb, report)
	w.writeVisited(sb, report)
	w.writeFailures(sb, report)
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.CrawlReport) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("CRAWL REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Seed URL:       %s\n", report.BaseURL)
	fmt.Fprintf(sb, "Mode:           %s\n", modeLabel(report.Mode))
	fmt.Fprintf(sb, "Max Depth:      %d\n", report.MaxDepth)
	fmt.Fprintf(sb, "Pages Fetched:  %d\n", report.PagesFetched)
	fmt.Fprintf(sb, "URLs Found:     %d\n", len(report.Visited))
	if w.verbose {
		fmt.Fprintf(sb, "Started:        %s\n", report.StartedAt.Format("2006-01-02 15:04:05 MST"))
		fmt.Fprintf(sb, "Duration:       %s\n", report.Duration)
	}

	if report.Succeeded() {
		fmt.Fprintf(sb, "Status:         %s\n", strings.ToUpper(status(report)))
	} else {
		fmt.Fprintf(sb, "Status:         %s - %s\n", strings.ToUpper(status(report)), report.Error)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeVisited(sb *strings.Builder, report *model.CrawlReport) {
	if len(report.Visited) == 0 {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("DISCOVERED URLS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	for _, u := range report.Visited {
		fmt.Fprintf(sb, "  %s\n", u)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFailures(sb *strings.Builder, report *model.CrawlReport) {
	if len(report.Failed) == 0 {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("FAILED URLS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	for _, f := range report.Failed {
		fmt.Fprintf(sb, "  [!] %s\n", f.URL)
		if w.verbose {
			fmt.Fprintf(sb, "      %s\n", f.Error)
		}
	}
	sb.WriteString("\n")
}
