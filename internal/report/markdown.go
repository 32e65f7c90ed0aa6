package report

import (
	"io"
	"sort"
	"strconv"

	"github.com/nao1215/linkcrawl/internal/model"
	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
)

// MarkdownWriter outputs reports as GitHub Flavored Markdown: summary
// tables, an alert for the outcome, a mermaid pie chart of discovered URLs
// per host and the URL lists.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.CrawlReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Crawl Report")
	md.PlainText("")
	w.writeReport(md, report, false)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteAll outputs a batch overview followed by one section per seed.
func (w *MarkdownWriter) WriteAll(reports []*model.CrawlReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Crawl Reports")
	md.PlainText("")

	rows := make([][]string, len(reports))
	for i, r := range reports {
		rows[i] = []string{
			"`" + r.BaseURL + "`",
			statusLabel(r),
			strconv.Itoa(r.PagesFetched),
			strconv.Itoa(len(r.Visited)),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Seed", "Status", "Pages Fetched", "URLs Found"},
		Rows:   rows,
	})
	md.PlainText("")

	for _, r := range reports {
		md.H2(r.BaseURL)
		md.PlainText("")
		w.writeReport(md, r, true)
	}
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeReport writes the sections of one report. Nested sections use H3
// headings so a batch keeps one H2 per seed.
func (w *MarkdownWriter) writeReport(md *markdown.Markdown, report *model.CrawlReport, nested bool) {
	heading := md.H2
	if nested {
		heading = md.H3
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Seed URL", "`" + report.BaseURL + "`"},
			{"Mode", modeLabel(report.Mode)},
			{"Max Depth", strconv.Itoa(report.MaxDepth)},
			{"Pages Fetched", strconv.Itoa(report.PagesFetched)},
			{"URLs Found", strconv.Itoa(len(report.Visited))},
			{"Started", report.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", report.Duration.String()},
			{"Status", statusLabel(report)},
		},
	})
	md.PlainText("")

	w.writeAlert(md, report)

	if len(report.Visited) > 0 {
		heading("Discovered URLs")
		md.PlainText("")
		w.writePieChart(md, report)
		md.BulletList(codeSpans(report.Visited)...)
		md.PlainText("")
	}

	if len(report.Failed) > 0 {
		heading("Failed URLs")
		md.PlainText("")
		rows := make([][]string, len(report.Failed))
		for i, f := range report.Failed {
			rows[i] = []string{"`" + f.URL + "`", truncateString(f.Error, 80)}
		}
		md.Table(markdown.TableSet{
			Header: []string{"URL", "Error"},
			Rows:   rows,
		})
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *model.CrawlReport) {
	switch {
	case !report.Succeeded():
		md.Cautionf("Crawl failed: %s", report.Error)
	case len(report.Failed) > 0:
		md.Warningf("%d page(s) could not be crawled and were skipped.", len(report.Failed))
	default:
		md.Tip("Crawl completed without errors.")
	}
	md.PlainText("")
}

// writePieChart writes a mermaid pie chart of discovered URLs per host.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, report *model.CrawlReport) {
	counts := make(map[string]uint64)
	for _, u := range report.Visited {
		counts[hostOf(u)]++
	}

	hosts := make([]string, 0, len(counts))
	for host := range counts {
		hosts = append(hosts, host)
	}
	sort.Strings(hosts)

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("URLs per Host"),
		piechart.WithShowData(true),
	)
	for _, host := range hosts {
		chart.LabelAndIntValue(host, counts[host])
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [linkcrawl](https://github.com/nao1215/linkcrawl)*")
}

func codeSpans(values []string) []string {
	spans := make([]string, len(values))
	for i, v := range values {
		spans[i] = "`" + v + "`"
	}
	return spans
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
