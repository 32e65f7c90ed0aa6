package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/linkcrawl/internal/model"
)

// JSONWriter outputs reports in JSON format for tool integration.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	indent       bool
	indentPrefix string
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint is WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the report as a single JSON object.
func (w *JSONWriter) Write(report *model.CrawlReport) (int, error) {
	return w.writeJSON(report)
}

// WriteAll outputs the reports as a JSON array.
func (w *JSONWriter) WriteAll(reports []*model.CrawlReport) (int, error) {
	if reports == nil {
		reports = make([]*model.CrawlReport, 0)
	}
	return w.writeJSON(reports)
}

func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}

	data = append(data, '\n')
	return w.output.Write(data)
}

// JSONReport wraps crawl reports with the version of the tool that
// produced them.
type JSONReport struct {
	// Version is the linkcrawl version that generated this report.
	Version string `json:"version"`

	// Reports holds one report per seed URL.
	Reports []*model.CrawlReport `json:"reports"`
}

// NewJSONReport creates a JSONReport wrapper with version information.
func NewJSONReport(version string, reports ...*model.CrawlReport) *JSONReport {
	if reports == nil {
		reports = make([]*model.CrawlReport, 0)
	}
	return &JSONReport{Version: version, Reports: reports}
}

// FullJSONWriter outputs reports inside a JSONReport envelope. A single
// report and a batch produce the same shape.
type FullJSONWriter struct {
	*JSONWriter

	version string
}

// NewFullJSONWriter creates a writer for complete reports with metadata.
func NewFullJSONWriter(output io.Writer, version string, opts ...JSONWriterOption) *FullJSONWriter {
	return &FullJSONWriter{
		JSONWriter: NewJSONWriter(output, opts...),
		version:    version,
	}
}

// Write outputs the report wrapped with metadata.
func (w *FullJSONWriter) Write(report *model.CrawlReport) (int, error) {
	return w.writeJSON(NewJSONReport(w.version, report))
}

// WriteAll outputs every report wrapped with metadata.
func (w *FullJSONWriter) WriteAll(reports []*model.CrawlReport) (int, error) {
	return w.writeJSON(NewJSONReport(w.version, reports...))
}
