package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/shotdiff/internal/model"
)

// JSONWriter outputs reports in JSON format for tool integration.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string (typically "  " or "\t").
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

// WithPrettyPrint enables pretty-printed JSON with two-space indentation.
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

// Write outputs the report, including report_path when it is set.
func (w *JSONWriter) Write(report *model.RunReport) (int, error) {
	return w.writeJSON(report)
}

// writeJSON marshals v and writes it followed by a newline.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	data, err := marshal(v, w.indent, w.indentPrefix, w.indentString)
	if err != nil {
		return 0, err
	}
	return w.output.Write(data)
}

func marshal(v any, indent bool, prefix, indentString string) ([]byte, error) {
	var data []byte
	var err error
	if indent {
		data, err = json.MarshalIndent(v, prefix, indentString)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
