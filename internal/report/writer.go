package report

import (
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/shotdiff/internal/model"
)

// Writer renders a run report to a destination.
type Writer interface {
	// Write outputs the report.
	// Returns the number of bytes written and any error encountered.
	Write(report *model.RunReport) (int, error)
}

// MultiWriter writes to multiple Writers in order.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(report *model.RunReport) (int, error) {
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

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// StatusLabel returns a human readable label such as "No Baseline".
func StatusLabel(s model.Status) string {
	return cases.Title(language.English).String(strings.ReplaceAll(string(s), "_", " "))
}

// statusHeading returns the upper case label used in terminal output.
func statusHeading(s model.Status) string {
	return cases.Upper(language.English).String(strings.ReplaceAll(string(s), "_", " "))
}

// formatSSIM prints an SSIM score, or "-" when the item was not compared.
func formatSSIM(m *model.Metrics) string {
	if m == nil {
		return "-"
	}
	return strconv.FormatFloat(m.SSIM, 'f', 4, 64)
}

// formatMSE prints an MSE value, or "-" when the item was not compared.
func formatMSE(m *model.Metrics) string {
	if m == nil {
		return "-"
	}
	return strconv.FormatFloat(m.MSE, 'f', 2, 64)
}

// truncateString shortens s to at most maxLen runes, ending in "...".
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
