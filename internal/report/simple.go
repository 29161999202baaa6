package report

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/nao1215/shotdiff/internal/model"
)

// SimpleWriter outputs human-readable text reports for terminal display.
// Status labels are colored when the output is a terminal.
type SimpleWriter struct {
	baseWriter

	// verbose adds metrics of passing pages and the worker output.
	verbose bool

	// colors maps statuses to their label color.
	colors map[model.Status]*color.Color
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// WithColor forces colored output on or off.
func WithColor(enabled bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.setColor(enabled)
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
		colors: map[model.Status]*color.Color{
			model.StatusOK:         color.New(color.FgGreen, color.Bold),
			model.StatusWarn:       color.New(color.FgYellow, color.Bold),
			model.StatusFail:       color.New(color.FgRed, color.Bold),
			model.StatusNoBaseline: color.New(color.FgCyan, color.Bold),
		},
	}
	w.setColor(isTerminal(output))

	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *SimpleWriter) setColor(enabled bool) {
	for _, c := range w.colors {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
}

// isTerminal reports whether output is an interactive terminal.
func isTerminal(output io.Writer) bool {
	f, ok := output.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *model.RunReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeTotals(&sb, report)
	w.writeItems(&sb, report)
	w.writeExecution(&sb, report)
	w.writeFooter(&sb, report)

	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) label(s model.Status) string {
	text := fmt.Sprintf("%-11s", statusHeading(s))
	if c, ok := w.colors[s]; ok {
		return c.Sprint(text)
	}
	return text
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.RunReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                    VISUAL REGRESSION REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Run ID:         %s\n", report.RunID)
	fmt.Fprintf(sb, "Date:           %s\n", report.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "URL List:       %s\n", report.URLsFile)
	fmt.Fprintf(sb, "Baselines:      %s\n", report.TrainerDir)
	fmt.Fprintf(sb, "Threshold:      %g\n", report.SSIMThreshold)
	if report.Execution.OK {
		sb.WriteString("Capture:        Complete\n")
	} else {
		fmt.Fprintf(sb, "Capture:        FAILED (exit %d)\n", report.Execution.ReturnCode)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeTotals(sb *strings.Builder, report *model.RunReport) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\nSUMMARY\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	for _, s := range model.AllStatuses() {
		fmt.Fprintf(sb, "  %s %d\n", w.label(s), report.Totals.Count(s))
	}
	fmt.Fprintf(sb, "\n  %-11s %d pages\n\n", "TOTAL", report.Totals.Total())
}

func (w *SimpleWriter) writeItems(sb *strings.Builder, report *model.RunReport) {
	if len(report.Items) == 0 {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\nPAGES\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	for _, item := range report.Items {
		fmt.Fprintf(sb, "[%s] %s\n", w.label(item.Status), item.URL)
		if item.Metrics != nil && (w.verbose || item.Status != model.StatusOK) {
			fmt.Fprintf(sb, "    SSIM: %s  MSE: %s\n", formatSSIM(item.Metrics), formatMSE(item.Metrics))
		}
		if item.Reason != "" {
			fmt.Fprintf(sb, "    Reason: %s\n", item.Reason)
		}
		if item.Diff != nil {
			fmt.Fprintf(sb, "    Diff: %s\n", *item.Diff)
		}
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeExecution(sb *strings.Builder, report *model.RunReport) {
	if !w.verbose && report.Execution.OK {
		return
	}
	if report.Execution.Stdout == "" && report.Execution.Stderr == "" {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\nCAPTURE OUTPUT\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
	if report.Execution.Stdout != "" {
		sb.WriteString(report.Execution.Stdout)
		sb.WriteString("\n")
	}
	if report.Execution.Stderr != "" {
		sb.WriteString(report.Execution.Stderr)
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFooter(sb *strings.Builder, report *model.RunReport) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	if report.ReportPath != "" {
		fmt.Fprintf(sb, "Report saved to %s\n", report.ReportPath)
	}
	if report.Passed() {
		sb.WriteString("Result: PASSED\n")
	} else {
		sb.WriteString("Result: FAILED\n")
	}
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
