package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/shotdiff/internal/model"
)

// MarkdownWriter outputs reports in GitHub flavored Markdown, for pull
// request comments and CI job summaries.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.RunReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeTotals(md, report)
	w.writeItems(md, report)
	w.writeExecution(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.RunReport) {
	md.H1("Visual Regression Report")
	md.PlainText("")

	rows := [][]string{
		{"Run ID", "`" + report.RunID + "`"},
		{"Date", report.CreatedAt.Format("2006-01-02 15:04:05 MST")},
		{"URL List", "`" + report.URLsFile + "`"},
		{"Baselines", "`" + report.TrainerDir + "`"},
		{"SSIM Threshold", strconv.FormatFloat(report.SSIMThreshold, 'f', -1, 64)},
		{"Capture", w.executionText(report.Execution)},
	}
	if report.ReportPath != "" {
		rows = append(rows, []string{"Report", "`" + report.ReportPath + "`"})
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) executionText(e model.Execution) string {
	if e.OK {
		return "✅ Completed"
	}
	return "❌ Failed (exit " + strconv.Itoa(e.ReturnCode) + ")"
}

func (w *MarkdownWriter) writeTotals(md *markdown.Markdown, report *model.RunReport) {
	md.H2("Summary")
	md.PlainText("")

	t := report.Totals
	md.Table(markdown.TableSet{
		Header: []string{"Status", "Count"},
		Rows: [][]string{
			{"✅ " + StatusLabel(model.StatusOK), strconv.Itoa(t.OK)},
			{"⚠️ " + StatusLabel(model.StatusWarn), strconv.Itoa(t.Warn)},
			{"❌ " + StatusLabel(model.StatusFail), strconv.Itoa(t.Fail)},
			{"🆕 " + StatusLabel(model.StatusNoBaseline), strconv.Itoa(t.NoBaseline)},
			{"**Total**", "**" + strconv.Itoa(t.Total()) + "**"},
		},
	})
	md.PlainText("")

	if t.Total() > 0 {
		w.writePieChart(md, t)
	}
	w.writeAlert(md, report)
}

func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, t model.Totals) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Page Status"),
		piechart.WithShowData(true),
	)
	for _, s := range model.AllStatuses() {
		if n := t.Count(s); n > 0 {
			chart.LabelAndIntValue(StatusLabel(s), uint64(n))
		}
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *model.RunReport) {
	t := report.Totals
	switch {
	case !report.Execution.OK:
		md.Cautionf("The capture worker failed with exit code %d; current screenshots may be missing.",
			report.Execution.ReturnCode)
	case t.Fail > 0:
		md.Warningf("%d page(s) differ from their baseline.", t.Fail)
	case t.NoBaseline > 0:
		md.Importantf("%d page(s) have no baseline yet. Run the trainer to record them.", t.NoBaseline)
	default:
		md.Tip("All pages match their baselines.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeItems(md *markdown.Markdown, report *model.RunReport) {
	md.H2("Pages")
	md.PlainText("")

	if len(report.Items) == 0 {
		md.PlainText("No pages were checked.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(report.Items))
	for i, item := range report.Items {
		reason := item.Reason
		if reason == "" {
			reason = "-"
		}
		diff := "-"
		if item.Diff != nil {
			diff = "`" + *item.Diff + "`"
		}
		rows[i] = []string{
			truncateString(item.URL, 60),
			StatusLabel(item.Status),
			formatSSIM(item.Metrics),
			formatMSE(item.Metrics),
			truncateString(reason, 60),
			diff,
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"URL", "Status", "SSIM", "MSE", "Reason", "Diff"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeExecution(md *markdown.Markdown, report *model.RunReport) {
	if report.Execution.OK || report.Execution.Stderr == "" {
		return
	}
	md.Details("Capture worker stderr", "```\n"+report.Execution.Stderr+"\n```")
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [shotdiff](https://github.com/nao1215/shotdiff)*")
}
