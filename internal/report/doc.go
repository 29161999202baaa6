// Package report persists and renders run reports.
//
// SaveArtifact writes the JSON document of a run into the reports
// directory under a timestamped name that is never overwritten. The
// writers render a report for people or tools:
//   - SimpleWriter: terminal text, colored when writing to a terminal
//   - MarkdownWriter: GitHub flavored Markdown with a totals pie chart
//   - JSONWriter: the report document itself
//
// Writers implement the Writer interface, allowing them to be used
// interchangeably and composed for multi-format output.
package report
