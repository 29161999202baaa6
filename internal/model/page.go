package model

import "time"

// PageCapture is the per-URL record passed through the capture phases.
// Each phase fills in what it observed; a phase that fails records its
// error and later phases still run unless the failure aborted the page.
type PageCapture struct {
	// URL is the normalized address being captured.
	URL string

	// OutputPath is where the PNG is written.
	OutputPath string

	// Ready is true once document.readyState reported "complete".
	Ready bool

	// ScrollSteps is the number of scroll steps performed.
	ScrollSteps int

	// ScrollOffset is the last vertical offset read back after scrolling.
	ScrollOffset int64

	// Width and Height are the clamped content dimensions used for capture.
	Width  int64
	Height int64

	// Bytes is the size of the written PNG, zero if nothing was written.
	Bytes int

	// Saved is true once the PNG has been written.
	Saved bool

	// Phases lists the phases that ran, in order.
	Phases []string

	// Warnings holds non-fatal phase failures.
	Warnings []string

	// Err is the failure that stopped the page, if any.
	Err error

	// Started and Finished bound the capture of this page.
	Started  time.Time
	Finished time.Time
}

// NewPageCapture creates a capture record for url written to outputPath.
func NewPageCapture(url, outputPath string) *PageCapture {
	return &PageCapture{
		URL:        url,
		OutputPath: outputPath,
		Phases:     make([]string, 0, 4),
		Warnings:   make([]string, 0),
		Started:    time.Now(),
	}
}

// AddWarning records a non-fatal phase failure.
func (p *PageCapture) AddWarning(msg string) {
	p.Warnings = append(p.Warnings, msg)
}

// Elapsed returns the time spent on the page.
func (p *PageCapture) Elapsed() time.Duration {
	if p.Finished.IsZero() {
		return time.Since(p.Started)
	}
	return p.Finished.Sub(p.Started)
}
