package model

import (
	"time"
)

// Metrics are the similarity scores of one baseline/current pair.
type Metrics struct {
	// SSIM is the mean structural similarity in [-1, 1]; 1 means identical.
	SSIM float64 `json:"ssim"`

	// MSE is the mean squared luminance error. It is reported only and
	// takes no part in classification.
	MSE float64 `json:"mse"`
}

// Item is the verdict for one URL of a run.
type Item struct {
	URL     string   `json:"url"`
	Status  Status   `json:"status"`
	Metrics *Metrics `json:"metrics,omitempty"`
	Reason  string   `json:"reason,omitempty"`

	// Current is the path of the current capture. It is null when a URL has
	// no baseline and its capture is missing too.
	Current *string `json:"current"`

	// Trainer is the path where the baseline image is expected.
	Trainer string `json:"trainer"`

	// Diff is the path of the difference image, set only for non-ok
	// verdicts that were compared.
	Diff *string `json:"diff,omitempty"`
}

// RunReport aggregates one invocation of a run. It is created once, written
// once and never updated afterwards.
type RunReport struct {
	RunID          string    `json:"run_id"`
	CreatedAt      time.Time `json:"created_at"`
	URLsFile       string    `json:"urls_file"`
	ScreenshotsDir string    `json:"screenshots_dir"`
	TrainerDir     string    `json:"trainer_dir"`
	DiffDir        string    `json:"diff_dir"`
	SSIMThreshold  float64   `json:"ssim_threshold"`
	Execution      Execution `json:"execution"`
	Totals         Totals    `json:"totals"`
	Items          []Item    `json:"items"`

	// ReportPath is where the JSON artifact was written. It is filled in
	// after writing and is not part of the artifact itself.
	ReportPath string `json:"report_path,omitempty"`
}

// NewRunReport creates an empty report for a run.
func NewRunReport(runID string, createdAt time.Time) *RunReport {
	return &RunReport{
		RunID:     runID,
		CreatedAt: createdAt,
		Items:     make([]Item, 0),
	}
}

// AddItem appends a verdict and updates the totals.
func (r *RunReport) AddItem(item Item) {
	r.Items = append(r.Items, item)
	r.Totals.Add(item.Status)
}

// ItemsByStatus returns the items with the given status, in run order.
func (r *RunReport) ItemsByStatus(s Status) []Item {
	items := make([]Item, 0)
	for _, item := range r.Items {
		if item.Status == s {
			items = append(items, item)
		}
	}
	return items
}

// Passed reports whether the run has no failing URL and the capture
// worker succeeded.
func (r *RunReport) Passed() bool {
	return r.Execution.OK && !r.Totals.HasFailures()
}

// TrainerResult is the outcome of refreshing the baseline directory.
type TrainerResult struct {
	OK         bool      `json:"ok"`
	Details    Execution `json:"details"`
	TrainerDir string    `json:"trainer_dir"`
	Error      string    `json:"error,omitempty"`
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}
