package model

// Status is the per-URL verdict of a run.
type Status string

const (
	// StatusOK means the current capture is similar enough to its baseline.
	StatusOK Status = "ok"

	// StatusWarn is part of the totals vocabulary but is never assigned by
	// classification.
	StatusWarn Status = "warn"

	// StatusFail means the capture is missing, could not be compared, or
	// scored below the threshold.
	StatusFail Status = "fail"

	// StatusNoBaseline means no baseline image exists for the URL.
	StatusNoBaseline Status = "no_baseline"
)

// AllStatuses lists every status in report order.
func AllStatuses() []Status {
	return []Status{StatusOK, StatusWarn, StatusFail, StatusNoBaseline}
}

// String returns the status value.
func (s Status) String() string {
	return string(s)
}

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusOK, StatusWarn, StatusFail, StatusNoBaseline:
		return true
	default:
		return false
	}
}

// Totals counts verdicts per status.
type Totals struct {
	OK         int `json:"ok"`
	Warn       int `json:"warn"`
	Fail       int `json:"fail"`
	NoBaseline int `json:"no_baseline"`
}

// Add counts one verdict. Unknown statuses are ignored.
func (t *Totals) Add(s Status) {
	switch s {
	case StatusOK:
		t.OK++
	case StatusWarn:
		t.Warn++
	case StatusFail:
		t.Fail++
	case StatusNoBaseline:
		t.NoBaseline++
	}
}

// Count returns the number of verdicts recorded for s.
func (t Totals) Count(s Status) int {
	switch s {
	case StatusOK:
		return t.OK
	case StatusWarn:
		return t.Warn
	case StatusFail:
		return t.Fail
	case StatusNoBaseline:
		return t.NoBaseline
	default:
		return 0
	}
}

// Total returns the number of verdicts across all statuses.
func (t Totals) Total() int {
	return t.OK + t.Warn + t.Fail + t.NoBaseline
}

// HasFailures reports whether any URL failed.
func (t Totals) HasFailures() bool {
	return t.Fail > 0
}
