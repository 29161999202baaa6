// Package runner orchestrates shotdiff runs.
//
// Run captures the current state of every URL through a worker.Executor,
// compares each capture with its baseline, writes difference images for
// pages that changed, and persists the resulting report. Trainer refreshes
// the baseline directory with a fresh capture.
//
// Capture and comparison are sequential and follow the order of the URL
// list. Concurrent operations on the same screenshots or baseline directory
// are rejected with ErrRunInProgress.
package runner
