package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() so callers can use
// errors.Is() to tell configuration problems apart from run failures.
var (
	// ErrInvalidTimeout is returned when the page timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidWait is returned when the settle wait is negative.
	ErrInvalidWait = errors.New("invalid wait: must be non-negative")

	// ErrInvalidThreshold is returned when the SSIM threshold is outside [-1, 1].
	ErrInvalidThreshold = errors.New("invalid ssim threshold: must be between -1 and 1")

	// ErrNoDataDir is returned when no data directory is configured.
	ErrNoDataDir = errors.New("no data directory configured")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")
)
