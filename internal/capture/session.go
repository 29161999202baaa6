package capture

import (
	"context"
	"errors"
)

// ErrSessionStart is returned when the browser session cannot be started.
// It is the only capture failure that fails a whole batch.
var ErrSessionStart = errors.New("failed to start browser session")

// ErrSessionClosed is returned by operations on a closed session.
var ErrSessionClosed = errors.New("browser session is closed")

// Session is a live browser page driven over a remote protocol.
// A session renders one page at a time and is reused across a batch.
type Session interface {
	// Navigate starts loading url and returns once the browser has
	// acknowledged the navigation.
	Navigate(ctx context.Context, url string) error

	// ReadyState returns the document's readyState ("loading",
	// "interactive" or "complete").
	ReadyState(ctx context.Context) (string, error)

	// ScrollTo scrolls the viewport to vertical offset y.
	ScrollTo(ctx context.Context, y int64) error

	// ScrollOffset returns the current vertical scroll offset.
	ScrollOffset(ctx context.Context) (int64, error)

	// DocumentHeight returns the scrollable height of the document.
	DocumentHeight(ctx context.Context) (int64, error)

	// ContentSize returns the full layout size of the document in CSS pixels.
	ContentSize(ctx context.Context) (width, height float64, err error)

	// OverrideDeviceMetrics emulates a device whose viewport and screen
	// are width x height at scale factor 1.
	OverrideDeviceMetrics(ctx context.Context, width, height int64) error

	// ResetDeviceMetrics removes a previous OverrideDeviceMetrics.
	ResetDeviceMetrics(ctx context.Context) error

	// CaptureBeyondViewport returns a PNG of the page including content
	// outside the normal viewport.
	CaptureBeyondViewport(ctx context.Context) ([]byte, error)

	// Close releases the session and the browser behind it.
	Close() error
}

// SessionFactory opens a new Session.
type SessionFactory func(ctx context.Context) (Session, error)
