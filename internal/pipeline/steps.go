package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/nao1215/shotdiff/internal/capture"
	"github.com/nao1215/shotdiff/internal/imageio"
	"github.com/nao1215/shotdiff/internal/model"
)

// Capture tuning defaults.
const (
	// DefaultPageTimeout bounds navigation and the readyState wait.
	DefaultPageTimeout = 20 * time.Second

	// DefaultSettleWait is the extra wait after load for script-driven rendering.
	DefaultSettleWait = 2 * time.Second

	// DefaultReadyPollInterval is the readyState polling interval.
	DefaultReadyPollInterval = 100 * time.Millisecond

	// DefaultScrollStep is the distance scrolled per lazy-load step, in CSS pixels.
	DefaultScrollStep = 800

	// DefaultScrollPause is the pause after each scroll step.
	DefaultScrollPause = 150 * time.Millisecond

	// DefaultMaxScrollSteps bounds the lazy-load scroll loop.
	DefaultMaxScrollSteps = 100

	// MaxCaptureWidth and MaxCaptureHeight clamp the captured content size.
	MaxCaptureWidth  = 10000
	MaxCaptureHeight = 200000

	// readyStateComplete is the readyState of a fully loaded document.
	readyStateComplete = "complete"
)

// sleepFunc waits for d or until ctx is done.
type sleepFunc func(ctx context.Context, d time.Duration) error

// sleepContext is the default sleepFunc.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// NavigateStep loads the page URL. A failure aborts the page.
type NavigateStep struct {
	session capture.Session
	timeout time.Duration
}

// NewNavigateStep creates a navigate step bounded by timeout.
func NewNavigateStep(session capture.Session, timeout time.Duration) *NavigateStep {
	if timeout <= 0 {
		timeout = DefaultPageTimeout
	}
	return &NavigateStep{session: session, timeout: timeout}
}

// Name returns the step name.
func (s *NavigateStep) Name() string {
	return "navigate"
}

// Do executes the navigate step.
func (s *NavigateStep) Do(ctx context.Context, page *model.PageCapture) error {
	target, err := model.NavigationURL(page.URL)
	if err != nil {
		return fmt.Errorf("%w: navigate: %w", ErrAbortPage, err)
	}

	navCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.session.Navigate(navCtx, target); err != nil {
		return fmt.Errorf("%w: navigate: %w", ErrAbortPage, err)
	}
	return nil
}

// WaitReadyStep polls document.readyState until it reports "complete".
// Running out of time is reported as a non-aborting failure: a partially
// rendered page is still worth capturing.
type WaitReadyStep struct {
	session  capture.Session
	timeout  time.Duration
	interval time.Duration
}

// NewWaitReadyStep creates a wait step polling every interval for up to timeout.
func NewWaitReadyStep(session capture.Session, timeout, interval time.Duration) *WaitReadyStep {
	if timeout <= 0 {
		timeout = DefaultPageTimeout
	}
	if interval <= 0 {
		interval = DefaultReadyPollInterval
	}
	return &WaitReadyStep{session: session, timeout: timeout, interval: interval}
}

// Name returns the step name.
func (s *WaitReadyStep) Name() string {
	return "wait_ready"
}

// Do executes the wait step.
func (s *WaitReadyStep) Do(ctx context.Context, page *model.PageCapture) error {
	waitCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var lastState string
	var lastErr error
	for {
		state, err := s.session.ReadyState(waitCtx)
		if err == nil {
			lastState = state
			if state == readyStateComplete {
				page.Ready = true
				return nil
			}
		} else {
			lastErr = err
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if lastState == "" && lastErr != nil {
				return fmt.Errorf("timed out after %s waiting for readyState: %w", s.timeout, lastErr)
			}
			return fmt.Errorf("timed out after %s waiting for readyState (last %q)", s.timeout, lastState)
		case <-ticker.C:
		}
	}
}

// SettleStep waits for asynchronous rendering and then scrolls down the
// page in fixed steps so lazy-loaded content materializes before capture.
type SettleStep struct {
	session  capture.Session
	wait     time.Duration
	step     int64
	pause    time.Duration
	maxSteps int
	sleep    sleepFunc
}

// SettleOption configures a SettleStep.
type SettleOption func(*SettleStep)

// WithScrollStep sets the distance of each scroll step.
func WithScrollStep(px int64) SettleOption {
	return func(s *SettleStep) {
		if px > 0 {
			s.step = px
		}
	}
}

// WithScrollPause sets the pause after each scroll step.
func WithScrollPause(d time.Duration) SettleOption {
	return func(s *SettleStep) {
		if d >= 0 {
			s.pause = d
		}
	}
}

// WithMaxScrollSteps bounds the number of scroll steps.
func WithMaxScrollSteps(n int) SettleOption {
	return func(s *SettleStep) {
		if n > 0 {
			s.maxSteps = n
		}
	}
}

// withSleep replaces the wait function.
func withSleep(fn sleepFunc) SettleOption {
	return func(s *SettleStep) {
		s.sleep = fn
	}
}

// NewSettleStep creates a settle step that waits for wait before scrolling.
func NewSettleStep(session capture.Session, wait time.Duration, opts ...SettleOption) *SettleStep {
	s := &SettleStep{
		session:  session,
		wait:     wait,
		step:     DefaultScrollStep,
		pause:    DefaultScrollPause,
		maxSteps: DefaultMaxScrollSteps,
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *SettleStep) Name() string {
	return "settle"
}

// Do executes the settle step.
//
// The loop ends after maxSteps steps, or as soon as the scroll offset stops
// advancing; in the latter case the page is scrolled once more to the
// bottom of the now stable document.
func (s *SettleStep) Do(ctx context.Context, page *model.PageCapture) error {
	if err := s.sleep(ctx, s.wait); err != nil {
		return err
	}

	var lastOffset int64
	for page.ScrollSteps < s.maxSteps {
		height, err := s.session.DocumentHeight(ctx)
		if err != nil {
			return fmt.Errorf("read document height: %w", err)
		}

		if err := s.session.ScrollTo(ctx, min(lastOffset+s.step, height)); err != nil {
			return fmt.Errorf("scroll: %w", err)
		}
		if err := s.sleep(ctx, s.pause); err != nil {
			return err
		}

		offset, err := s.session.ScrollOffset(ctx)
		if err != nil {
			return fmt.Errorf("read scroll offset: %w", err)
		}
		page.ScrollSteps++
		page.ScrollOffset = offset

		if offset == lastOffset {
			if stable, err := s.session.DocumentHeight(ctx); err == nil {
				height = stable
			}
			if err := s.session.ScrollTo(ctx, height); err != nil {
				return fmt.Errorf("scroll to bottom: %w", err)
			}
			return s.sleep(ctx, s.pause)
		}
		lastOffset = offset
	}

	return nil
}

// CaptureStep screenshots the whole document, beyond the viewport, and
// writes the PNG to page.OutputPath.
type CaptureStep struct {
	session   capture.Session
	timeout   time.Duration
	maxWidth  int64
	maxHeight int64
	logger    *slog.Logger
}

// NewCaptureStep creates a capture step clamping content to the default
// bounds. The protocol round trips are bounded by timeout.
func NewCaptureStep(session capture.Session, timeout time.Duration, logger *slog.Logger) *CaptureStep {
	if timeout <= 0 {
		timeout = DefaultPageTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CaptureStep{
		session:   session,
		timeout:   timeout,
		maxWidth:  MaxCaptureWidth,
		maxHeight: MaxCaptureHeight,
		logger:    logger,
	}
}

// Name returns the step name.
func (s *CaptureStep) Name() string {
	return "capture"
}

// Do executes the capture step.
func (s *CaptureStep) Do(ctx context.Context, page *model.PageCapture) error {
	captureCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	width, height, err := s.session.ContentSize(captureCtx)
	if err != nil {
		return fmt.Errorf("layout metrics: %w", err)
	}

	page.Width = clampDimension(width, capture.DefaultWindowWidth, s.maxWidth)
	page.Height = clampDimension(height, capture.DefaultWindowHeight, s.maxHeight)

	if err := s.session.OverrideDeviceMetrics(captureCtx, page.Width, page.Height); err != nil {
		return fmt.Errorf("device metrics override: %w", err)
	}
	defer func() {
		// Later pages must scroll in a normal viewport again.
		if err := s.session.ResetDeviceMetrics(ctx); err != nil {
			s.logger.Debug("failed to reset device metrics", "url", page.URL, "error", err)
		}
	}()

	data, err := s.session.CaptureBeyondViewport(captureCtx)
	if err != nil {
		return fmt.Errorf("screenshot: %w", err)
	}
	if _, err := imageio.CheckPNG(data); err != nil {
		return fmt.Errorf("screenshot: %w", err)
	}

	if err := imageio.WriteFile(page.OutputPath, data); err != nil {
		return err
	}
	page.Saved = true
	page.Bytes = len(data)
	return nil
}

// clampDimension rounds v up and bounds it to [1, limit]; a non-positive v
// falls back to def.
func clampDimension(v float64, def, limit int64) int64 {
	if v <= 0 || math.IsNaN(v) {
		return min(def, limit)
	}
	n := int64(math.Ceil(v))
	return max(1, min(n, limit))
}
