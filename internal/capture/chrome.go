package capture

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

const (
	// DefaultWindowWidth and DefaultWindowHeight size the browser window
	// before any device metrics override.
	DefaultWindowWidth  = 1920
	DefaultWindowHeight = 1080

	readyStateJS     = `document.readyState`
	scrollOffsetJS   = `window.pageYOffset`
	documentHeightJS = `(document.body && document.body.scrollHeight) || document.documentElement.scrollHeight`
)

// ChromeOptions configures a ChromeSession.
type ChromeOptions struct {
	// Headless runs Chrome without a visible window.
	Headless bool

	// ExecPath is the Chrome binary. Empty means chromedp's lookup.
	ExecPath string

	// WindowWidth and WindowHeight set the initial window size.
	WindowWidth  int
	WindowHeight int

	// Logger receives chromedp's own diagnostics at debug level.
	Logger *slog.Logger
}

// DefaultChromeOptions returns headless options with a 1920x1080 window.
func DefaultChromeOptions() ChromeOptions {
	return ChromeOptions{
		Headless:     true,
		WindowWidth:  DefaultWindowWidth,
		WindowHeight: DefaultWindowHeight,
		Logger:       slog.Default(),
	}
}

// ChromeSession is a Session backed by a Chrome process driven by chromedp.
type ChromeSession struct {
	// ctx is the chromedp tab context all actions run against.
	ctx context.Context

	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc

	closeOnce sync.Once
	closeErr  error
}

// NewChromeSessionFactory returns a SessionFactory launching Chrome with opts.
func NewChromeSessionFactory(opts ChromeOptions) SessionFactory {
	return func(ctx context.Context) (Session, error) {
		s, err := NewChromeSession(ctx, opts)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// NewChromeSession launches Chrome and opens a tab.
// The returned error wraps ErrSessionStart when the browser cannot start.
func NewChromeSession(ctx context.Context, opts ChromeOptions) (*ChromeSession, error) {
	if opts.WindowWidth <= 0 || opts.WindowHeight <= 0 {
		opts.WindowWidth, opts.WindowHeight = DefaultWindowWidth, DefaultWindowHeight
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.WindowSize(opts.WindowWidth, opts.WindowHeight),
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if !opts.Headless {
		allocOpts = append(allocOpts, chromedp.Flag("headless", false))
	}
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			logger.Debug(fmt.Sprintf(format, args...), "source", "chromedp")
		}),
		chromedp.WithErrorf(func(format string, args ...any) {
			logger.Debug(fmt.Sprintf(format, args...), "source", "chromedp")
		}),
	)

	// The first Run launches the browser.
	if err := chromedp.Run(tabCtx); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("%w: %w", ErrSessionStart, err)
	}

	return &ChromeSession{
		ctx:         tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
	}, nil
}

// run executes actions on the tab, bounded by the caller's deadline and
// cancellation.
func (s *ChromeSession) run(ctx context.Context, actions ...chromedp.Action) error {
	if s.ctx.Err() != nil {
		return ErrSessionClosed
	}

	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

// Navigate implements Session.
func (s *ChromeSession) Navigate(ctx context.Context, url string) error {
	return s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, _, errorText, err := page.Navigate(url).Do(ctx)
		if err != nil {
			return err
		}
		if errorText != "" {
			return fmt.Errorf("navigation error: %s", errorText)
		}
		return nil
	}))
}

// ReadyState implements Session.
func (s *ChromeSession) ReadyState(ctx context.Context) (string, error) {
	var state string
	if err := s.run(ctx, chromedp.Evaluate(readyStateJS, &state)); err != nil {
		return "", err
	}
	return state, nil
}

// ScrollTo implements Session.
func (s *ChromeSession) ScrollTo(ctx context.Context, y int64) error {
	return s.run(ctx, chromedp.Evaluate(fmt.Sprintf("window.scrollTo(0, %d)", y), nil))
}

// ScrollOffset implements Session.
func (s *ChromeSession) ScrollOffset(ctx context.Context) (int64, error) {
	var offset float64
	if err := s.run(ctx, chromedp.Evaluate(scrollOffsetJS, &offset)); err != nil {
		return 0, err
	}
	return int64(math.Round(offset)), nil
}

// DocumentHeight implements Session.
func (s *ChromeSession) DocumentHeight(ctx context.Context) (int64, error) {
	var height float64
	if err := s.run(ctx, chromedp.Evaluate(documentHeightJS, &height)); err != nil {
		return 0, err
	}
	return int64(math.Round(height)), nil
}

// ContentSize implements Session.
func (s *ChromeSession) ContentSize(ctx context.Context) (float64, float64, error) {
	var width, height float64
	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, _, contentSize, _, _, cssContentSize, err := page.GetLayoutMetrics().Do(ctx)
		if err != nil {
			return err
		}
		rect := cssContentSize
		if rect == nil {
			rect = contentSize
		}
		if rect == nil {
			return fmt.Errorf("layout metrics returned no content size")
		}
		width, height = rect.Width, rect.Height
		return nil
	}))
	if err != nil {
		return 0, 0, err
	}
	return width, height, nil
}

// OverrideDeviceMetrics implements Session.
func (s *ChromeSession) OverrideDeviceMetrics(ctx context.Context, width, height int64) error {
	return s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return emulation.SetDeviceMetricsOverride(width, height, 1, false).
			WithScreenWidth(width).
			WithScreenHeight(height).
			WithScale(1).
			Do(ctx)
	}))
}

// ResetDeviceMetrics implements Session.
func (s *ChromeSession) ResetDeviceMetrics(ctx context.Context) error {
	return s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return emulation.ClearDeviceMetricsOverride().Do(ctx)
	}))
}

// CaptureBeyondViewport implements Session.
func (s *ChromeSession) CaptureBeyondViewport(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		buf, err = page.CaptureScreenshot().
			WithFormat(page.CaptureScreenshotFormatPng).
			WithFromSurface(true).
			WithCaptureBeyondViewport(true).
			Do(ctx)
		return err
	}))
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// Close shuts the browser down. It is safe to call more than once.
func (s *ChromeSession) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = chromedp.Cancel(s.ctx)
		s.cancelTab()
		s.cancelAlloc()
	})
	return s.closeErr
}
