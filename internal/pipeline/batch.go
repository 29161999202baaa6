package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/nao1215/shotdiff/internal/capture"
	"github.com/nao1215/shotdiff/internal/imageio"
	"github.com/nao1215/shotdiff/internal/model"
)

// PageSettings are the per-page timing parameters.
type PageSettings struct {
	// Timeout bounds navigation, the readyState wait and the capture round trips.
	Timeout time.Duration

	// Wait is the extra settle time after load.
	Wait time.Duration
}

// DefaultPageSettings returns the default timing parameters.
func DefaultPageSettings() PageSettings {
	return PageSettings{
		Timeout: DefaultPageTimeout,
		Wait:    DefaultSettleWait,
	}
}

// BatchResult summarizes a captured batch.
type BatchResult struct {
	// Pages holds one record per URL, in input order.
	Pages []*model.PageCapture

	// Saved counts pages whose PNG was written.
	Saved int

	// Failed counts pages without a PNG.
	Failed int

	// Elapsed is the wall time of the batch.
	Elapsed time.Duration
}

// BatchProcessor captures a list of URLs one at a time with a single browser
// session. Page failures are absorbed; only a session that cannot start
// fails the batch.
type BatchProcessor struct {
	// sessionFactory opens the browser session for a batch.
	sessionFactory capture.SessionFactory

	// settings returns the timing of a page.
	settings func(url string) PageSettings

	// keyFunc names the image written for a URL.
	keyFunc model.KeyFunc

	// settleOpts tune the lazy-load scrolling.
	settleOpts []SettleOption

	// pollInterval is the readyState polling interval.
	pollInterval time.Duration

	// progress receives human readable progress lines.
	progress io.Writer

	// logger is used for batch-level logging.
	logger *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithPageSettings sets the timing used for every page.
func WithPageSettings(settings PageSettings) BatchOption {
	return func(b *BatchProcessor) {
		b.settings = func(string) PageSettings { return settings }
	}
}

// WithPageSettingsFunc sets a per-URL timing lookup.
func WithPageSettingsFunc(fn func(url string) PageSettings) BatchOption {
	return func(b *BatchProcessor) {
		if fn != nil {
			b.settings = fn
		}
	}
}

// WithKeyFunc sets how image names are derived from URLs.
func WithKeyFunc(fn model.KeyFunc) BatchOption {
	return func(b *BatchProcessor) {
		if fn != nil {
			b.keyFunc = fn
		}
	}
}

// WithSettleOptions tunes the scrolling of the settle step.
func WithSettleOptions(opts ...SettleOption) BatchOption {
	return func(b *BatchProcessor) {
		b.settleOpts = append(b.settleOpts, opts...)
	}
}

// WithReadyPollInterval sets the readyState polling interval.
func WithReadyPollInterval(d time.Duration) BatchOption {
	return func(b *BatchProcessor) {
		b.pollInterval = d
	}
}

// WithProgress sets the writer receiving progress lines.
func WithProgress(w io.Writer) BatchOption {
	return func(b *BatchProcessor) {
		if w != nil {
			b.progress = w
		}
	}
}

// NewBatchProcessor creates a BatchProcessor opening sessions with factory.
func NewBatchProcessor(factory capture.SessionFactory, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		sessionFactory: factory,
		settings:       func(string) PageSettings { return DefaultPageSettings() },
		keyFunc:        model.CaptureKey,
		pollInterval:   DefaultReadyPollInterval,
		progress:       io.Discard,
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// PagePipeline builds the four-phase pipeline for one page.
func (bp *BatchProcessor) PagePipeline(session capture.Session, settings PageSettings) *Pipeline {
	p := New(
		WithLogger(bp.logger),
		WithContinueOnError(true),
	)
	p.AddSteps(
		NewNavigateStep(session, settings.Timeout),
		NewWaitReadyStep(session, settings.Timeout, bp.pollInterval),
		NewSettleStep(session, settings.Wait, bp.settleOpts...),
		NewCaptureStep(session, settings.Timeout, bp.logger),
	)
	return p
}

// ProcessBatch purges outDir and captures urls into it in order.
//
// The browser session is opened once and closed on every return path.
// The returned error is non-nil only when the session could not be opened
// or ctx was cancelled; per-page failures are in the result.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, urls []string, outDir string) (*BatchResult, error) {
	startTime := time.Now()
	result := &BatchResult{Pages: make([]*model.PageCapture, 0, len(urls))}

	if err := imageio.EnsureDirs(outDir); err != nil {
		return result, err
	}
	bp.purge(outDir)

	bp.logger.Info("starting browser session", "pages", len(urls))
	session, err := bp.sessionFactory(ctx)
	if err != nil {
		return result, err
	}
	defer func() {
		if err := session.Close(); err != nil {
			bp.logger.Warn("failed to close browser session", "error", err)
		}
	}()

	for i, url := range urls {
		select {
		case <-ctx.Done():
			result.Elapsed = time.Since(startTime)
			return result, ctx.Err()
		default:
		}

		page := model.NewPageCapture(url, filepath.Join(outDir, bp.keyFunc(url)))
		fmt.Fprintf(bp.progress, "[INFO] Loading (%d/%d): %s\n", i+1, len(urls), url)

		pageErr := bp.PagePipeline(session, bp.settings(url)).Execute(ctx, page)

		for _, warning := range page.Warnings {
			fmt.Fprintf(bp.progress, "[WARN] %s: %s\n", url, warning)
		}
		switch {
		case page.Saved:
			result.Saved++
			fmt.Fprintf(bp.progress, "[OK] Saved: %s (%dx%d, %s)\n",
				page.OutputPath, page.Width, page.Height, humanize.Bytes(uint64(page.Bytes)))
		case pageErr != nil:
			result.Failed++
			fmt.Fprintf(bp.progress, "[ERROR] Failed to capture %s: %v\n", url, pageErr)
		default:
			result.Failed++
			fmt.Fprintf(bp.progress, "[ERROR] Failed to capture %s\n", url)
		}

		result.Pages = append(result.Pages, page)
	}

	result.Elapsed = time.Since(startTime)
	bp.logger.Info("batch complete",
		"saved", result.Saved,
		"failed", result.Failed,
		"elapsed", result.Elapsed,
	)
	return result, nil
}

// purge removes stale PNGs so the directory reflects only this batch.
func (bp *BatchProcessor) purge(dir string) {
	purged, err := imageio.PurgeImages(dir)
	if err != nil {
		bp.logger.Warn("failed to purge output directory", "dir", dir, "error", err)
		return
	}
	for path, err := range purged.Failed {
		fmt.Fprintf(bp.progress, "[WARN] Could not delete %s: %v\n", path, err)
	}
	if len(purged.Removed) > 0 {
		bp.logger.Debug("purged stale images", "dir", dir, "count", len(purged.Removed))
	}
}
