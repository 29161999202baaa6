package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/shotdiff/internal/capture"
	"github.com/nao1215/shotdiff/internal/model"
	"github.com/nao1215/shotdiff/internal/pipeline"
	"github.com/nao1215/shotdiff/internal/worker"
)

// ErrNoURLs is returned by the capture worker for a URL list without entries.
var ErrNoURLs = errors.New("no URLs to capture")

// NewCaptureCmd creates the capture worker command.
func NewCaptureCmd() *cobra.Command {
	return newCaptureCmd(nil)
}

// newCaptureCmd creates the capture worker command opening browser sessions
// with factory. A nil factory launches Chrome.
func newCaptureCmd(factory capture.SessionFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   worker.CaptureCommand,
		Short: "Capture the URL list into a directory (internal worker)",
		Long: `Capture renders every page of the URL list in one browser session and
writes one full-page PNG per URL into the output directory, which is purged
first. Progress is printed to stdout.

The command exits with status 1 only when the batch could not run at all:
a missing or empty URL list, or a browser that would not start. Pages that
fail individually are reported and skipped.

It is started by 'run' and 'trainer' as a child process.`,
		Args:   cobra.NoArgs,
		Hidden: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCaptureCmd(cmd, factory)
		},
	}

	addPathFlags(cmd, "out")
	addCaptureFlags(cmd)

	return cmd
}

// runCaptureCmd executes the capture worker.
func runCaptureCmd(cmd *cobra.Command, factory capture.SessionFactory) error {
	out := cmd.OutOrStdout()

	cfg, err := buildConfig(cmd)
	if err != nil {
		fmt.Fprintf(out, "[ERROR] %v\n", err)
		return err
	}

	logger := setupLogger(cfg.Verbose)
	ctx, cancel := signalContext(logger)
	defer cancel()

	urlsFile := cfg.ResolvePath(cfg.URLsFile)
	outDir := cfg.ResolvePath(cfg.OutDir)

	urls, err := model.LoadURLList(urlsFile)
	if err != nil {
		fmt.Fprintf(out, "[ERROR] %v\n", err)
		return err
	}
	if len(urls) == 0 {
		fmt.Fprintf(out, "[ERROR] No URLs in %s\n", urlsFile)
		return fmt.Errorf("%w: %s", ErrNoURLs, urlsFile)
	}

	if factory == nil {
		opts := capture.DefaultChromeOptions()
		opts.Headless = !cfg.Headful
		opts.Logger = logger
		factory = capture.NewChromeSessionFactory(opts)
	}

	bp := pipeline.NewBatchProcessor(factory,
		pipeline.WithBatchLogger(logger),
		pipeline.WithKeyFunc(model.KeyFuncFor(cfg.UniqueKeys)),
		pipeline.WithPageSettingsFunc(func(url string) pipeline.PageSettings {
			eff := cfg.Site(url)
			return pipeline.PageSettings{Timeout: eff.Timeout, Wait: eff.Wait}
		}),
		pipeline.WithProgress(out),
	)

	fmt.Fprintf(out, "[INFO] Capturing %d URL(s) into %s\n", len(urls), outDir)
	res, err := bp.ProcessBatch(ctx, urls, outDir)
	if err != nil {
		fmt.Fprintf(out, "[ERROR] %v\n", err)
		return err
	}

	fmt.Fprintf(out, "[INFO] Done: %d saved, %d failed in %s\n",
		res.Saved, res.Failed, res.Elapsed.Round(time.Millisecond))
	return nil
}
