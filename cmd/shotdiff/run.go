package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/shotdiff/internal/config"
	"github.com/nao1215/shotdiff/internal/model"
	"github.com/nao1215/shotdiff/internal/report"
	"github.com/nao1215/shotdiff/internal/runner"
)

// ErrRegression is returned by the run command when a page failed.
var ErrRegression = errors.New("visual regression detected")

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Capture the URL list and compare it with the baseline",
		Long: `Run captures every page of the URL list into the screenshots directory and
compares each capture with its baseline in the trainer directory.

Every page gets one of these verdicts:
- ok           similarity is at or above the threshold
- fail         similarity is below the threshold, or the page could not be
               captured or compared
- no_baseline  the page has no baseline yet (run 'shotdiff trainer')

A difference image is written for every failing page, and the full report
is saved as JSON in the reports directory. The command exits with status 1
when any page fails.

Examples:
  # Run with the default data directory
  shotdiff run

  # Use a stricter threshold and a custom URL list
  shotdiff run --threshold 0.98 --urls ./urls.txt

  # Write a Markdown summary for a pull request comment
  shotdiff run --markdown -O summary.md`,
		Args: cobra.NoArgs,
		RunE: runRunCmd,
	}

	addPathFlags(cmd, "out", "trainer", "diff", "reports")
	addCaptureFlags(cmd)
	cmd.Flags().Float64("threshold", config.DefaultSSIMThreshold,
		"SSIM at or above which a page passes (-1 to 1)")
	cmd.Flags().Bool("no-history", false, "Do not record the run in the history database")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "O", "",
		"Write report to specified file path (creates directories if needed)")

	return cmd
}

// runRunCmd executes the run command.
func runRunCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Verbose)
	ctx, cancel := signalContext(logger)
	defer cancel()

	r, closeDB, err := newRunner(cfg, logger)
	if err != nil {
		return err
	}
	defer closeDB()

	fmt.Fprintf(cmd.ErrOrStderr(), "Capturing %s...\n", cfg.ResolvePath(cfg.URLsFile))
	rep, err := r.Run(ctx, runner.ParamsFromConfig(cfg))
	if err != nil {
		return err
	}

	if err := outputReport(cmd.OutOrStdout(), cfg, rep); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Report saved to %s\n", rep.ReportPath)

	if !rep.Passed() {
		return ErrRegression
	}
	return nil
}

// outputReport writes rep in the requested format to the report file, or
// to stdout when none is set.
func outputReport(stdout io.Writer, cfg *config.Config, rep *model.RunReport) error {
	output := stdout
	color := true
	if cfg.ReportFile != "" {
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
		color = false
	}

	var w report.Writer
	switch {
	case cfg.JSONReport:
		w = report.NewJSONWriter(output, report.WithPrettyPrint())
	case cfg.MarkdownReport:
		w = report.NewMarkdownWriter(output)
	default:
		opts := []report.SimpleWriterOption{report.WithVerbose(cfg.Verbose)}
		if !color {
			opts = append(opts, report.WithColor(false))
		}
		w = report.NewSimpleWriter(output, opts...)
	}
	_, err := w.Write(rep)
	return err
}
