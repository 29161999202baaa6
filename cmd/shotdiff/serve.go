package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nao1215/shotdiff/internal/config"
	"github.com/nao1215/shotdiff/internal/server"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve run and trainer over HTTP",
		Long: `Serve starts an HTTP server with three endpoints:

  GET /health    returns {"status":"ok"}
  GET /trainer   refreshes the baseline and returns the capture outcome
  GET /run       runs a comparison and returns the report with report_path

Query parameters override the configured defaults: urls_file, out_dir,
trainer_dir, diff_dir, reports_dir, timeout (seconds), wait (seconds),
headful and ssim_threshold. Relative paths are resolved against the data
directory.

Only one run may use a screenshots or trainer directory at a time; a
concurrent request for the same directories is answered with 409.

Examples:
  shotdiff serve
  shotdiff serve --listen 0.0.0.0:9000
  curl 'http://127.0.0.1:8080/run?ssim_threshold=0.95'`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}

	cmd.Flags().StringP("listen", "l", config.DefaultListenAddress, "Listen address")
	cmd.Flags().Bool("no-history", false, "Do not record runs in the history database")

	return cmd
}

// runServeCmd executes the serve command.
func runServeCmd(cmd *cobra.Command, _ []string) error {
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

	fmt.Fprintf(cmd.ErrOrStderr(), "Listening on http://%s (data dir %s)\n", cfg.Listen, cfg.DataDir)
	srv := server.New(r, cfg, server.WithLogger(logger))
	return srv.ListenAndServe(ctx, cfg.Listen)
}
