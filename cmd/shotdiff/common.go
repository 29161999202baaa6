package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/shotdiff/internal/config"
	"github.com/nao1215/shotdiff/internal/database"
	"github.com/nao1215/shotdiff/internal/log"
	"github.com/nao1215/shotdiff/internal/runner"
	"github.com/nao1215/shotdiff/internal/worker"
)

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// setupLogger creates a structured logger writing to stderr.
func setupLogger(verbose bool) *slog.Logger {
	return log.NewSecureLogger(os.Stderr, verbose)
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

// addPathFlags registers the URL list and directory flags.
func addPathFlags(cmd *cobra.Command, dirs ...string) {
	cmd.Flags().StringP("urls", "u", config.DefaultURLsFile, "URL list file, one URL per line")
	for _, d := range dirs {
		switch d {
		case "out":
			cmd.Flags().StringP("out", "o", config.DefaultOutDir, "Directory for the current captures")
		case "trainer":
			cmd.Flags().String("trainer", config.DefaultTrainerDir, "Directory of the baseline captures")
		case "diff":
			cmd.Flags().String("diff", config.DefaultDiffDir, "Directory for difference images")
		case "reports":
			cmd.Flags().String("reports", config.DefaultReportsDir, "Directory for JSON run reports")
		}
	}
}

// addCaptureFlags registers the browser timing flags.
func addCaptureFlags(cmd *cobra.Command) {
	cmd.Flags().IntP("timeout", "t", int(config.DefaultTimeout/time.Second),
		"Per-page timeout in seconds for navigation and load")
	cmd.Flags().Float64P("wait", "w", config.DefaultWait.Seconds(),
		"Extra settle time in seconds after a page has loaded")
	cmd.Flags().Bool("headful", false, "Show the browser window")
	cmd.Flags().Bool("unique-keys", false,
		"Append a URL digest to file names so similar URLs never share a capture")
}

// buildConfig creates a Config from the config file and the flags of cmd.
// Flags override the file only when they were set explicitly.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.Verbose = getVerboseFlag(cmd)

	var err error
	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	if err := config.Load(cfg); err != nil {
		if cfg.ConfigFilePath != "" {
			return nil, fmt.Errorf("failed to load config file %s: %w", cfg.ConfigFilePath, err)
		}
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}
	if cfg.ConfigFilePath != "" {
		// Passed on to the capture worker.
		if abs, err := filepath.Abs(cfg.ConfigFilePath); err == nil {
			cfg.ConfigFilePath = abs
		}
	}

	flags := cmd.Flags()
	stringFlags := map[string]*string{
		"data-dir": &cfg.DataDir,
		"db-dir":   &cfg.DBDir,
		"urls":     &cfg.URLsFile,
		"out":      &cfg.OutDir,
		"trainer":  &cfg.TrainerDir,
		"diff":     &cfg.DiffDir,
		"reports":  &cfg.ReportsDir,
		"listen":   &cfg.Listen,
		"output":   &cfg.ReportFile,
	}
	for name, dst := range stringFlags {
		if flags.Lookup(name) == nil || !flags.Changed(name) {
			continue
		}
		if *dst, err = flags.GetString(name); err != nil {
			return nil, err
		}
	}

	if flags.Lookup("timeout") != nil && flags.Changed("timeout") {
		seconds, err := flags.GetInt("timeout")
		if err != nil {
			return nil, err
		}
		cfg.Timeout = time.Duration(seconds) * time.Second
	}
	if flags.Lookup("wait") != nil && flags.Changed("wait") {
		seconds, err := flags.GetFloat64("wait")
		if err != nil {
			return nil, err
		}
		cfg.Wait = time.Duration(seconds * float64(time.Second))
	}
	if flags.Lookup("threshold") != nil && flags.Changed("threshold") {
		if cfg.SSIMThreshold, err = flags.GetFloat64("threshold"); err != nil {
			return nil, err
		}
	}

	boolFlags := map[string]*bool{
		"headful":     &cfg.Headful,
		"unique-keys": &cfg.UniqueKeys,
		"json":        &cfg.JSONReport,
		"markdown":    &cfg.MarkdownReport,
	}
	for name, dst := range boolFlags {
		if flags.Lookup(name) == nil || !flags.Changed(name) {
			continue
		}
		if *dst, err = flags.GetBool(name); err != nil {
			return nil, err
		}
	}

	if flags.Lookup("no-history") != nil {
		noHistory, err := flags.GetBool("no-history")
		if err != nil {
			return nil, err
		}
		if noHistory {
			cfg.DBDir = ""
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return cfg, nil
}

// newRunner builds a runner that captures through a child process of this
// binary. The returned close function releases the history database.
func newRunner(cfg *config.Config, logger *slog.Logger) (*runner.Runner, func(), error) {
	opts := []runner.Option{runner.WithLogger(logger)}
	closeFn := func() {}

	if cfg.DBDir != "" {
		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
		logger.Info("database opened", "path", db.Path())
		opts = append(opts, runner.WithHistory(db))
		closeFn = func() {
			if err := db.Close(); err != nil {
				logger.Warn("failed to close database", "error", err)
			}
		}
	}

	exec := worker.NewProcessExecutor(worker.WithLogger(logger))
	return runner.New(exec, opts...), closeFn, nil
}
