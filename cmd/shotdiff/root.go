// Package main provides the entry point for the shotdiff CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nao1215/shotdiff/internal/capture"
)

// NewRootCmd creates the root command for shotdiff.
func NewRootCmd() *cobra.Command {
	return newRootCmd(nil)
}

// newRootCmd creates the root command whose capture worker opens browser
// sessions with factory. A nil factory launches Chrome.
func newRootCmd(factory capture.SessionFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shotdiff",
		Short: "Visual regression testing with full-page screenshots",
		Long: `shotdiff captures full-page screenshots of the pages in a URL list and
compares them with a baseline ("trainer") set using SSIM.

Record a baseline once with 'shotdiff trainer', then run 'shotdiff run'
after every change. Pages whose similarity drops below the threshold fail
and get a difference image.

Relative paths are resolved against the data directory, which defaults to
the XDG data directory (~/.local/share/shotdiff/data on Linux).`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .shotdiff in current or home directory)")
	cmd.PersistentFlags().StringP("data-dir", "D", "",
		"Base directory for relative paths (default: XDG data directory)")
	cmd.PersistentFlags().String("db-dir", "",
		"Directory of the run history database (default: XDG data directory)")

	// Add subcommands
	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewTrainerCmd())
	cmd.AddCommand(newCaptureCmd(factory))
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
