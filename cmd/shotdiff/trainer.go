package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nao1215/shotdiff/internal/model"
	"github.com/nao1215/shotdiff/internal/runner"
)

// NewTrainerCmd creates the trainer command.
func NewTrainerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trainer",
		Short: "Record the baseline captures",
		Long: `Trainer replaces the baseline set: every PNG in the trainer directory is
deleted and each page of the URL list is captured into it.

Run it once before the first 'shotdiff run' and again whenever the current
look of the pages becomes the new reference.

Examples:
  shotdiff trainer
  shotdiff trainer --urls ./urls.txt --trainer ./baseline --headful`,
		Args: cobra.NoArgs,
		RunE: runTrainerCmd,
	}

	addPathFlags(cmd, "trainer")
	addCaptureFlags(cmd)

	return cmd
}

// runTrainerCmd executes the trainer command.
func runTrainerCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	// Baseline refreshes are not part of the run history.
	cfg.DBDir = ""

	logger := setupLogger(cfg.Verbose)
	ctx, cancel := signalContext(logger)
	defer cancel()

	r, closeDB, err := newRunner(cfg, logger)
	if err != nil {
		return err
	}
	defer closeDB()

	res, err := r.Trainer(ctx, runner.TrainerParamsFromConfig(cfg))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if res.Details.Stdout != "" {
		fmt.Fprintln(out, res.Details.Stdout)
	}
	if !res.OK {
		if res.Details.Stderr != "" {
			fmt.Fprintln(cmd.ErrOrStderr(), res.Details.Stderr)
		}
		return fmt.Errorf("capture worker exited with status %d: %w",
			res.Details.ReturnCode, errTrainerFailed(res))
	}
	fmt.Fprintf(out, "Baseline saved to %s\n", res.TrainerDir)
	return nil
}

// errTrainerFailed describes a failed baseline refresh.
func errTrainerFailed(res *model.TrainerResult) error {
	if res.Error != "" {
		return errors.New(res.Error)
	}
	return errors.New("baseline refresh failed")
}
