package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/nao1215/shotdiff/internal/config"
	"github.com/nao1215/shotdiff/internal/database"
	"github.com/nao1215/shotdiff/internal/model"
	"github.com/nao1215/shotdiff/internal/report"
)

// defaultHistoryLimit is the number of rows shown by default.
const defaultHistoryLimit = 20

// NewHistoryCmd creates the history command.
// Its subcommands read the run history database.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect earlier runs",
		Long: `History reads the run history database written by 'shotdiff run' and
'shotdiff serve'.

Examples:
  # List the most recent runs
  shotdiff history list

  # Show one run; a unique prefix of the run ID is enough
  shotdiff history show 3f2a

  # Follow the similarity of one page across runs
  shotdiff history url https://example.com/pricing

  # Keep only the 50 most recent runs
  shotdiff history prune --keep 50`,
		Args: cobra.NoArgs,
	}

	cmd.AddCommand(newHistoryListCmd())
	cmd.AddCommand(newHistoryShowCmd())
	cmd.AddCommand(newHistoryURLCmd())
	cmd.AddCommand(newHistoryPruneCmd())

	return cmd
}

func newHistoryListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, err := cmd.Flags().GetInt("limit")
			if err != nil {
				return err
			}
			return withHistoryDB(cmd, func(ctx context.Context, db *database.HistoryDB) error {
				runs, err := db.ListRuns(ctx, limit)
				if err != nil {
					return err
				}
				return printRuns(cmd.OutOrStdout(), runs)
			})
		},
	}
	cmd.Flags().IntP("limit", "n", defaultHistoryLimit, "Maximum number of runs (0 for all)")
	return cmd
}

func newHistoryShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the report of one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.NewConfig()
			var err error
			if cfg.JSONReport, err = cmd.Flags().GetBool("json"); err != nil {
				return err
			}
			if cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown"); err != nil {
				return err
			}
			if cfg.JSONReport && cfg.MarkdownReport {
				return config.ErrConflictingReportFormats
			}
			cfg.Verbose = getVerboseFlag(cmd)

			return withHistoryDB(cmd, func(ctx context.Context, db *database.HistoryDB) error {
				rep, err := db.GetRun(ctx, args[0])
				if err != nil {
					return err
				}
				return outputReport(cmd.OutOrStdout(), cfg, rep)
			})
		},
	}
	cmd.Flags().BoolP("json", "j", false, "Output JSON report")
	cmd.Flags().BoolP("markdown", "m", false, "Output Markdown report")
	return cmd
}

func newHistoryURLCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "url <url>",
		Short: "Show the verdicts of one page across runs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, err := cmd.Flags().GetInt("limit")
			if err != nil {
				return err
			}
			url, err := model.NormalizeURL(args[0])
			if err != nil {
				return err
			}
			return withHistoryDB(cmd, func(ctx context.Context, db *database.HistoryDB) error {
				entries, err := db.URLHistory(ctx, url, limit)
				if err != nil {
					return err
				}
				if len(entries) == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "No history for %s\n", url)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "History of %s\n\n", url)
				return printURLHistory(cmd.OutOrStdout(), entries)
			})
		},
	}
	cmd.Flags().IntP("limit", "n", defaultHistoryLimit, "Maximum number of runs (0 for all)")
	return cmd
}

func newHistoryPruneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete all but the most recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			keep, err := cmd.Flags().GetInt("keep")
			if err != nil {
				return err
			}
			if keep < 0 {
				return errors.New("--keep must not be negative")
			}
			return withHistoryDB(cmd, func(ctx context.Context, db *database.HistoryDB) error {
				removed, err := db.PruneRuns(ctx, keep)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s run(s)\n", humanize.Comma(removed))
				return nil
			})
		},
	}
	cmd.Flags().Int("keep", 100, "Number of most recent runs to keep")
	return cmd
}

// withHistoryDB opens the history database for the duration of fn.
func withHistoryDB(cmd *cobra.Command, fn func(context.Context, *database.HistoryDB) error) error {
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil || dbDir == "" {
		dbDir = config.XDGDataDir()
	}

	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	return fn(cmd.Context(), db)
}

// printRuns renders runs as a table.
func printRuns(w io.Writer, runs []database.RunSummary) error {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded yet")
		return nil
	}

	table := tablewriter.NewWriter(w)
	table.Header("Run", "Created", "OK", "Fail", "No baseline", "Threshold", "Result")
	for _, r := range runs {
		result := "passed"
		if !r.ExecutionOK || r.Totals.HasFailures() {
			result = "failed"
		}
		if err := table.Append([]string{
			shortID(r.RunID),
			humanize.Time(r.CreatedAt),
			strconv.Itoa(r.Totals.OK),
			strconv.Itoa(r.Totals.Fail),
			strconv.Itoa(r.Totals.NoBaseline),
			strconv.FormatFloat(r.SSIMThreshold, 'f', -1, 64),
			result,
		}); err != nil {
			return err
		}
	}
	return table.Render()
}

// printURLHistory renders the verdicts of one URL as a table.
func printURLHistory(w io.Writer, entries []database.URLHistoryEntry) error {
	table := tablewriter.NewWriter(w)
	table.Header("Run", "Created", "Status", "SSIM", "MSE", "Reason")
	for _, e := range entries {
		ssim, mse := "-", "-"
		if e.Metrics != nil {
			ssim = strconv.FormatFloat(e.Metrics.SSIM, 'f', 4, 64)
			mse = strconv.FormatFloat(e.Metrics.MSE, 'f', 2, 64)
		}
		if err := table.Append([]string{
			shortID(e.RunID),
			humanize.Time(e.CreatedAt),
			report.StatusLabel(e.Status),
			ssim,
			mse,
			e.Reason,
		}); err != nil {
			return err
		}
	}
	return table.Render()
}

// shortID abbreviates a run ID for tables. Any unique prefix is accepted by
// 'history show'.
func shortID(id string) string {
	const n = 8
	if len(id) > n {
		return id[:n]
	}
	return id
}
