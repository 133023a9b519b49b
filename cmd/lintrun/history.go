package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/lintrun/internal/config"
	"github.com/steveyegge/lintrun/internal/report"
	"github.com/steveyegge/lintrun/internal/storage"
	"github.com/steveyegge/lintrun/internal/storage/sqlite"
	"github.com/steveyegge/lintrun/internal/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded analysis runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		status, _ := cmd.Flags().GetString("status")
		all, _ := cmd.Flags().GetBool("all")

		store, err := openHistory(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		filter := sqlite.RunFilter{Status: types.RunStatus(status), Limit: limit}
		if status != "" && !filter.Status.IsValid() {
			return &exitError{code: 2, err: fmt.Errorf("invalid --status %q", status)}
		}
		if !all {
			filter.ProjectRoot = projectRoot
		}
		runs, err := store.ListRuns(cmd.Context(), filter)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No recorded runs")
			return nil
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()
		fmt.Printf("%s\n\n", cyan("=== Run History ==="))
		for _, r := range runs {
			fmt.Printf("  %s  %s  %-10s %4d finding(s)  %s\n",
				r.StartedAt.Local().Format("2006-01-02 15:04:05"),
				r.ID,
				statusColor(r.Status)(string(r.Status)),
				r.Findings,
				gray(r.Duration().Round(time.Millisecond)))
		}
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the report of a recorded run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		showEvents, _ := cmd.Flags().GetBool("events")
		if err := validateFormat(format); err != nil {
			return &exitError{code: 2, err: err}
		}

		store, err := openHistory(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		rep, err := store.LoadReport(cmd.Context(), args[0])
		if errors.Is(err, sqlite.ErrRunNotFound) {
			return &exitError{code: 1, err: err}
		}
		if err != nil {
			return err
		}
		if err := writeReport(os.Stdout, rep, format, report.SummaryOptions{Color: !color.NoColor}); err != nil {
			return err
		}

		if showEvents {
			evs, err := store.GetRunEvents(cmd.Context(), rep.RunID)
			if err != nil {
				return err
			}
			fmt.Printf("\n%s\n", color.New(color.FgCyan, color.Bold).Sprint("Events:"))
			for _, e := range evs {
				fmt.Printf("  %s  %-22s %s\n", e.Timestamp.Local().Format("15:04:05.000"), e.Type, e.Message)
			}
		}
		return nil
	},
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old runs from the history",
	Long: `Delete runs older than --max-age, always keeping the --keep most recent
ones, and cap the history at --max-runs. Defaults come from
LINTRUN_HISTORY_* environment variables.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		retention, err := config.HistoryRetentionConfigFromEnv()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("max-age-days") {
			retention.MaxAgeDays, _ = cmd.Flags().GetInt("max-age-days")
		}
		if cmd.Flags().Changed("keep") {
			retention.KeepRuns, _ = cmd.Flags().GetInt("keep")
		}
		if cmd.Flags().Changed("max-runs") {
			retention.MaxRuns, _ = cmd.Flags().GetInt("max-runs")
		}
		if err := retention.Validate(); err != nil {
			return &exitError{code: 2, err: err}
		}

		store, err := openHistory(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		n, err := store.Prune(cmd.Context(), sqlite.PruneOptions{
			MaxAge:   retention.MaxAge(),
			KeepRuns: retention.KeepRuns,
			MaxRuns:  retention.MaxRuns,
		})
		if err != nil {
			return err
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Deleted %d run(s)\n", green("✓"), n)
		return nil
	},
}

func openHistory(ctx context.Context) (storage.Storage, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	return storage.NewStorage(ctx, storage.Config{Path: settings.HistoryPath}, projectRoot)
}

func statusColor(s types.RunStatus) func(a ...interface{}) string {
	switch s {
	case types.StatusSucceeded:
		return color.New(color.FgGreen).SprintFunc()
	case types.StatusPartial, types.StatusCancelled:
		return color.New(color.FgYellow).SprintFunc()
	default:
		return color.New(color.FgRed).SprintFunc()
	}
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "Number of recent runs to show")
	historyCmd.Flags().StringP("status", "s", "", "Filter by status (succeeded, partial, failed, cancelled)")
	historyCmd.Flags().Bool("all", false, "Include runs of other projects sharing the database")
	historyCmd.PersistentFlags().String("history", "", "Run history database (default: .lintrun/history.db)")

	historyShowCmd.Flags().StringP("format", "f", "text", "Output format: text, json, findings, sarif")
	historyShowCmd.Flags().Bool("events", false, "Also list the events recorded during the run")

	historyPruneCmd.Flags().Int("max-age-days", 0, "Delete runs older than this many days")
	historyPruneCmd.Flags().Int("keep", 0, "Always keep this many recent runs")
	historyPruneCmd.Flags().Int("max-runs", 0, "Keep at most this many runs (0 = unlimited)")

	historyCmd.AddCommand(historyShowCmd, historyPruneCmd)
	rootCmd.AddCommand(historyCmd)
}
