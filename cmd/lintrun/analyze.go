package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/lintrun/internal/aggregate"
	"github.com/steveyegge/lintrun/internal/analysis"
	"github.com/steveyegge/lintrun/internal/config"
	"github.com/steveyegge/lintrun/internal/events"
	"github.com/steveyegge/lintrun/internal/report"
	"github.com/steveyegge/lintrun/internal/storage"
	"github.com/steveyegge/lintrun/internal/storage/sqlite"
	"github.com/steveyegge/lintrun/internal/types"
	"github.com/steveyegge/lintrun/internal/watch"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [targets...]",
	Short: "Analyze files or directories with every applicable tool",
	Long: `Run the selected analyzers over the targets (default: the current
directory) and print the merged findings.

Each tool runs with the configuration file nearest to each target. A tool
that is missing, times out, or fails to parse marks the run partial; the
findings of the other tools are still reported.

Exit status: 0 when no finding reaches --fail-on, 1 when one does, 2 when
the run itself failed, 130 when interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")
		failOn, _ := cmd.Flags().GetString("fail-on")
		maxFindings, _ := cmd.Flags().GetInt("max-findings")
		watchMode, _ := cmd.Flags().GetBool("watch")
		noHistory, _ := cmd.Flags().GetBool("no-history")
		runRoot, _ := cmd.Flags().GetString("root")

		if err := validateFormat(format); err != nil {
			return &exitError{code: 2, err: err}
		}
		threshold, err := parseFailOn(failOn)
		if err != nil {
			return &exitError{code: 2, err: err}
		}

		targets, err := absTargets(args)
		if err != nil {
			return &exitError{code: 2, err: err}
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var store storage.Storage
		if !noHistory {
			store, err = storage.NewStorage(ctx, storage.Config{Path: settings.HistoryPath}, projectRoot)
			if err != nil {
				log.WithError(err).Warn("run history disabled")
				store = nil
			} else {
				defer store.Close()
			}
		}

		sink := events.Multi{events.NewLogSink(log)}
		if store != nil {
			sink = append(sink, store.EventSink(ctx, log))
		}

		orch, err := analysis.New(analysis.Config{
			Registry:    reg,
			Aggregation: aggregate.Config{Equivalences: settings.Equivalences},
			LaunchRate:  settings.LaunchRate,
			RootMarkers: settings.RootMarkers,
			Logger:      log,
			Events:      sink,
		})
		if err != nil {
			return &exitError{code: 2, err: err}
		}

		// Without --root the run detects its root from the targets
		pinnedRoot := ""
		if runRoot != "" {
			pinnedRoot = projectRoot
		}
		run := settings.AnalysisRun(pinnedRoot, targets)

		a := &analyzer{
			orch:        orch,
			store:       store,
			format:      format,
			output:      output,
			maxFindings: maxFindings,
			threshold:   threshold,
		}

		code, err := a.runOnce(ctx, run)
		if !watchMode {
			if err != nil || code != 0 {
				return &exitError{code: code, err: err}
			}
			return nil
		}
		if err != nil {
			log.WithError(err).Error("analysis failed")
		}

		w, err := watch.New(watch.Config{
			Debounce: settings.Debounce,
			Exclude:  watchExclusions(output, settings.HistoryPath, store != nil),
			Logger:   log,
			Events:   sink,
		})
		if err != nil {
			return &exitError{code: 2, err: err}
		}
		defer w.Close()
		for _, t := range targets {
			if err := w.Add(t); err != nil {
				return &exitError{code: 2, err: err}
			}
		}
		fmt.Fprintf(os.Stderr, "%s\n", color.New(color.FgCyan).Sprint("Watching for changes. Press Ctrl+C to stop."))

		if err := w.Run(ctx, func(ctx context.Context, changes []watch.Change) error {
			_, err := a.runOnce(ctx, run)
			return err
		}); err != nil {
			return &exitError{code: 2, err: err}
		}
		return nil
	},
}

// analyzer runs analyses and publishes their reports.
type analyzer struct {
	orch        *analysis.Orchestrator
	store       storage.Storage
	format      string
	output      string
	maxFindings int
	threshold   types.Severity
}

// runOnce analyzes, writes the report and records it in the history. It
// returns the exit status for the run.
func (a *analyzer) runOnce(ctx context.Context, run types.AnalysisRun) (int, error) {
	run.ID = ""
	rep, runErr := a.orch.Run(ctx, run)
	if rep == nil {
		return 2, runErr
	}

	if err := a.write(rep); err != nil {
		return 2, err
	}

	if a.store != nil {
		// A run interrupted by Ctrl+C is still recorded
		saveCtx := context.WithoutCancel(ctx)
		if err := a.store.SaveReport(saveCtx, rep); err != nil {
			log.WithError(err).Warn("failed to record run history")
		} else {
			a.prune(saveCtx)
		}
	}

	switch {
	case runErr != nil:
		return 2, runErr
	case rep.Status == types.StatusCancelled:
		return 130, nil
	case reaches(rep.Findings, a.threshold):
		return 1, nil
	}
	return 0, nil
}

func (a *analyzer) write(rep *analysis.Report) error {
	var out io.Writer = os.Stdout
	useColor := !color.NoColor
	if a.output != "" {
		f, err := os.Create(a.output)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", a.output, err)
		}
		defer f.Close()
		out = f
		useColor = false
	}
	return writeReport(out, rep, a.format, report.SummaryOptions{Color: useColor, MaxFindings: a.maxFindings})
}

func (a *analyzer) prune(ctx context.Context) {
	retention, err := config.HistoryRetentionConfigFromEnv()
	if err != nil {
		log.WithError(err).Warn("invalid history retention settings")
		return
	}
	if !retention.Enabled {
		return
	}
	n, err := a.store.Prune(ctx, sqlite.PruneOptions{
		MaxAge:   retention.MaxAge(),
		KeepRuns: retention.KeepRuns,
		MaxRuns:  retention.MaxRuns,
	})
	if err != nil {
		log.WithError(err).Warn("failed to prune run history")
		return
	}
	if n > 0 {
		log.WithField("runs", n).Debug("pruned run history")
	}
}

// writeReport encodes rep in one of the output formats.
func writeReport(w io.Writer, rep *analysis.Report, format string, opts report.SummaryOptions) error {
	switch format {
	case "text":
		return report.WriteSummary(w, rep, opts)
	case "json":
		return report.WriteJSON(w, rep)
	case "findings":
		return report.WriteFindings(w, rep.Findings)
	case "sarif":
		return report.WriteSARIF(w, rep)
	}
	return fmt.Errorf("unknown format %q", format)
}

func validateFormat(format string) error {
	switch format {
	case "text", "json", "findings", "sarif":
		return nil
	}
	return fmt.Errorf("--format must be one of text, json, findings, sarif (got %q)", format)
}

// parseFailOn returns the least severe severity that fails the run; "" for none.
func parseFailOn(s string) (types.Severity, error) {
	if s == "none" {
		return "", nil
	}
	sev, err := types.ParseSeverity(s)
	if err != nil {
		return "", fmt.Errorf("--fail-on: %w", err)
	}
	return sev, nil
}

// reaches reports whether any finding is at least as severe as threshold.
func reaches(findings []types.Finding, threshold types.Severity) bool {
	if threshold == "" {
		return false
	}
	for _, f := range findings {
		if f.Severity.Rank() <= threshold.Rank() {
			return true
		}
	}
	return false
}

// absTargets resolves command-line targets against the working directory.
// watchExclusions lists the files an analysis writes itself, so that writing
// them does not trigger the next run.
func watchExclusions(output, historyPath string, history bool) []string {
	var excl []string
	if output != "" {
		if abs, err := filepath.Abs(output); err == nil {
			excl = append(excl, abs)
		}
	}
	if history {
		if db := storage.ResolvePath(historyPath, projectRoot); db != sqlite.MemoryPath {
			excl = append(excl, db)
		}
	}
	return excl
}

func absTargets(args []string) ([]string, error) {
	if len(args) == 0 {
		args = []string{"."}
	}
	targets := make([]string, 0, len(args))
	for _, arg := range args {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return nil, fmt.Errorf("resolving target %s: %w", arg, err)
		}
		if _, err := os.Stat(abs); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("target %s does not exist", arg)
			}
			return nil, err
		}
		targets = append(targets, abs)
	}
	return targets, nil
}

func init() {
	analyzeCmd.Flags().StringP("format", "f", "text", "Output format: text, json, findings, sarif")
	analyzeCmd.Flags().StringP("output", "o", "", "Write the report to a file instead of stdout")
	analyzeCmd.Flags().String("fail-on", "error", "Exit 1 when a finding is at least this severe (error, warning, info, hint, none)")
	analyzeCmd.Flags().Int("max-findings", 0, "Limit findings listed in text output (0 = all)")
	analyzeCmd.Flags().StringSliceP("tools", "t", nil, "Tools to run (default: every tool supporting --language, or the languages found in the targets)")
	analyzeCmd.Flags().StringP("language", "l", "", "Only run tools supporting this language")
	analyzeCmd.Flags().String("timeout", "", "Default per-tool timeout, e.g. 90s or 5m")
	analyzeCmd.Flags().IntP("concurrency", "j", 0, "Maximum tools running at once (default: number of CPUs)")
	analyzeCmd.Flags().Float64("launch-rate", 0, "Maximum tool launches per second (0 = unlimited)")
	analyzeCmd.Flags().String("history", "", "Run history database (default: .lintrun/history.db)")
	analyzeCmd.Flags().Bool("no-history", false, "Do not record this run in the history")
	analyzeCmd.Flags().BoolP("watch", "w", false, "Re-run when files under the targets change")
	analyzeCmd.Flags().String("debounce", "", "Quiet period before a watch re-run, e.g. 500ms")

	rootCmd.AddCommand(analyzeCmd)
}
