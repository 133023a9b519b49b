package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/steveyegge/lintrun/internal/registry"
	"github.com/steveyegge/lintrun/internal/types"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the registered analyzers",
	Long: `List every registered analyzer with its languages and the config files
it looks for. With --check, also verify that each tool is installed and new
enough.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		language, _ := cmd.Flags().GetString("language")
		check, _ := cmd.Flags().GetBool("check")

		descs := reg.List(language)
		if len(descs) == 0 {
			fmt.Printf("No tools support language %q\n", language)
			return nil
		}

		var statuses []registry.ToolStatus
		if check {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			statuses = probeAll(ctx, descs)
		}

		missing := printTools(os.Stdout, descs, statuses)
		if missing > 0 {
			return &exitError{code: 1, err: fmt.Errorf("%d tool(s) unavailable", missing)}
		}
		return nil
	},
}

// probeAll probes every tool concurrently; results keep the order of descs.
func probeAll(ctx context.Context, descs []*types.ToolDescriptor) []registry.ToolStatus {
	statuses := make([]registry.ToolStatus, len(descs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, desc := range descs {
		i, desc := i, desc
		g.Go(func() error {
			statuses[i] = registry.ProbeVersion(ctx, desc)
			return nil
		})
	}
	_ = g.Wait()
	return statuses
}

// printTools writes the tool table and returns the number of unavailable
// tools. statuses is nil when availability was not checked.
func printTools(w io.Writer, descs []*types.ToolDescriptor, statuses []registry.ToolStatus) int {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Fprintf(w, "%s\n\n", cyan(fmt.Sprintf("=== %d tool(s) ===", len(descs))))
	missing := 0
	for i, d := range descs {
		line := fmt.Sprintf("  %-10s %-8s %s", d.ID, d.OutputFormat, strings.Join(d.Languages, ", "))
		if statuses != nil {
			st := statuses[i]
			if st.Available {
				v := st.Version
				if v == "" {
					v = "installed"
				}
				line = fmt.Sprintf("%s %s %s", green("✓"), line, green(v))
			} else {
				missing++
				line = fmt.Sprintf("%s %s %s", red("✗"), line, red(st.Err))
			}
		}
		fmt.Fprintln(w, line)
		if len(d.ConfigFilenames) > 0 {
			fmt.Fprintf(w, "    %s\n", gray("config: "+strings.Join(d.ConfigFilenames, ", ")))
		}
	}
	return missing
}

func init() {
	toolsCmd.Flags().StringP("language", "l", "", "Only list tools supporting this language")
	toolsCmd.Flags().Bool("check", false, "Check that each tool is installed and satisfies its minimum version")

	rootCmd.AddCommand(toolsCmd)
}
