package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/steveyegge/lintrun/internal/analysis"
	"github.com/steveyegge/lintrun/internal/types"
)

// SummaryOptions controls the terminal summary.
type SummaryOptions struct {
	Color bool

	// MaxFindings limits the listed findings; 0 lists all, negative lists none
	MaxFindings int
}

type palette struct {
	header, ok, warn, bad, dim *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		header: color.New(color.FgCyan, color.Bold),
		ok:     color.New(color.FgGreen),
		warn:   color.New(color.FgYellow),
		bad:    color.New(color.FgRed, color.Bold),
		dim:    color.New(color.FgHiBlack),
	}
	for _, c := range []*color.Color{p.header, p.ok, p.warn, p.bad, p.dim} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p palette) severity(s types.Severity) *color.Color {
	switch s {
	case types.SeverityError:
		return p.bad
	case types.SeverityWarning:
		return p.warn
	default:
		return p.dim
	}
}

func (p palette) status(s types.RunStatus) (string, *color.Color) {
	switch s {
	case types.StatusSucceeded:
		return "✓", p.ok
	case types.StatusPartial:
		return "⚠", p.warn
	case types.StatusTimedOut:
		return "⏱", p.bad
	case types.StatusCancelled:
		return "-", p.warn
	default:
		return "✗", p.bad
	}
}

// WriteSummary writes a human-readable summary of the report: the findings,
// one line per tool invocation, and the run status.
func WriteSummary(w io.Writer, r *analysis.Report, opts SummaryOptions) error {
	p := newPalette(opts.Color)
	var b strings.Builder

	listed := r.Findings
	if opts.MaxFindings < 0 {
		listed = nil
	} else if opts.MaxFindings > 0 && len(listed) > opts.MaxFindings {
		listed = listed[:opts.MaxFindings]
	}
	for _, f := range listed {
		fmt.Fprintf(&b, "%s  %s  %s  %s\n",
			f.Location(),
			p.severity(f.Severity).Sprintf("%-7s", f.Severity),
			p.dim.Sprintf("%s/%s", f.ToolID, f.RuleID),
			f.Message)
	}
	if more := len(r.Findings) - len(listed); more > 0 && opts.MaxFindings > 0 {
		fmt.Fprintf(&b, "%s\n", p.dim.Sprintf("... and %d more", more))
	}
	if len(listed) > 0 {
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "%s\n", p.header.Sprint("Tools:"))
	for _, o := range r.Outcomes {
		icon, c := p.status(o.Status)
		line := fmt.Sprintf("  %s %-10s %s", c.Sprint(icon), o.ToolID, c.Sprintf("%-12s", o.Status))
		if o.Status == types.StatusSucceeded || o.Status == types.StatusPartial {
			line += fmt.Sprintf(" %d finding(s) in %s", o.Findings, o.Duration.Round(time.Millisecond))
		}
		if len(o.Targets) > 0 {
			line += p.dim.Sprintf(" [%s]", strings.Join(o.Targets, " "))
		}
		b.WriteString(line + "\n")
		if o.Error != "" {
			fmt.Fprintf(&b, "      %s\n", o.Error)
		}
		for _, d := range o.Diagnostics {
			fmt.Fprintf(&b, "      %s\n", d)
		}
	}

	_, c := p.status(r.Status)
	counts := r.CountBySeverity()
	var parts []string
	for _, s := range []types.Severity{types.SeverityError, types.SeverityWarning, types.SeverityInfo, types.SeverityHint} {
		if counts[s] > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", counts[s], s))
		}
	}
	breakdown := ""
	if len(parts) > 0 {
		breakdown = " (" + strings.Join(parts, ", ") + ")"
	}
	fmt.Fprintf(&b, "\nRun %s %s: %d finding(s)%s", r.RunID, c.Sprint(r.Status), len(r.Findings), breakdown)
	if suppressed := r.Stats.ExactDuplicates + r.Stats.Equivalent; suppressed > 0 {
		fmt.Fprintf(&b, ", %d duplicate(s) suppressed", suppressed)
	}
	b.WriteString("\n")

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return nil
}
