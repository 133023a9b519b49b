// Package normalize turns a tool's raw report into canonical findings.
//
// Normalization delegates parsing to the tool's adapter, then makes paths
// relative to the project root with forward slashes, maps native
// severities through the tool's declared table, stamps the tool ID, and
// drops findings outside the analysis targets. Every dropped finding is
// accounted for in a returned diagnostic.
package normalize

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/steveyegge/lintrun/internal/registry"
	"github.com/steveyegge/lintrun/internal/types"
)

// DroppedError reports findings removed during normalization.
type DroppedError struct {
	ToolID  string
	Count   int
	Reason  string
	Example string
}

func (e *DroppedError) Error() string {
	return fmt.Sprintf("%s: dropped %d finding(s) %s (first: %s)", e.ToolID, e.Count, e.Reason, e.Example)
}

const (
	reasonOutsideTargets = "outside the analysis targets"
	reasonInvalid        = "with invalid fields"
)

// Normalizer is bound to one analysis run. It holds no mutable state and is
// safe for concurrent use.
type Normalizer struct {
	registry *registry.Registry
	root     string
	targets  []string
}

// New creates a normalizer for a run over targets below projectRoot.
// Relative targets are taken relative to projectRoot.
func New(reg *registry.Registry, projectRoot string, targets []string) (*Normalizer, error) {
	if reg == nil {
		return nil, fmt.Errorf("registry is required")
	}
	root, err := filepath.Abs(projectRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root: %w", err)
	}
	n := &Normalizer{registry: reg, root: root}
	for _, t := range targets {
		n.targets = append(n.targets, n.absolute(t))
	}
	return n, nil
}

// Normalize parses and canonicalizes the findings of one RunResult. It is
// a pure function of the result: normalizing the same result twice yields
// identical findings. The error list holds at most one ParseError from the
// adapter plus one DroppedError per drop reason.
//
// Results that never ran, and cancelled ones, yield nothing.
func (n *Normalizer) Normalize(result types.RunResult) ([]types.Finding, []error) {
	if !result.Parseable() {
		return nil, nil
	}
	entry, err := n.registry.Lookup(result.ToolID)
	if err != nil {
		return nil, []error{&types.AggregationError{Reason: "result from unregistered tool", Err: err}}
	}

	parsed, parseErr := entry.Adapter.ParseOutput(result.Output, result.ExitStatus)
	var diagnostics []error
	if parseErr != nil {
		diagnostics = append(diagnostics, parseErr)
	}

	drops := map[string]*DroppedError{}
	drop := func(reason string, f types.Finding) {
		d, ok := drops[reason]
		if !ok {
			d = &DroppedError{ToolID: entry.Descriptor.ID, Reason: reason, Example: f.Location()}
			drops[reason] = d
		}
		d.Count++
	}

	findings := make([]types.Finding, 0, len(parsed))
	for _, f := range parsed {
		nf, inScope := n.normalizeFinding(entry.Descriptor, f)
		if !inScope {
			drop(reasonOutsideTargets, nf)
			continue
		}
		if err := nf.Validate(); err != nil {
			drop(reasonInvalid, nf)
			continue
		}
		findings = append(findings, nf)
	}

	for _, reason := range []string{reasonOutsideTargets, reasonInvalid} {
		if d, ok := drops[reason]; ok {
			diagnostics = append(diagnostics, d)
		}
	}
	return findings, diagnostics
}

// normalizeFinding returns the canonical copy of f and whether it lies
// under one of the targets.
func (n *Normalizer) normalizeFinding(desc *types.ToolDescriptor, f types.Finding) (types.Finding, bool) {
	f.ToolID = desc.ID
	f = f.WithPayload(f.RawPayload)

	native := f.NativeSeverity
	if native == "" {
		native = string(f.Severity)
		f.NativeSeverity = native
	}
	sev, mapped := desc.MapSeverity(native)
	f.Severity = sev
	if !mapped {
		f.Note = types.UnmappedSeverityNote
	} else if f.Note == types.UnmappedSeverityNote {
		f.Note = ""
	}

	if f.Path == "" {
		return f, true
	}
	abs := n.absolute(stripFileScheme(f.Path))
	rel, err := filepath.Rel(n.root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		f.Path = filepath.ToSlash(abs)
		return f, false
	}
	f.Path = filepath.ToSlash(rel)
	return f, n.inTargets(abs)
}

func (n *Normalizer) absolute(p string) string {
	p = filepath.FromSlash(p)
	if !filepath.IsAbs(p) {
		p = filepath.Join(n.root, p)
	}
	return filepath.Clean(p)
}

func (n *Normalizer) inTargets(abs string) bool {
	for _, t := range n.targets {
		if abs == t || strings.HasPrefix(abs, t+string(filepath.Separator)) || t == string(filepath.Separator) {
			return true
		}
	}
	return false
}

// stripFileScheme turns file:// URIs, as used in SARIF, into paths.
func stripFileScheme(p string) string {
	if !strings.HasPrefix(p, "file:") {
		return p
	}
	u, err := url.Parse(p)
	if err != nil || u.Path == "" {
		return strings.TrimPrefix(strings.TrimPrefix(p, "file://"), "file:")
	}
	path := u.Path
	// file:///C:/x parses with a leading slash before the drive letter
	if len(path) > 2 && path[0] == '/' && path[2] == ':' {
		path = path[1:]
	}
	return path
}
