// Package adapters wraps external analyzers behind a two-operation
// capability set: building a command line and parsing the native report.
package adapters

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/steveyegge/lintrun/internal/types"
)

// Adapter is the capability set every analyzer variant implements. Neither
// operation has side effects; ParseOutput returns at most one
// *types.ParseError alongside every finding it could recover.
type Adapter interface {
	BuildInvocation(cfg types.EffectiveConfig, targets []string) (types.Invocation, error)
	ParseOutput(raw []byte, exitStatus int) ([]types.Finding, error)
}

// Factory binds a variant to a tool descriptor.
type Factory func(desc *types.ToolDescriptor) Adapter

var factories = map[string]Factory{
	"eslint":  NewESLint,
	"pylint":  NewPylint,
	"mypy":    NewMypy,
	"semgrep": NewSemgrep,
	"sarif":   NewSARIF,
	"revive":  NewRevive,
	"lizard":  NewLizard,
}

// New returns the adapter variant named by desc.Adapter.
func New(desc *types.ToolDescriptor) (Adapter, error) {
	factory, ok := factories[desc.Adapter]
	if !ok {
		return nil, fmt.Errorf("tool %s: unknown adapter variant %q (known: %v)", desc.ID, desc.Adapter, Variants())
	}
	return factory(desc), nil
}

// Variants returns the names of the built-in adapter variants, sorted.
func Variants() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// base carries the descriptor and the default invocation builder shared by
// every variant.
type base struct {
	desc *types.ToolDescriptor
}

func (b base) BuildInvocation(cfg types.EffectiveConfig, targets []string) (types.Invocation, error) {
	return expandTemplate(b.desc, cfg, targets)
}

// finding starts a finding stamped with the adapter's tool.
func (b base) finding() types.Finding {
	return types.Finding{ToolID: b.desc.ID}
}

// emptyOutput reports whether raw carries no report, and the error to
// return for it. A silent tool that exited non-zero most likely crashed,
// which must not read as a clean result.
func (b base) emptyOutput(raw []byte, exitStatus int) (bool, error) {
	if len(bytes.TrimSpace(raw)) > 0 {
		return false, nil
	}
	if exitStatus != 0 {
		return true, &types.ParseError{
			ToolID: b.desc.ID,
			Offset: -1,
			Reason: fmt.Sprintf("no report produced (exit status %d)", exitStatus),
		}
	}
	return true, nil
}
