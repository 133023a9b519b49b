package aggregate

import (
	"bytes"
	"fmt"
	"slices"
	"strings"

	"github.com/steveyegge/lintrun/internal/types"
)

// Stats provides metrics about one aggregation
type Stats struct {
	// Input is the number of findings received
	Input int `json:"input"`

	// Output is the number of findings kept
	Output int `json:"output"`

	// ExactDuplicates counts same-tool repeats that were suppressed
	ExactDuplicates int `json:"exact_duplicates"`

	// Equivalent counts findings collapsed through the equivalence table
	Equivalent int `json:"equivalent"`
}

// Validate checks that the counts add up
func (s Stats) Validate() error {
	if s.Input < 0 || s.Output < 0 || s.ExactDuplicates < 0 || s.Equivalent < 0 {
		return fmt.Errorf("stats cannot be negative (%+v)", s)
	}
	if total := s.Output + s.ExactDuplicates + s.Equivalent; total != s.Input {
		return fmt.Errorf("stats.input (%d) does not match output + duplicates + equivalent (%d)", s.Input, total)
	}
	return nil
}

// Aggregator de-duplicates and orders findings. It is immutable after
// construction and safe for concurrent use.
type Aggregator struct {
	classes map[string]int
}

// New creates an aggregator.
func New(cfg Config) (*Aggregator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid aggregator configuration: %w", err)
	}
	return &Aggregator{classes: cfg.classTable()}, nil
}

// Aggregate returns the de-duplicated findings sorted by the ordering key.
// The input is not modified. A finding violating the canonical invariants
// is an AggregationError.
func (a *Aggregator) Aggregate(findings []types.Finding) ([]types.Finding, Stats, error) {
	stats := Stats{Input: len(findings)}
	for i, f := range findings {
		if err := f.Validate(); err != nil {
			return nil, stats, &types.AggregationError{Reason: fmt.Sprintf("finding %d is not canonical", i), Err: err}
		}
	}

	sorted := slices.Clone(findings)
	slices.SortFunc(sorted, order)

	out := make([]types.Finding, 0, len(sorted))
	// Kept findings per (class, path), for overlap checks
	kept := make(map[classPath][]types.Finding)

	for i, f := range sorted {
		if i > 0 && types.Compare(sorted[i-1], f) == 0 {
			stats.ExactDuplicates++
			continue
		}

		class, inClass := a.classes[ruleKey(f)]
		if inClass {
			cp := classPath{class: class, path: f.Path}
			if equivalentKept(kept[cp], f) {
				stats.Equivalent++
				continue
			}
			kept[cp] = append(kept[cp], f)
		}
		out = append(out, f)
	}

	stats.Output = len(out)
	if err := stats.Validate(); err != nil {
		return nil, stats, &types.AggregationError{Reason: "inconsistent aggregation", Err: err}
	}
	return out, stats, nil
}

type classPath struct {
	class int
	path  string
}

func ruleKey(f types.Finding) string {
	return f.ToolID + ":" + f.RuleID
}

// equivalentKept reports whether f overlaps a kept finding of the same class
// reported under a different tool:rule. Repeats of one rule are left to
// exact de-duplication.
func equivalentKept(kept []types.Finding, f types.Finding) bool {
	key := ruleKey(f)
	for _, k := range kept {
		if ruleKey(k) != key && k.Overlaps(f) {
			return true
		}
	}
	return false
}

// order extends types.Compare with the provenance fields so that sorting is
// a total function of finding content.
func order(a, b types.Finding) int {
	if c := types.Compare(a, b); c != 0 {
		return c
	}
	if c := strings.Compare(a.NativeSeverity, b.NativeSeverity); c != 0 {
		return c
	}
	if c := strings.Compare(a.Note, b.Note); c != 0 {
		return c
	}
	return bytes.Compare(a.RawPayload, b.RawPayload)
}
