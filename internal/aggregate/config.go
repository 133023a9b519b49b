package aggregate

import (
	"fmt"
	"strings"
)

// Config holds configuration for the aggregator
type Config struct {
	// Equivalences lists classes of "tool:rule" identifiers reporting the same
	// defect. A member may appear in at most one class.
	// Default: empty (no cross-tool de-duplication)
	Equivalences [][]string
}

// DefaultConfig returns the default aggregator configuration
func DefaultConfig() Config {
	return Config{}
}

// Validate checks if the configuration has valid values
func (c Config) Validate() error {
	seen := make(map[string]int)
	for i, class := range c.Equivalences {
		if len(class) < 2 {
			return fmt.Errorf("equivalence class %d needs at least two members (got %d)", i, len(class))
		}
		for _, member := range class {
			tool, rule, ok := strings.Cut(member, ":")
			if !ok || tool == "" || rule == "" {
				return fmt.Errorf("equivalence class %d: %q must have the form tool:rule", i, member)
			}
			if prev, dup := seen[member]; dup {
				return fmt.Errorf("%q appears in equivalence classes %d and %d", member, prev, i)
			}
			seen[member] = i
		}
	}
	return nil
}

// String returns a human-readable representation of the config
func (c Config) String() string {
	classes := make([]string, len(c.Equivalences))
	for i, class := range c.Equivalences {
		classes[i] = "[" + strings.Join(class, " ") + "]"
	}
	return fmt.Sprintf("Config{Equivalences: %d %s}", len(c.Equivalences), strings.Join(classes, " "))
}

// classTable maps "tool:rule" keys to their class index.
func (c Config) classTable() map[string]int {
	table := make(map[string]int)
	for i, class := range c.Equivalences {
		for _, member := range class {
			table[member] = i
		}
	}
	return table
}
