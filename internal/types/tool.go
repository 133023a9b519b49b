package types

import (
	"fmt"
	"strings"
	"time"
)

// OutputFormat identifies the native report format of an analyzer.
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatSARIF OutputFormat = "sarif"
	FormatText  OutputFormat = "text"
)

// IsValid checks if the output format value is valid
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatJSON, FormatSARIF, FormatText:
		return true
	}
	return false
}

// MergePolicy controls how config files found at several tree depths combine.
type MergePolicy string

const (
	// MergeReplace uses only the nearest config file
	MergeReplace MergePolicy = "replace"
	// MergeDeep merges every config file up to the project root, nearest wins per key
	MergeDeep MergePolicy = "deep-merge"
)

// IsValid checks if the merge policy value is valid
func (m MergePolicy) IsValid() bool {
	switch m {
	case MergeReplace, MergeDeep:
		return true
	}
	return false
}

// Template placeholders expanded by adapters when building an invocation.
const (
	PlaceholderTargets = "{targets}"
	PlaceholderConfig  = "{config}"
	PlaceholderOutput  = "{output}"
)

// InvocationTemplate is the declared command line of an analyzer. Args may
// contain the placeholders above; an argument that is exactly {targets}
// expands to one argument per target, {config} expands to the config flag
// and path (or to nothing when no config was found).
type InvocationTemplate struct {
	Command string            `yaml:"command" json:"command"`
	Args    []string          `yaml:"args" json:"args"`
	Env     map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
}

// UsesOutputFile reports whether the tool writes its report to a declared file.
func (t InvocationTemplate) UsesOutputFile() bool {
	for _, a := range t.Args {
		if strings.Contains(a, PlaceholderOutput) {
			return true
		}
	}
	return false
}

// ToolDescriptor is the static registration data of one analyzer.
type ToolDescriptor struct {
	ID        string   `yaml:"id" json:"id"`
	Adapter   string   `yaml:"adapter" json:"adapter"`
	Languages []string `yaml:"languages" json:"languages"`

	// ConfigFilenames are tried in order at each directory level, highest priority first
	ConfigFilenames []string `yaml:"config_filenames" json:"config_filenames"`
	ConfigFlag      string   `yaml:"config_flag,omitempty" json:"config_flag,omitempty"`

	// ConfigSection selects a dotted table inside shared files such as pyproject.toml
	ConfigSection string      `yaml:"config_section,omitempty" json:"config_section,omitempty"`
	Merge         MergePolicy `yaml:"merge,omitempty" json:"merge,omitempty"`

	Invocation   InvocationTemplate `yaml:"invocation" json:"invocation"`
	OutputFormat OutputFormat       `yaml:"output_format" json:"output_format"`

	// SeverityMap maps lower-cased native severities to canonical ones
	SeverityMap    map[string]Severity `yaml:"severity_map" json:"severity_map"`
	DefaultTimeout time.Duration       `yaml:"-" json:"default_timeout"`

	VersionArgs []string `yaml:"version_args,omitempty" json:"version_args,omitempty"`
	MinVersion  string   `yaml:"min_version,omitempty" json:"min_version,omitempty"`
}

// Validate checks if the descriptor has valid field values
func (d *ToolDescriptor) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("tool id is required")
	}
	if strings.ContainsAny(d.ID, " :/") {
		return fmt.Errorf("tool id %q must not contain spaces, ':' or '/'", d.ID)
	}
	if d.Adapter == "" {
		return fmt.Errorf("tool %s: adapter is required", d.ID)
	}
	if d.Invocation.Command == "" {
		return fmt.Errorf("tool %s: invocation command is required", d.ID)
	}
	if !d.OutputFormat.IsValid() {
		return fmt.Errorf("tool %s: invalid output format %q", d.ID, d.OutputFormat)
	}
	if d.Merge != "" && !d.Merge.IsValid() {
		return fmt.Errorf("tool %s: invalid merge policy %q", d.ID, d.Merge)
	}
	for native, sev := range d.SeverityMap {
		if !sev.IsValid() {
			return fmt.Errorf("tool %s: severity %q maps to invalid value %q", d.ID, native, sev)
		}
	}
	if d.DefaultTimeout < 0 {
		return fmt.Errorf("tool %s: default timeout cannot be negative", d.ID)
	}
	return nil
}

// MergePolicy returns the declared merge policy, defaulting to replace.
func (d *ToolDescriptor) MergePolicy() MergePolicy {
	if d.Merge == "" {
		return MergeReplace
	}
	return d.Merge
}

// Supports reports whether the tool declares support for a language.
func (d *ToolDescriptor) Supports(language string) bool {
	for _, l := range d.Languages {
		if strings.EqualFold(l, language) || l == "*" {
			return true
		}
	}
	return false
}

// MapSeverity maps a native severity through the declared table. The mapping
// is total: values missing from the table map to info and report ok=false so
// the caller can flag the finding.
func (d *ToolDescriptor) MapSeverity(native string) (sev Severity, ok bool) {
	key := strings.ToLower(strings.TrimSpace(native))
	if s, found := d.SeverityMap[key]; found {
		return s, true
	}
	return SeverityInfo, false
}
