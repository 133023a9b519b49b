package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/steveyegge/lintrun/internal/types"
)

// RunConfigName is the base name of the project-level settings file
// (.lintrun.yaml), searched for in the project root.
const RunConfigName = ".lintrun"

// EnvPrefix prefixes environment overrides, e.g. LINTRUN_TIMEOUT or
// LINTRUN_LOG_LEVEL.
const EnvPrefix = "LINTRUN"

// FileConfig represents the structure of .lintrun.yaml. Durations stay
// strings here and are parsed by ToRunConfig.
type FileConfig struct {
	Tools        []string          `mapstructure:"tools"`
	Language     string            `mapstructure:"language"`
	Timeout      string            `mapstructure:"timeout"`
	ToolTimeouts map[string]string `mapstructure:"tool_timeouts"`
	Concurrency  int               `mapstructure:"concurrency"`

	// LaunchRate limits tool process starts per second; 0 means unlimited
	LaunchRate float64 `mapstructure:"launch_rate"`

	RootMarkers []string `mapstructure:"root_markers"`

	// Equivalences lists classes of "tool:rule" identifiers that report the
	// same defect, e.g. [["pylint:unused-import", "ruff:F401"]]
	Equivalences [][]string `mapstructure:"equivalences"`

	// Catalogs are extra tool catalog files, relative to the project root
	Catalogs []string `mapstructure:"catalogs"`

	HistoryPath string `mapstructure:"history_path"`

	Log   LogFileConfig   `mapstructure:"log"`
	Watch WatchFileConfig `mapstructure:"watch"`
}

// LogFileConfig defines logging settings in the config file.
type LogFileConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "text" or "json"

	// File, when set, receives a rotated copy of the log
	File string `mapstructure:"file"`
}

// WatchFileConfig defines watch mode settings in the config file.
type WatchFileConfig struct {
	Debounce string `mapstructure:"debounce"` // Duration string like "500ms"
}

// RunConfig holds the resolved orchestrator settings.
type RunConfig struct {
	Tools        []string
	Language     string
	Timeout      time.Duration
	ToolTimeouts map[string]time.Duration
	Concurrency  int
	LaunchRate   float64
	RootMarkers  []string
	Equivalences [][]string
	Catalogs     []string
	HistoryPath  string
	LogLevel     string
	LogFormat    string
	LogFile      string
	Debounce     time.Duration
}

// DefaultRunConfig returns the default orchestrator configuration
func DefaultRunConfig() RunConfig {
	return RunConfig{
		RootMarkers: append([]string(nil), DefaultRootMarkers...),
		HistoryPath: filepath.Join(".lintrun", "history.db"),
		LogLevel:    "info",
		LogFormat:   "text",
		Debounce:    500 * time.Millisecond,
	}
}

// Validate checks if the configuration has valid values
func (c RunConfig) Validate() error {
	if c.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative (got %v)", c.Timeout)
	}
	for id, d := range c.ToolTimeouts {
		if d <= 0 {
			return fmt.Errorf("tool_timeouts.%s must be positive (got %v)", id, d)
		}
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("concurrency cannot be negative (got %d)", c.Concurrency)
	}
	if c.LaunchRate < 0 {
		return fmt.Errorf("launch_rate cannot be negative (got %v)", c.LaunchRate)
	}
	for i, class := range c.Equivalences {
		if len(class) < 2 {
			return fmt.Errorf("equivalences[%d] needs at least two members (got %d)", i, len(class))
		}
		for _, member := range class {
			tool, rule, ok := strings.Cut(member, ":")
			if !ok || tool == "" || rule == "" {
				return fmt.Errorf("equivalences[%d]: %q must have the form tool:rule", i, member)
			}
		}
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("log.format must be 'text' or 'json' (got %q)", c.LogFormat)
	}
	if c.Debounce < 0 {
		return fmt.Errorf("watch.debounce cannot be negative (got %v)", c.Debounce)
	}
	return nil
}

// String returns a human-readable representation of the config
func (c RunConfig) String() string {
	return fmt.Sprintf(
		"RunConfig{Tools: %v, Language: %q, Timeout: %v, ToolTimeouts: %d, "+
			"Concurrency: %d, LaunchRate: %v, Equivalences: %d, Catalogs: %v, "+
			"History: %s, Log: %s/%s}",
		c.Tools, c.Language, c.Timeout, len(c.ToolTimeouts),
		c.Concurrency, c.LaunchRate, len(c.Equivalences), c.Catalogs,
		c.HistoryPath, c.LogLevel, c.LogFormat,
	)
}

// AnalysisRun builds a run request for the given targets.
func (c RunConfig) AnalysisRun(projectRoot string, targets []string) types.AnalysisRun {
	var timeouts map[string]time.Duration
	if len(c.ToolTimeouts) > 0 {
		timeouts = make(map[string]time.Duration, len(c.ToolTimeouts))
		for id, d := range c.ToolTimeouts {
			timeouts[id] = d
		}
	}
	return types.AnalysisRun{
		ProjectRoot:  projectRoot,
		Targets:      append([]string(nil), targets...),
		Tools:        append([]string(nil), c.Tools...),
		Language:     c.Language,
		Timeout:      c.Timeout,
		ToolTimeouts: timeouts,
		Concurrency:  c.Concurrency,
	}
}

// NewViper returns a viper instance that reads .lintrun.yaml from
// projectRoot and LINTRUN_* environment overrides, seeded with defaults.
func NewViper(projectRoot string) *viper.Viper {
	v := viper.New()
	v.SetConfigName(RunConfigName)
	v.SetConfigType("yaml")
	v.AddConfigPath(projectRoot)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := DefaultRunConfig()
	v.SetDefault("tools", []string{})
	v.SetDefault("language", "")
	v.SetDefault("timeout", "")
	v.SetDefault("concurrency", def.Concurrency)
	v.SetDefault("launch_rate", def.LaunchRate)
	v.SetDefault("root_markers", def.RootMarkers)
	v.SetDefault("catalogs", []string{})
	v.SetDefault("history_path", def.HistoryPath)
	v.SetDefault("log.level", def.LogLevel)
	v.SetDefault("log.format", def.LogFormat)
	v.SetDefault("log.file", "")
	v.SetDefault("watch.debounce", def.Debounce.String())
	return v
}

// LoadRunConfig reads the project settings through v. A missing settings
// file is not an error; defaults and environment overrides still apply.
func LoadRunConfig(v *viper.Viper) (RunConfig, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return RunConfig{}, fmt.Errorf("failed to read %s.yaml: %w", RunConfigName, err)
		}
	}

	var fc FileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return RunConfig{}, fmt.Errorf("failed to decode settings: %w", err)
	}
	return fc.ToRunConfig()
}

// ToRunConfig converts the file representation into a validated RunConfig.
func (fc FileConfig) ToRunConfig() (RunConfig, error) {
	cfg := DefaultRunConfig()

	cfg.Tools = fc.Tools
	cfg.Language = fc.Language
	cfg.Concurrency = fc.Concurrency
	cfg.LaunchRate = fc.LaunchRate
	cfg.Equivalences = fc.Equivalences
	cfg.Catalogs = fc.Catalogs

	if fc.Timeout != "" {
		d, err := parseDuration(fc.Timeout)
		if err != nil {
			return cfg, fmt.Errorf("invalid timeout: %w", err)
		}
		cfg.Timeout = d
	}
	if len(fc.ToolTimeouts) > 0 {
		cfg.ToolTimeouts = make(map[string]time.Duration, len(fc.ToolTimeouts))
		for id, s := range fc.ToolTimeouts {
			d, err := parseDuration(s)
			if err != nil {
				return cfg, fmt.Errorf("invalid timeout for %s: %w", id, err)
			}
			cfg.ToolTimeouts[id] = d
		}
	}
	if len(fc.RootMarkers) > 0 {
		cfg.RootMarkers = fc.RootMarkers
	}
	if fc.HistoryPath != "" {
		cfg.HistoryPath = fc.HistoryPath
	}
	if fc.Log.Level != "" {
		cfg.LogLevel = strings.ToLower(fc.Log.Level)
	}
	if fc.Log.Format != "" {
		cfg.LogFormat = strings.ToLower(fc.Log.Format)
	}
	cfg.LogFile = fc.Log.File
	if fc.Watch.Debounce != "" {
		d, err := parseDuration(fc.Watch.Debounce)
		if err != nil {
			return cfg, fmt.Errorf("invalid watch.debounce: %w", err)
		}
		cfg.Debounce = d
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid lintrun configuration: %w", err)
	}
	return cfg, nil
}

// parseDuration parses a duration string with support for days (e.g., "7d")
func parseDuration(s string) (time.Duration, error) {
	// Handle day suffix
	if len(s) > 1 && s[len(s)-1] == 'd' {
		days := s[:len(s)-1]
		var d int
		if _, err := fmt.Sscanf(days, "%d", &d); err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		return time.Duration(d) * 24 * time.Hour, nil
	}

	return time.ParseDuration(s)
}
