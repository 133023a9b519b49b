package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// HistoryRetentionConfig controls pruning of the run history store
type HistoryRetentionConfig struct {
	// MaxAgeDays is how long runs are kept (in days)
	// Default: 30, Range: 1-365
	MaxAgeDays int

	// KeepRuns is the minimum number of most recent runs kept regardless of age
	// Default: 20, Range: 0-10000
	KeepRuns int

	// MaxRuns caps the number of stored runs; 0 means unlimited
	// Must be 0 or >= KeepRuns
	// Default: 500
	MaxRuns int

	// Enabled controls whether runs are pruned after each save
	// Default: true
	Enabled bool
}

// DefaultHistoryRetentionConfig returns the default history retention configuration
func DefaultHistoryRetentionConfig() HistoryRetentionConfig {
	return HistoryRetentionConfig{
		MaxAgeDays: 30,
		KeepRuns:   20,
		MaxRuns:    500,
		Enabled:    true,
	}
}

// Validate checks if the configuration has valid values
func (c HistoryRetentionConfig) Validate() error {
	if c.MaxAgeDays < 1 || c.MaxAgeDays > 365 {
		return fmt.Errorf("max_age_days must be between 1 and 365 (got %d)", c.MaxAgeDays)
	}
	if c.KeepRuns < 0 || c.KeepRuns > 10000 {
		return fmt.Errorf("keep_runs must be between 0 and 10000 (got %d)", c.KeepRuns)
	}
	if c.MaxRuns < 0 {
		return fmt.Errorf("max_runs cannot be negative (got %d)", c.MaxRuns)
	}
	if c.MaxRuns > 0 && c.MaxRuns < c.KeepRuns {
		return fmt.Errorf("max_runs (%d) must be 0 (unlimited) or >= keep_runs (%d)", c.MaxRuns, c.KeepRuns)
	}
	return nil
}

// String returns a human-readable representation of the config
func (c HistoryRetentionConfig) String() string {
	return fmt.Sprintf(
		"HistoryRetentionConfig{MaxAgeDays: %d, KeepRuns: %d, MaxRuns: %d, Enabled: %t}",
		c.MaxAgeDays, c.KeepRuns, c.MaxRuns, c.Enabled,
	)
}

// MaxAge returns the age threshold as a time.Duration
func (c HistoryRetentionConfig) MaxAge() time.Duration {
	return time.Duration(c.MaxAgeDays) * 24 * time.Hour
}

// HistoryRetentionConfigFromEnv creates a HistoryRetentionConfig from environment
// variables, falling back to defaults
//
// Environment variables:
//   - LINTRUN_HISTORY_MAX_AGE_DAYS: How long runs are kept in days (default: 30)
//   - LINTRUN_HISTORY_KEEP_RUNS: Minimum number of recent runs kept (default: 20)
//   - LINTRUN_HISTORY_MAX_RUNS: Maximum stored runs, 0 for unlimited (default: 500)
//   - LINTRUN_HISTORY_PRUNE: Prune after each save (default: true)
func HistoryRetentionConfigFromEnv() (HistoryRetentionConfig, error) {
	cfg := DefaultHistoryRetentionConfig()

	if err := parseEnvInt("LINTRUN_HISTORY_MAX_AGE_DAYS", &cfg.MaxAgeDays); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("LINTRUN_HISTORY_KEEP_RUNS", &cfg.KeepRuns); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("LINTRUN_HISTORY_MAX_RUNS", &cfg.MaxRuns); err != nil {
		return cfg, err
	}
	if err := parseEnvBool("LINTRUN_HISTORY_PRUNE", &cfg.Enabled); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid history retention configuration from environment: %w", err)
	}
	return cfg, nil
}

// parseEnvInt parses an int from an environment variable
func parseEnvInt(key string, dest *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvBool parses a bool from an environment variable
func parseEnvBool(key string, dest *bool) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}
