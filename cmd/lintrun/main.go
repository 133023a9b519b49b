package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/steveyegge/lintrun/internal/config"
	"github.com/steveyegge/lintrun/internal/logging"
	"github.com/steveyegge/lintrun/internal/registry"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

var (
	// Set up by rootCmd's PersistentPreRunE for every subcommand
	projectRoot string
	settings    config.RunConfig
	log         *logrus.Logger
	reg         *registry.Registry

	logCloser io.Closer
)

// exitError carries a process exit status through cobra.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

var rootCmd = &cobra.Command{
	Use:   "lintrun",
	Short: "Run many static analyzers as one",
	Long: `lintrun runs a set of static-analysis tools over source targets, each
with the configuration file nearest to the code it checks, and merges their
reports into one ordered, de-duplicated set of findings.

Settings are read from .lintrun.yaml in the project root and from
LINTRUN_* environment variables; flags override both.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if noColor, _ := cmd.Flags().GetBool("no-color"); noColor {
			color.NoColor = true
		}

		root, err := locateProjectRoot(cmd)
		if err != nil {
			return err
		}
		projectRoot = root

		v := config.NewViper(projectRoot)
		if err := bindFlags(v, cmd); err != nil {
			return err
		}
		settings, err = config.LoadRunConfig(v)
		if err != nil {
			return err
		}

		logFile := settings.LogFile
		if logFile != "" && !filepath.IsAbs(logFile) {
			logFile = filepath.Join(projectRoot, logFile)
		}
		log, logCloser, err = logging.New(logging.Options{
			Level:  settings.LogLevel,
			Format: settings.LogFormat,
			File:   logFile,
		}, os.Stderr)
		if err != nil {
			return err
		}
		log.WithField("settings", settings.String()).Debug("loaded settings")

		catalogs := make([]string, len(settings.Catalogs))
		for i, c := range settings.Catalogs {
			if !filepath.IsAbs(c) {
				c = filepath.Join(projectRoot, c)
			}
			catalogs[i] = c
		}
		reg, err = registry.NewDefault(catalogs...)
		if err != nil {
			return fmt.Errorf("loading tool catalog: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			_ = logCloser.Close()
		}
	},
}

// flagKeys maps command-line flags to settings keys.
var flagKeys = map[string]string{
	"log-level":   "log.level",
	"log-format":  "log.format",
	"log-file":    "log.file",
	"tools":       "tools",
	"language":    "language",
	"timeout":     "timeout",
	"concurrency": "concurrency",
	"launch-rate": "launch_rate",
	"history":     "history_path",
	"debounce":    "watch.debounce",
}

// bindFlags lets flags the command defines override file and env settings.
func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	for name, key := range flagKeys {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("binding --%s: %w", name, err)
		}
	}
	return nil
}

// locateProjectRoot returns --root, or the nearest ancestor of the working
// directory holding a root marker, or the working directory.
func locateProjectRoot(cmd *cobra.Command) (string, error) {
	if root, _ := cmd.Flags().GetString("root"); root != "" {
		return filepath.Abs(root)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}
	root, found, err := config.FindProjectRoot(cwd, config.DefaultRootMarkers)
	if err != nil {
		return "", err
	}
	if !found {
		return cwd, nil
	}
	return root, nil
}

func init() {
	rootCmd.PersistentFlags().String("root", "", "Project root (default: nearest directory with .lintrun.yaml, .git or .hg)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format (text or json)")
	rootCmd.PersistentFlags().String("log-file", "", "Also write logs to this file, rotated")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable colored output")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		var exit *exitError
		if errors.As(err, &exit) {
			if exit.err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", exit.err)
			}
			os.Exit(exit.code)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
}
