package storage

import (
	"os"
	"path/filepath"
)

// DefaultDatabase is the history database location relative to the project root.
var DefaultDatabase = filepath.Join(".lintrun", "history.db")

// EnvDatabasePath overrides discovery, e.g. for test isolation.
const EnvDatabasePath = "LINTRUN_DB_PATH"

// DiscoverDatabase returns the history database path for a project:
// LINTRUN_DB_PATH when set (":memory:" allowed), otherwise
// .lintrun/history.db under projectRoot.
func DiscoverDatabase(projectRoot string) string {
	if dbPath := os.Getenv(EnvDatabasePath); dbPath != "" {
		return dbPath
	}
	return filepath.Join(projectRoot, DefaultDatabase)
}

// ResolvePath makes a configured history path absolute against projectRoot.
// An empty path falls back to discovery.
func ResolvePath(path, projectRoot string) string {
	switch {
	case path == "":
		return DiscoverDatabase(projectRoot)
	case path == ":memory:" || filepath.IsAbs(path):
		return path
	default:
		return filepath.Join(projectRoot, path)
	}
}
