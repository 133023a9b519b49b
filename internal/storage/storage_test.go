package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/lintrun/internal/storage/sqlite"
)

func TestDiscoverDatabase(t *testing.T) {
	t.Setenv(EnvDatabasePath, "")
	assert.Equal(t, filepath.Join("/proj", ".lintrun", "history.db"), DiscoverDatabase("/proj"))

	t.Setenv(EnvDatabasePath, ":memory:")
	assert.Equal(t, ":memory:", DiscoverDatabase("/proj"))
}

func TestResolvePath(t *testing.T) {
	t.Setenv(EnvDatabasePath, "")
	tests := []struct {
		path string
		want string
	}{
		{"", filepath.Join("/proj", ".lintrun", "history.db")},
		{":memory:", ":memory:"},
		{"/var/lib/lintrun.db", "/var/lib/lintrun.db"},
		{"build/history.db", filepath.Join("/proj", "build", "history.db")},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ResolvePath(tt.path, "/proj"), tt.path)
	}
}

func TestNewStorage(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	t.Setenv(EnvDatabasePath, "")

	s, err := NewStorage(ctx, Config{}, root)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, filepath.Join(root, ".lintrun", "history.db"), s.Path())

	runs, err := s.ListRuns(ctx, sqlite.RunFilter{})
	require.NoError(t, err)
	assert.Empty(t, runs)

	mem, err := NewStorage(ctx, Config{Path: sqlite.MemoryPath}, root)
	require.NoError(t, err)
	defer mem.Close()
	assert.Equal(t, sqlite.MemoryPath, mem.Path())
}
