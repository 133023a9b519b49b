package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectFormat(t *testing.T) {
	tests := map[string]Format{
		".eslintrc.yml":     FormatYAML,
		".eslintrc":         FormatYAML,
		"semgrep.yaml":      FormatYAML,
		".eslintrc.json":    FormatJSON,
		"pyproject.toml":    FormatTOML,
		".pylintrc":         FormatINI,
		"pylintrc":          FormatINI,
		"setup.cfg":         FormatINI,
		"mypy.ini":          FormatINI,
		"eslint.config.mjs": FormatOpaque,
		"revive.toml":       FormatTOML,
	}
	for name, want := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, want, DetectFormat(name))
		})
	}
}

func TestParseConfig_Formats(t *testing.T) {
	values, err := ParseConfig("a.yaml", []byte("rules:\n  semi: error\n"))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"semi": "error"}, values["rules"])

	values, err = ParseConfig("a.yaml", []byte("   \n"))
	require.NoError(t, err)
	assert.Empty(t, values)

	values, err = ParseConfig("a.json", []byte(`{"extends": "eslint:recommended"}`))
	require.NoError(t, err)
	assert.Equal(t, "eslint:recommended", values["extends"])

	values, err = ParseConfig("pyproject.toml", []byte("[tool.mypy]\nstrict = true\n"))
	require.NoError(t, err)
	section, ok := lookupSection(values, "tool.mypy")
	require.True(t, ok)
	assert.Equal(t, true, section["strict"])

	values, err = ParseConfig(".pylintrc", []byte("[MESSAGES CONTROL]\ndisable = C0114,\n    C0115\n"))
	require.NoError(t, err)
	messages, ok := values["MESSAGES CONTROL"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, messages["disable"], "C0115")

	values, err = ParseConfig("eslint.config.mjs", []byte("export default [];"))
	require.NoError(t, err)
	assert.Nil(t, values)
}

func TestParseConfig_Malformed(t *testing.T) {
	for name, data := range map[string]string{
		"a.yaml":    "key: [unclosed",
		"a.json":    `{"key": `,
		"a.toml":    "key = = 1",
		"setup.cfg": "[section\nkey = value",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseConfig(name, []byte(data))
			assert.Error(t, err)
		})
	}
}

func TestLookupSection(t *testing.T) {
	values := map[string]any{
		"tool": map[string]any{"mypy": map[string]any{"strict": true}, "name": "x"},
	}
	_, ok := lookupSection(values, "tool.ruff")
	assert.False(t, ok)
	_, ok = lookupSection(values, "tool.name")
	assert.False(t, ok)
	got, ok := lookupSection(values, "")
	assert.True(t, ok)
	assert.Equal(t, values, got)
}

func TestDeepMerge(t *testing.T) {
	base := map[string]any{
		"a":      1,
		"nested": map[string]any{"x": 1, "y": 2},
		"list":   []any{1, 2},
	}
	override := map[string]any{
		"nested": map[string]any{"y": 3},
		"list":   []any{9},
		"b":      true,
	}

	merged := deepMerge(base, override)
	assert.Equal(t, 1, merged["a"])
	assert.Equal(t, true, merged["b"])
	assert.Equal(t, []any{9}, merged["list"])
	assert.Equal(t, map[string]any{"x": 1, "y": 3}, merged["nested"])

	// Inputs are untouched
	assert.Equal(t, 2, base["nested"].(map[string]any)["y"])
	_, hasB := base["b"]
	assert.False(t, hasB)
}
