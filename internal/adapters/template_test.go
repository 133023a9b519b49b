package adapters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/lintrun/internal/types"
)

func TestExpandTemplate(t *testing.T) {
	desc := &types.ToolDescriptor{
		ID:         "pylint",
		Adapter:    "pylint",
		ConfigFlag: "--rcfile=",
		Invocation: types.InvocationTemplate{
			Command: "pylint",
			Args:    []string{"--output-format=json", "{config}", "{targets}"},
			Env:     map[string]string{"PYTHONIOENCODING": "utf-8", "A": "1"},
		},
		OutputFormat: types.FormatJSON,
	}

	inv, err := expandTemplate(desc, types.EffectiveConfig{Path: "/repo/.pylintrc"}, []string{"a.py", "pkg"})
	require.NoError(t, err)
	assert.Equal(t, "pylint", inv.Command)
	assert.Equal(t, []string{"--output-format=json", "--rcfile=/repo/.pylintrc", "a.py", "pkg"}, inv.Args)
	assert.Equal(t, []string{"A=1", "PYTHONIOENCODING=utf-8"}, inv.Env)
	assert.Empty(t, inv.OutputFile)

	inv, err = expandTemplate(desc, types.EffectiveConfig{Defaults: true}, []string{"a.py"})
	require.NoError(t, err)
	assert.Equal(t, []string{"--output-format=json", "a.py"}, inv.Args)
}

func TestExpandTemplate_SeparateFlagAndEmbeddedConfig(t *testing.T) {
	desc := &types.ToolDescriptor{
		ID:         "eslint",
		ConfigFlag: "--config",
		Invocation: types.InvocationTemplate{
			Command: "eslint",
			Args:    []string{"{config}", "--format", "json"},
		},
	}
	inv, err := expandTemplate(desc, types.EffectiveConfig{Path: "eslint.config.mjs"}, []string{"src"})
	require.NoError(t, err)
	// Targets are appended when the template has no placeholder
	assert.Equal(t, []string{"--config", "eslint.config.mjs", "--format", "json", "src"}, inv.Args)

	desc.Invocation.Args = []string{"--config-path={config}", "{targets}"}
	inv, err = expandTemplate(desc, types.EffectiveConfig{Path: "c.yaml"}, []string{"src"})
	require.NoError(t, err)
	assert.Equal(t, []string{"--config-path=c.yaml", "src"}, inv.Args)

	inv, err = expandTemplate(desc, types.EffectiveConfig{Defaults: true}, []string{"src"})
	require.NoError(t, err)
	assert.Equal(t, []string{"src"}, inv.Args)
}

func TestExpandTemplate_OutputFileAndBinding(t *testing.T) {
	desc := &types.ToolDescriptor{
		ID: "trivy",
		Invocation: types.InvocationTemplate{
			Command: "trivy",
			Args:    []string{"fs", "--format", "sarif", "--output", "{output}", "{targets}"},
		},
	}
	inv, err := expandTemplate(desc, types.EffectiveConfig{Defaults: true}, []string{"."})
	require.NoError(t, err)
	assert.Equal(t, types.PlaceholderOutput, inv.OutputFile)

	bound := inv.BindOutput("/tmp/out.sarif")
	assert.Equal(t, "/tmp/out.sarif", bound.OutputFile)
	assert.Equal(t, []string{"fs", "--format", "sarif", "--output", "/tmp/out.sarif", "."}, bound.Args)
	// The unbound invocation is untouched
	assert.Equal(t, "{output}", inv.Args[4])
}

func TestExpandTemplate_Errors(t *testing.T) {
	desc := &types.ToolDescriptor{ID: "x", Invocation: types.InvocationTemplate{Command: "x", Args: []string{"--files={targets}"}}}
	_, err := expandTemplate(desc, types.EffectiveConfig{}, []string{"a"})
	assert.Error(t, err)

	desc.Invocation.Args = nil
	_, err = expandTemplate(desc, types.EffectiveConfig{}, nil)
	assert.Error(t, err)

	desc.Invocation.Command = ""
	_, err = expandTemplate(desc, types.EffectiveConfig{}, []string{"a"})
	assert.Error(t, err)
}

func TestNew_UnknownVariant(t *testing.T) {
	_, err := New(&types.ToolDescriptor{ID: "x", Adapter: "checkstyle"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checkstyle")

	a, err := New(&types.ToolDescriptor{ID: "trivy", Adapter: "sarif"})
	require.NoError(t, err)
	assert.IsType(t, &SARIF{}, a)

	assert.Equal(t, []string{"eslint", "lizard", "mypy", "pylint", "revive", "sarif", "semgrep"}, Variants())
}
