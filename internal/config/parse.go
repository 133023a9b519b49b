package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

// Format is the syntax of a tool config file.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
	FormatINI  Format = "ini"

	// FormatOpaque files (e.g. eslint.config.mjs) are passed to the tool
	// unparsed; being readable is enough to count as a match
	FormatOpaque Format = "opaque"
)

// iniNames are config files in INI syntax whose names carry no usable extension.
var iniNames = map[string]bool{
	"pylintrc":  true,
	".pylintrc": true,
	".flake8":   true,
	"setup.cfg": true,
	"tox.ini":   true,
}

// DetectFormat infers the config syntax from the file name.
func DetectFormat(path string) Format {
	base := strings.ToLower(filepath.Base(path))
	if iniNames[base] {
		return FormatINI
	}
	switch filepath.Ext(base) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".json":
		return FormatJSON
	case ".toml":
		return FormatTOML
	case ".ini", ".cfg", ".rc":
		return FormatINI
	}
	// Extension-less rc files such as .eslintrc or .semgrepignore-style
	// YAML are the common case for dotfiles
	if strings.HasPrefix(base, ".") && strings.HasSuffix(base, "rc") {
		return FormatYAML
	}
	return FormatOpaque
}

// ParseConfig parses config file content according to its format. Opaque
// files return a nil map and no error.
func ParseConfig(path string, data []byte) (map[string]any, error) {
	switch DetectFormat(path) {
	case FormatYAML:
		return parseYAML(data)
	case FormatJSON:
		return parseJSON(data)
	case FormatTOML:
		return parseTOML(data)
	case FormatINI:
		return parseINI(data)
	default:
		return nil, nil
	}
}

func parseYAML(data []byte) (map[string]any, error) {
	values := map[string]any{}
	if len(bytes.TrimSpace(data)) == 0 {
		return values, nil
	}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	return values, nil
}

func parseJSON(data []byte) (map[string]any, error) {
	values := map[string]any{}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}
	return values, nil
}

func parseTOML(data []byte) (map[string]any, error) {
	values := map[string]any{}
	if err := toml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("parsing TOML: %w", err)
	}
	return values, nil
}

func parseINI(data []byte) (map[string]any, error) {
	file, err := ini.LoadSources(ini.LoadOptions{
		AllowPythonMultilineValues: true,
		SpaceBeforeInlineComment:   true,
	}, data)
	if err != nil {
		return nil, fmt.Errorf("parsing INI: %w", err)
	}

	values := map[string]any{}
	for _, section := range file.Sections() {
		keys := section.Keys()
		if len(keys) == 0 {
			continue
		}
		entries := make(map[string]any, len(keys))
		for _, key := range keys {
			entries[key.Name()] = key.Value()
		}
		values[section.Name()] = entries
	}
	return values, nil
}

// lookupSection walks a dotted path such as "tool.mypy" through nested maps.
func lookupSection(values map[string]any, section string) (map[string]any, bool) {
	if section == "" {
		return values, true
	}
	current := values
	for _, part := range strings.Split(section, ".") {
		next, ok := current[part]
		if !ok {
			return nil, false
		}
		m, ok := asMap(next)
		if !ok {
			return nil, false
		}
		current = m
	}
	return current, true
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	}
	return nil, false
}
