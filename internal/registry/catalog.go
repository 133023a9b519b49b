package registry

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/steveyegge/lintrun/internal/adapters"
	"github.com/steveyegge/lintrun/internal/types"
)

//go:embed catalog.yaml
var builtinCatalog []byte

// CatalogFile represents the structure of a tool catalog file.
type CatalogFile struct {
	Tools []CatalogEntry `yaml:"tools"`
}

// CatalogEntry is one tool in a catalog. The timeout is a duration string
// like "5m".
type CatalogEntry struct {
	types.ToolDescriptor `yaml:",inline"`
	DefaultTimeout       string `yaml:"default_timeout"`
}

// ParseCatalog decodes and validates catalog YAML.
func ParseCatalog(data []byte) ([]types.ToolDescriptor, error) {
	var cf CatalogFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	descs := make([]types.ToolDescriptor, 0, len(cf.Tools))
	for i, entry := range cf.Tools {
		desc := entry.ToolDescriptor
		if entry.DefaultTimeout != "" {
			d, err := time.ParseDuration(entry.DefaultTimeout)
			if err != nil {
				return nil, fmt.Errorf("tool %d (%s): invalid default_timeout: %w", i, desc.ID, err)
			}
			desc.DefaultTimeout = d
		}
		if len(desc.SeverityMap) > 0 {
			// Lookups are case-insensitive
			severities := make(map[string]types.Severity, len(desc.SeverityMap))
			for native, sev := range desc.SeverityMap {
				severities[strings.ToLower(native)] = sev
			}
			desc.SeverityMap = severities
		}
		if err := desc.Validate(); err != nil {
			return nil, fmt.Errorf("tool %d: %w", i, err)
		}
		descs = append(descs, desc)
	}
	return descs, nil
}

// LoadCatalog registers every tool in the catalog, binding each to its
// built-in adapter variant.
func (r *Registry) LoadCatalog(data []byte) error {
	descs, err := ParseCatalog(data)
	if err != nil {
		return err
	}
	for i := range descs {
		adapter, err := adapters.New(&descs[i])
		if err != nil {
			return err
		}
		if err := r.Register(descs[i], adapter); err != nil {
			return err
		}
	}
	return nil
}

// LoadCatalogFile registers the tools of a catalog file on disk.
func (r *Registry) LoadCatalogFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	if err := r.LoadCatalog(data); err != nil {
		return fmt.Errorf("catalog %s: %w", path, err)
	}
	return nil
}

// NewDefault creates a sealed registry with the built-in tools plus any
// user catalogs.
func NewDefault(catalogs ...string) (*Registry, error) {
	r := New()
	if err := r.LoadCatalog(builtinCatalog); err != nil {
		return nil, fmt.Errorf("built-in catalog: %w", err)
	}
	for _, path := range catalogs {
		if err := r.LoadCatalogFile(path); err != nil {
			return nil, err
		}
	}
	r.Seal()
	return r, nil
}
