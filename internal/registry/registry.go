// Package registry holds the process-wide table of analyzers. It is
// populated at startup, sealed, and read concurrently during runs.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/steveyegge/lintrun/internal/adapters"
	"github.com/steveyegge/lintrun/internal/types"
)

// Entry pairs a descriptor with the adapter that drives it.
type Entry struct {
	Descriptor *types.ToolDescriptor
	Adapter    adapters.Adapter
}

// Registry maps tool IDs to their descriptors and adapters.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
	sealed  bool
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		entries: make(map[string]Entry),
	}
}

// Register adds a tool. Registering a duplicate ID, an invalid descriptor,
// or anything after Seal is an AggregationError.
func (r *Registry) Register(desc types.ToolDescriptor, adapter adapters.Adapter) error {
	if err := desc.Validate(); err != nil {
		return &types.AggregationError{Reason: "invalid tool descriptor", Err: err}
	}
	if adapter == nil {
		return &types.AggregationError{Reason: fmt.Sprintf("tool %q registered without adapter", desc.ID)}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return &types.AggregationError{Reason: fmt.Sprintf("registry sealed, cannot register %q", desc.ID)}
	}
	if _, exists := r.entries[desc.ID]; exists {
		return &types.AggregationError{Reason: fmt.Sprintf("tool %q already registered", desc.ID)}
	}

	d := desc
	r.entries[desc.ID] = Entry{Descriptor: &d, Adapter: adapter}
	return nil
}

// Seal forbids further registration.
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true
}

// Sealed reports whether Seal has been called.
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// Lookup returns a registered tool, or an error wrapping types.ErrToolNotFound.
func (r *Registry) Lookup(id string) (Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, exists := r.entries[id]
	if !exists {
		return Entry{}, fmt.Errorf("%w: %q", types.ErrToolNotFound, id)
	}
	return entry, nil
}

// List returns the descriptors of tools supporting language, sorted by ID.
// An empty language lists every tool.
func (r *Registry) List(language string) []*types.ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	descs := make([]*types.ToolDescriptor, 0, len(r.entries))
	for _, entry := range r.entries {
		if language == "" || entry.Descriptor.Supports(language) {
			descs = append(descs, entry.Descriptor)
		}
	}
	sort.Slice(descs, func(i, j int) bool { return descs[i].ID < descs[j].ID })
	return descs
}

// Select resolves the tools for a run: the named IDs in the given order,
// or every tool supporting language when ids is empty.
func (r *Registry) Select(ids []string, language string) ([]Entry, error) {
	if len(ids) == 0 {
		descs := r.List(language)
		if len(descs) == 0 {
			return nil, fmt.Errorf("no registered tool supports language %q", language)
		}
		ids = make([]string, len(descs))
		for i, d := range descs {
			ids[i] = d.ID
		}
	}

	return r.lookupAll(ids)
}

// SelectLanguages resolves the tools supporting any of languages, sorted by ID.
func (r *Registry) SelectLanguages(languages []string) ([]Entry, error) {
	var ids []string
	for _, lang := range languages {
		for _, d := range r.List(lang) {
			ids = append(ids, d.ID)
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no registered tool supports the detected languages %v", languages)
	}
	sort.Strings(ids)
	return r.lookupAll(ids)
}

func (r *Registry) lookupAll(ids []string) ([]Entry, error) {
	seen := make(map[string]bool, len(ids))
	entries := make([]Entry, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		entry, err := r.Lookup(id)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
