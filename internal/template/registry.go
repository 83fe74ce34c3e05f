package template

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sahilm/fuzzy"

	"github.com/gridmind/gridmind/internal/core"
)

// Registry holds the available template contracts. It is safe for concurrent
// use; YAML pack reloads swap entries while applies are running.
type Registry struct {
	mu        sync.RWMutex
	contracts map[core.TemplateID]core.TemplateContract
}

// NewRegistry creates a registry pre-loaded with the built-in templates.
func NewRegistry() *Registry {
	r := &Registry{contracts: make(map[core.TemplateID]core.TemplateContract)}
	for _, c := range Builtins() {
		r.contracts[c.ID()] = c
	}
	return r
}

// Register adds or replaces a contract.
func (r *Registry) Register(c core.TemplateContract) error {
	if c == nil || c.ID() == "" {
		return fmt.Errorf("cannot register template without id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contracts[c.ID()] = c
	return nil
}

// Get retrieves a contract. Unknown IDs return a validation error carrying a
// nearest-name suggestion when one is close enough.
func (r *Registry) Get(id core.TemplateID) (core.TemplateContract, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if c, ok := r.contracts[id]; ok {
		return c, nil
	}

	msg := fmt.Sprintf("unknown template %q", id)
	if suggestion := r.nearestLocked(string(id)); suggestion != "" {
		msg = fmt.Sprintf("unknown template %q (did you mean %q?)", id, suggestion)
	}
	return nil, core.ErrValidation(core.CodeUnknownTemplate, msg)
}

// List returns all registered template IDs, sorted.
func (r *Registry) List() []core.TemplateID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]core.TemplateID, 0, len(r.contracts))
	for id := range r.contracts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Describe returns id -> description for all registered templates.
func (r *Registry) Describe() map[core.TemplateID]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[core.TemplateID]string, len(r.contracts))
	for id, c := range r.contracts {
		out[id] = c.Describe()
	}
	return out
}

// nearestLocked fuzzy-matches an unknown ID against registered names.
// Caller must hold at least a read lock.
func (r *Registry) nearestLocked(id string) string {
	names := make([]string, 0, len(r.contracts))
	for known := range r.contracts {
		names = append(names, string(known))
	}
	sort.Strings(names)

	matches := fuzzy.Find(id, names)
	if len(matches) == 0 {
		return ""
	}
	return matches[0].Str
}
