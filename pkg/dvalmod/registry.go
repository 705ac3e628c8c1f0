// SPDX-License-Identifier: MPL-2.0

package dvalmod

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
)

// Registry holds the modules known to a host, keyed by name. A name is
// registered at most once; iteration follows registration order.
type Registry struct {
	mu     sync.RWMutex
	order  []Module
	byName map[string]Module
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Module)}
}

// Register adds m under its name. If the name is taken, the registry is left
// unchanged and an error wrapping ErrModuleExists is returned.
func (r *Registry) Register(m Module) error {
	name := m.Info().Name

	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, exists := r.byName[name]; exists {
		return fmt.Errorf("register %q from %s (already provided by %s): %w",
			name, m.Info().Source, prev.Info().Source, ErrModuleExists)
	}
	r.byName[name] = m
	r.order = append(r.order, m)
	return nil
}

// Get returns the module registered under name.
func (r *Registry) Get(name string) (Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byName[name]
	return m, ok
}

// Range calls fn for every module in registration order until fn returns
// false. The registry is not locked while fn runs, so fn may register.
func (r *Registry) Range(fn func(Module) bool) {
	for _, m := range r.Modules() {
		if !fn(m) {
			return
		}
	}
}

// Modules returns a snapshot of the registered modules in registration order.
func (r *Registry) Modules() []Module {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// Len returns the number of registered modules.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// CloseAll closes every registered module. A failing module does not stop
// the others; all errors are joined.
func (r *Registry) CloseAll(ctx context.Context) error {
	var errs []error
	for _, m := range r.Modules() {
		if err := m.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
