// SPDX-License-Identifier: MPL-2.0

package resolver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"go.starlark.net/starlark"

	"dval/pkg/dvalmod"
)

var (
	// ErrNotFound is returned when no registered module provides a code unit.
	ErrNotFound = errors.New("code unit not found")

	// ErrNativeExists is returned when a native name is registered twice.
	ErrNativeExists = errors.New("native already registered")
)

type (
	// NativeFactory creates a host-provided entry point.
	NativeFactory func() dvalmod.EntryPoint

	// Option configures a Resolver.
	Option func(*Resolver)

	// Resolver finds code units and resources across every registered module.
	// Host natives are consulted before module code when instantiating entry
	// points; among modules the first registered provider wins.
	Resolver struct {
		registry *dvalmod.Registry
		logger   *log.Logger
		builtins starlark.StringDict

		nativeMu sync.RWMutex
		natives  map[string]NativeFactory
	}
)

// WithLogger sets the logger used by the resolver and by module code.
func WithLogger(l *log.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithBuiltins adds predeclared values visible to every code unit.
func WithBuiltins(builtins starlark.StringDict) Option {
	return func(r *Resolver) {
		maps.Copy(r.builtins, builtins)
	}
}

// New creates a resolver over registry.
func New(registry *dvalmod.Registry, opts ...Option) *Resolver {
	r := &Resolver{
		registry: registry,
		logger:   log.New(io.Discard),
		builtins: make(starlark.StringDict),
		natives:  make(map[string]NativeFactory),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterNative installs a host-provided factory for name.
func (r *Resolver) RegisterNative(name string, factory NativeFactory) error {
	r.nativeMu.Lock()
	defer r.nativeMu.Unlock()
	if _, exists := r.natives[name]; exists {
		return fmt.Errorf("%q: %w", name, ErrNativeExists)
	}
	r.natives[name] = factory
	return nil
}

func (r *Resolver) native(name string) (NativeFactory, bool) {
	r.nativeMu.RLock()
	defer r.nativeMu.RUnlock()
	f, ok := r.natives[name]
	return f, ok
}

// ResolveCode returns the code unit with the given dotted name. Units already
// defined are preferred; otherwise the first registered module containing
// the name defines it, exactly once.
func (r *Resolver) ResolveCode(name string) (*Unit, error) {
	name = normalize(name)
	mods := r.registry.Modules()

	for _, m := range mods {
		if e, ok := m.Index().Code(name); ok {
			if u, ok := e.Cached(); ok {
				return u.(*Unit), nil
			}
		}
	}

	for _, m := range mods {
		e, ok := m.Index().Code(name)
		if !ok {
			continue
		}
		u, err := e.Define(r.definer(m.Info()))
		if err != nil {
			return nil, fmt.Errorf("resolve %q from %s: %w", name, m.Info().Name, err)
		}
		return u.(*Unit), nil
	}

	return nil, fmt.Errorf("resolve %q: %w", name, ErrNotFound)
}

// ResolveResource opens the first resource named name. Its bytes are read
// from the package on every call. A missing resource is not an error.
func (r *Resolver) ResolveResource(name string) (io.ReadCloser, bool, error) {
	for _, m := range r.registry.Modules() {
		e, ok := m.Index().Resource(name)
		if !ok {
			continue
		}
		data, err := e.Read()
		if err != nil {
			return nil, true, fmt.Errorf("resource %q from %s: %w", name, m.Info().Name, err)
		}
		return io.NopCloser(bytes.NewReader(data)), true, nil
	}
	return nil, false, nil
}

// Instantiate creates a fresh instance of the named entry point for owner.
// A native is returned as produced by its factory. A code unit is executed
// in a new thread; if it defines callable start and stop functions the
// result implements dvalmod.EntryPoint, otherwise its globals are returned.
func (r *Resolver) Instantiate(ctx context.Context, owner dvalmod.Info, name string) (any, error) {
	if factory, ok := r.native(name); ok {
		r.logger.Debug("instantiating native", "name", name, "module", owner.Name)
		return factory(), nil
	}

	unit, err := r.ResolveCode(name)
	if err != nil {
		return nil, err
	}

	thread := r.newThread(owner, "instance "+unit.Name(), []string{unit.Name()})
	stopCancel := context.AfterFunc(ctx, func() { thread.Cancel(context.Cause(ctx).Error()) })
	defer stopCancel()

	globals, err := unit.prog.Init(thread, r.predeclared(owner))
	if err != nil {
		return nil, fmt.Errorf("execute %q: %w", unit.Name(), evalError(err))
	}

	ep, ok := newScriptEntryPoint(r, owner, unit.Name(), globals)
	if !ok {
		return globals, nil
	}
	return ep, nil
}

// Natives returns the sorted names of registered natives.
func (r *Resolver) Natives() []string {
	r.nativeMu.RLock()
	defer r.nativeMu.RUnlock()
	return slices.Sorted(maps.Keys(r.natives))
}

func normalize(name string) string {
	if strings.HasSuffix(name, dvalmod.CodeSuffix) {
		n, _ := dvalmod.LogicalName(name)
		return n
	}
	return name
}
