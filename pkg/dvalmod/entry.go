// SPDX-License-Identifier: MPL-2.0

package dvalmod

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
)

const (
	// KindCode marks an entry holding a code unit.
	KindCode EntryKind = iota
	// KindResource marks an entry holding an opaque resource.
	KindResource
)

type (
	// EntryKind distinguishes code units from resources.
	EntryKind int

	// OpenFunc opens a fresh stream over one packaged item.
	OpenFunc func() (io.ReadCloser, error)

	// CodeUnit is a code entry after the host has defined it.
	CodeUnit interface {
		// Name is the dotted logical name of the unit.
		Name() string
		// Source returns the bytes the unit was defined from.
		Source() []byte
	}

	// DefineFunc turns the raw bytes of a code entry into a CodeUnit.
	DefineFunc func(name string, src []byte) (CodeUnit, error)

	// Entry is one named item of a module. Code entries move from unread to
	// cached exactly once; the transition is safe under concurrent Define calls.
	Entry struct {
		name string
		kind EntryKind
		open OpenFunc

		once   sync.Once
		cached atomic.Bool
		unit   CodeUnit
		err    error
	}

	// Index holds the entries of one module. It is populated by Load and read
	// concurrently afterwards.
	Index struct {
		mu        sync.RWMutex
		code      map[string]*Entry
		resources map[string]*Entry
	}

	// IndexStats summarizes an Index for display.
	IndexStats struct {
		Code      int `json:"code" toml:"code"`
		Cached    int `json:"cached" toml:"cached"`
		Resources int `json:"resources" toml:"resources"`
	}
)

// String returns "code" or "resource".
func (k EntryKind) String() string {
	if k == KindCode {
		return "code"
	}
	return "resource"
}

// NewEntry creates an entry whose content is produced by open.
func NewEntry(name string, kind EntryKind, open OpenFunc) *Entry {
	return &Entry{name: name, kind: kind, open: open}
}

// Name returns the entry's index key.
func (e *Entry) Name() string { return e.name }

// Kind returns the entry kind.
func (e *Entry) Kind() EntryKind { return e.kind }

// Read opens a stream over the item, reads it fully and closes the stream.
func (e *Entry) Read() ([]byte, error) {
	rc, err := e.open()
	if err != nil {
		return nil, fmt.Errorf("open entry %q: %w", e.name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read entry %q: %w", e.name, err)
	}
	return data, nil
}

// Cached returns the defined unit if Define already succeeded.
func (e *Entry) Cached() (CodeUnit, bool) {
	if !e.cached.Load() {
		return nil, false
	}
	return e.unit, true
}

// Define reads and defines the entry on first call and caches the outcome.
// Later calls, including concurrent ones, return the cached unit or error
// without touching the package again.
func (e *Entry) Define(define DefineFunc) (CodeUnit, error) {
	e.once.Do(func() {
		src, err := e.Read()
		if err != nil {
			e.err = err
			return
		}
		unit, err := define(e.name, src)
		if err != nil {
			e.err = fmt.Errorf("define %q: %w", e.name, err)
			return
		}
		e.unit = unit
		e.cached.Store(true)
	})
	return e.unit, e.err
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{
		code:      make(map[string]*Entry),
		resources: make(map[string]*Entry),
	}
}

// Add inserts e. An existing entry of the same kind and name is kept.
func (x *Index) Add(e *Entry) {
	x.mu.Lock()
	defer x.mu.Unlock()

	m := x.resources
	if e.kind == KindCode {
		m = x.code
	}
	if _, exists := m[e.name]; !exists {
		m[e.name] = e
	}
}

// Code returns the code entry for a logical name.
func (x *Index) Code(name string) (*Entry, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	e, ok := x.code[name]
	return e, ok
}

// Resource returns the resource entry for a path.
func (x *Index) Resource(name string) (*Entry, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	e, ok := x.resources[name]
	return e, ok
}

// CodeNames returns the sorted logical names of all code entries.
func (x *Index) CodeNames() []string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return slices.Sorted(maps.Keys(x.code))
}

// ResourceNames returns the sorted paths of all resources.
func (x *Index) ResourceNames() []string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return slices.Sorted(maps.Keys(x.resources))
}

// Stats counts entries by kind and cache state.
func (x *Index) Stats() IndexStats {
	x.mu.RLock()
	defer x.mu.RUnlock()

	st := IndexStats{Code: len(x.code), Resources: len(x.resources)}
	for _, e := range x.code {
		if e.cached.Load() {
			st.Cached++
		}
	}
	return st
}

// LogicalName converts an archive path into an entry kind and index key.
// Code units lose the CodeSuffix and use dots as separators.
func LogicalName(path string) (string, EntryKind) {
	if strings.HasSuffix(path, CodeSuffix) {
		base := strings.TrimSuffix(path, CodeSuffix)
		return strings.ReplaceAll(base, "/", "."), KindCode
	}
	return path, KindResource
}

// IsIndexable reports whether an archive path names a content item.
func IsIndexable(path string) bool {
	if path == "" || strings.HasSuffix(path, "/") {
		return false
	}
	return !strings.HasPrefix(path, MetadataDir)
}
