// SPDX-License-Identifier: MPL-2.0

package dvalmod

import (
	"context"
	"errors"
	"fmt"

	"dval/pkg/version"
)

const (
	// StateNotLoaded indicates the module was constructed but not indexed.
	StateNotLoaded State = iota
	// StateLoaded indicates the module's entries are indexed.
	StateLoaded
	// StateOpened indicates Open completed; the entry point (if any) is started.
	StateOpened
	// StateInert indicates Open was attempted and activation failed.
	StateInert
	// StateClosed is terminal.
	StateClosed
)

const (
	// CodeSuffix marks archive items that are code units.
	CodeSuffix = ".star"

	// MetadataDir holds package metadata that is never indexed.
	MetadataDir = "META-INF/"

	// UnnamedModule is the name used when a manifest declares none.
	UnnamedModule = "Unnamed Module"

	// DefaultVersion is used when a manifest declares no version.
	DefaultVersion = "0.0"
)

var (
	// ErrModuleExists is returned when a module name is already registered.
	ErrModuleExists = errors.New("module already loaded")

	// ErrNotLoaded is returned when an operation requires a loaded module.
	ErrNotLoaded = errors.New("module not loaded")

	// ErrAlreadyOpened is returned by a second call to Open.
	ErrAlreadyOpened = errors.New("module already opened")

	// ErrActivation is wrapped by every entry-point activation failure.
	ErrActivation = errors.New("entry point activation failed")
)

type (
	// State is the lifecycle state of a module.
	State int32

	// Info is the identity of a module as declared by its manifest.
	Info struct {
		Name    string
		Version version.Version
		Author  string
		// EntryPoint is the logical name of the code unit started on Open.
		// Empty for library modules.
		EntryPoint string
		// Source is the path of the backing package.
		Source string
	}

	// EntryPoint receives the lifecycle calls of a non-library module.
	EntryPoint interface {
		Start(ctx context.Context) error
		Stop(ctx context.Context) error
	}

	// Instantiator creates a new instance of the named code unit on behalf of
	// owner. The returned value is checked for EntryPoint at runtime because
	// module code is not known when the host is built.
	Instantiator interface {
		Instantiate(ctx context.Context, owner Info, name string) (any, error)
	}

	// Module is one loadable unit of code and resources.
	Module interface {
		Info() Info
		State() State
		// Index returns the module's entries. Empty until Load succeeds.
		Index() *Index
		// Load indexes the module's entries without reading their content.
		Load() error
		// Open starts the entry point. Called at most once, after registration.
		Open(ctx context.Context, inst Instantiator) error
		// Close stops the entry point and releases the backing package.
		Close(ctx context.Context) error
	}

	// ActivationError describes why a module's entry point could not start.
	// It wraps ErrActivation for errors.Is() compatibility.
	ActivationError struct {
		Module     string
		EntryPoint string
		Cause      error
	}
)

// IsLibrary reports whether the module has no entry point.
func (i Info) IsLibrary() bool { return i.EntryPoint == "" }

// String returns "<name> (<version>)".
func (i Info) String() string {
	if i.Version.IsZero() {
		return i.Name
	}
	return fmt.Sprintf("%s (%s)", i.Name, i.Version)
}

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateNotLoaded:
		return "not-loaded"
	case StateLoaded:
		return "loaded"
	case StateOpened:
		return "opened"
	case StateInert:
		return "inert"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// IsLoaded reports whether the state implies an indexed module.
func (s State) IsLoaded() bool {
	return s == StateLoaded || s == StateOpened || s == StateInert
}

// Error implements the error interface for ActivationError.
func (e *ActivationError) Error() string {
	return fmt.Sprintf("open %q failed: entry point %q: %v", e.Module, e.EntryPoint, e.Cause)
}

// Unwrap returns both the sentinel and the cause.
func (e *ActivationError) Unwrap() []error {
	return []error{ErrActivation, e.Cause}
}
