// SPDX-License-Identifier: MPL-2.0

// Package dvalmod defines dval modules: self-contained packages of code units
// and resources that are loaded into a running host without an install step.
//
// # Module Lifecycle
//
// A module is constructed once its package has been recognized and its
// manifest parsed, then moves through:
//
//   - [StateNotLoaded]: identity known, entries not indexed
//   - [StateLoaded]: [Module.Load] indexed the package's directory
//   - [StateOpened]: [Module.Open] started the entry point (no-op for libraries)
//   - [StateInert]: Open was attempted but the entry point could not be activated
//   - [StateClosed]: [Module.Close] stopped the entry point and released the package
//
// # Entries
//
// Every item of a package is an [Entry] in the module's [Index]: code units are
// keyed by a dotted logical name ("foo/Entry.star" becomes "foo.Entry"),
// resources by their raw path. Code entries are read and defined at most once
// (see [Entry.Define]); resources are read on every request.
//
// # Backends
//
// [ArchiveModule] is the ZIP-backed implementation. Other backends only need to
// satisfy [Module]; the loader and resolver never depend on the concrete type.
package dvalmod
