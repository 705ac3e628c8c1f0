// SPDX-License-Identifier: MPL-2.0

// Package host wires the dval runtime together: the single-instance lock,
// the module registry, the code resolver, the loader and the optional
// directory watcher.
//
// The lifecycle is New, Start, Run and Shutdown. Start refuses to continue
// when another instance with the same token is running. Shutdown runs the
// registered hooks, closes every module in registration order and releases
// the lock.
package host
