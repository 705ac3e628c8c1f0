// SPDX-License-Identifier: MPL-2.0

// Package resolver locates code units and resources across the modules of a
// [dvalmod.Registry] and turns code units into running entry points.
//
// Code units are Starlark files. A unit is compiled the first time any module
// asks for it and the compiled program is cached on its entry. Each entry
// point gets a fresh execution of its unit; units pulled in through load()
// are executed once and shared frozen. Units can use three predeclared
// values: module (the owner's identity), log(msg, level) and resource(path).
//
// Entry-point names registered with [Resolver.RegisterNative] are served by
// the host and take precedence over module code.
package resolver
