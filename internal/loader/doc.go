// SPDX-License-Identifier: MPL-2.0

// Package loader turns package files into registered, opened modules.
//
// A file is accepted only if its first four bytes carry the ZIP signature
// and it contains META-INF/MANIFEST.MF. The manifest supplies the module's
// identity; missing Name and Version attributes fall back to
// [dvalmod.UnnamedModule] and [dvalmod.DefaultVersion]. Each file is handled
// independently: a failing file never prevents the others from loading.
package loader
