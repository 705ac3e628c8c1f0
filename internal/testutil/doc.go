// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helpers shared by dval's tests.
//
// Besides the usual Must* wrappers it builds module archives in memory
// (BuildArchive, WriteArchive) and offers a CountingSource that records how
// often the package bytes are read, for tests that assert lazy loading.
package testutil
