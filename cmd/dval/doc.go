// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the dval command line.
package cmd
