// SPDX-License-Identifier: MPL-2.0

// Package issue carries user-facing failures.
//
// ActionableError wraps a cause with the operation that failed, the resource
// involved and suggestions for the operator. The catalog holds Markdown
// guidance for the failures that stop the dval CLI, rendered with glamour.
package issue
