// SPDX-License-Identifier: MPL-2.0

package config

import (
	"fmt"
	"strings"

	cueerrors "cuelang.org/go/cue/errors"
)

// maxFileSize caps config files before they reach the CUE compiler.
const maxFileSize = 1 << 20

func checkFileSize(data []byte, limit int64, path string) error {
	if int64(len(data)) > limit {
		return fmt.Errorf("%s: file size %d bytes exceeds maximum %d bytes", path, len(data), limit)
	}
	return nil
}

// formatError flattens a CUE error into "<file>: <field path>: <message>"
// lines.
func formatError(err error, path string) error {
	if err == nil {
		return nil
	}
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return fmt.Errorf("%s: %w", path, err)
	}

	lines := make([]string, 0, len(errs))
	for _, e := range errs {
		field := fieldPath(cueerrors.Path(e))
		msg := e.Error()
		if field != "" {
			msg = strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(msg, field), ":"))
			msg = field + ": " + msg
		}
		lines = append(lines, msg)
	}
	if len(lines) == 1 {
		return fmt.Errorf("%s: %s", path, lines[0])
	}
	return fmt.Errorf("%s: validation failed:\n  %s", path, strings.Join(lines, "\n  "))
}

// fieldPath joins CUE path selectors, rendering list indices as [n].
func fieldPath(sel []string) string {
	var b strings.Builder
	for i, s := range sel {
		if i > 0 && isIndex(s) {
			b.WriteString("[" + s + "]")
			continue
		}
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(s)
	}
	return b.String()
}

func isIndex(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
