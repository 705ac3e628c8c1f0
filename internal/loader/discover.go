// SPDX-License-Identifier: MPL-2.0

package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
)

// PackagePattern selects module packages inside a directory.
const PackagePattern = "*.{zip,jar}"

// Discover expands module path specs into package files. A spec is a file, a
// directory (its packages matching PackagePattern, not recursive) or a
// doublestar glob. Results are absolute, deduplicated and keep the order of
// the specs; matches of one glob are sorted.
func Discover(specs []string) ([]string, error) {
	var (
		out  []string
		seen = make(map[string]struct{})
	)
	add := func(p string) {
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = p
		}
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		out = append(out, abs)
	}

	for _, spec := range specs {
		if spec == "" {
			continue
		}
		pattern := spec
		if st, err := os.Stat(spec); err == nil {
			if !st.IsDir() {
				add(spec)
				continue
			}
			pattern = filepath.Join(spec, PackagePattern)
		} else if !doublestar.ValidatePathPattern(filepath.ToSlash(spec)) {
			return nil, fmt.Errorf("invalid module path pattern %q", spec)
		}

		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("expand module path %q: %w", spec, err)
		}
		slices.Sort(matches)
		for _, m := range matches {
			add(m)
		}
	}
	return out, nil
}
