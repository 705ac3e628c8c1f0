// SPDX-License-Identifier: MPL-2.0

package loader

import (
	"path/filepath"
	"slices"
	"testing"

	"dval/internal/testutil"
)

func TestDiscover(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, name := range []string{"a.zip", "b.jar", "notes.txt", "nested/c.zip", "nested/deep/d.zip"} {
		testutil.MustWriteFile(t, filepath.Join(dir, filepath.FromSlash(name)), []byte("x"))
	}
	join := func(name string) string { return filepath.Join(dir, filepath.FromSlash(name)) }

	tests := []struct {
		name  string
		specs []string
		want  []string
	}{
		{"directory", []string{dir}, []string{join("a.zip"), join("b.jar")}},
		{"file", []string{join("notes.txt")}, []string{join("notes.txt")}},
		{"recursive glob", []string{filepath.Join(dir, "**", "*.zip")}, []string{join("a.zip"), join("nested/c.zip"), join("nested/deep/d.zip")}},
		{"dedupe keeps first", []string{join("b.jar"), dir}, []string{join("b.jar"), join("a.zip")}},
		{"missing", []string{join("missing.zip")}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Discover(tt.specs)
			if err != nil {
				t.Fatalf("Discover() error: %v", err)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("Discover() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDiscover_InvalidPattern(t *testing.T) {
	t.Parallel()

	if _, err := Discover([]string{"[unclosed"}); err == nil {
		t.Error("Discover() accepted an invalid pattern")
	}
}
