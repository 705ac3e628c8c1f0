// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"archive/zip"
	"bytes"
	"path/filepath"
	"sync/atomic"
	"testing"

	"dval/pkg/manifest"
)

type (
	// File is one item of an archive built by BuildArchive.
	File struct {
		Name string
		Body string
	}

	// CountingSource is an in-memory package that counts ReadAt calls.
	CountingSource struct {
		r      *bytes.Reader
		reads  atomic.Int64
		closed atomic.Bool
	}
)

// Manifest returns the manifest item for attrs, given as key/value pairs.
func Manifest(t testing.TB, attrs ...string) File {
	t.Helper()
	if len(attrs)%2 != 0 {
		t.Fatalf("Manifest: odd number of attribute arguments")
	}
	mf := manifest.New()
	for i := 0; i < len(attrs); i += 2 {
		mf.Set(attrs[i], attrs[i+1])
	}
	var buf bytes.Buffer
	if _, err := mf.WriteTo(&buf); err != nil {
		t.Fatalf("Manifest: %v", err)
	}
	return File{Name: manifest.Path, Body: buf.String()}
}

// BuildArchive returns a ZIP archive holding files in order. Names ending
// in "/" become directory markers.
func BuildArchive(t testing.TB, files ...File) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range files {
		w, err := zw.Create(f.Name)
		if err != nil {
			t.Fatalf("BuildArchive: create %s: %v", f.Name, err)
		}
		if _, err := w.Write([]byte(f.Body)); err != nil {
			t.Fatalf("BuildArchive: write %s: %v", f.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("BuildArchive: %v", err)
	}
	return buf.Bytes()
}

// WriteArchive builds an archive from files and writes it to dir/name.
func WriteArchive(t testing.TB, dir, name string, files ...File) string {
	t.Helper()
	path := filepath.Join(dir, name)
	MustWriteFile(t, path, BuildArchive(t, files...))
	return path
}

// NewCountingSource wraps data.
func NewCountingSource(data []byte) *CountingSource {
	return &CountingSource{r: bytes.NewReader(data)}
}

// ReadAt implements io.ReaderAt.
func (s *CountingSource) ReadAt(p []byte, off int64) (int, error) {
	s.reads.Add(1)
	return s.r.ReadAt(p, off)
}

// Size returns the length of the package.
func (s *CountingSource) Size() int64 { return s.r.Size() }

// Close marks the source closed.
func (s *CountingSource) Close() error {
	s.closed.Store(true)
	return nil
}

// Reads returns the number of ReadAt calls so far.
func (s *CountingSource) Reads() int64 { return s.reads.Load() }

// Closed reports whether Close was called.
func (s *CountingSource) Closed() bool { return s.closed.Load() }
