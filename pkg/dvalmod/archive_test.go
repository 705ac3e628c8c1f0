// SPDX-License-Identifier: MPL-2.0

package dvalmod

import (
	"context"
	"errors"
	"slices"
	"testing"

	"dval/internal/testutil"
	"dval/pkg/manifest"
	"dval/pkg/version"
)

func openTestArchive(t *testing.T, files ...testutil.File) (*Archive, *testutil.CountingSource) {
	t.Helper()
	src := testutil.NewCountingSource(testutil.BuildArchive(t, files...))
	a, err := OpenArchive("mem.zip", func(string) (Source, error) { return src, nil })
	if err != nil {
		t.Fatalf("OpenArchive() error: %v", err)
	}
	return a, src
}

func TestArchiveModule_LoadIndexesWithoutReading(t *testing.T) {
	t.Parallel()

	a, src := openTestArchive(t,
		testutil.Manifest(t, manifest.AttrName, "Foo"),
		testutil.File{Name: "foo/"},
		testutil.File{Name: "foo/Entry.star", Body: "def start(): pass"},
		testutil.File{Name: "foo/util/Strings.star", Body: "x = 1"},
		testutil.File{Name: "data/config.txt", Body: "k=v"},
		testutil.File{Name: "META-INF/extra.txt", Body: "ignored"},
	)
	m := NewArchiveModule(Info{Name: "Foo", Version: version.MustParse("1.2", "")}, a, nil)

	before := src.Reads()
	if err := m.Load(); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got := src.Reads(); got != before {
		t.Errorf("Load() read package content: %d reads, want %d", got, before)
	}
	if m.State() != StateLoaded {
		t.Errorf("State() = %s, want %s", m.State(), StateLoaded)
	}

	if got, want := m.Index().CodeNames(), []string{"foo.Entry", "foo.util.Strings"}; !slices.Equal(got, want) {
		t.Errorf("CodeNames() = %v, want %v", got, want)
	}
	if got, want := m.Index().ResourceNames(), []string{"data/config.txt"}; !slices.Equal(got, want) {
		t.Errorf("ResourceNames() = %v, want %v", got, want)
	}
	if m.Info().Source != "mem.zip" {
		t.Errorf("Info().Source = %q, want mem.zip", m.Info().Source)
	}

	e, _ := m.Index().Resource("data/config.txt")
	data, err := e.Read()
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if string(data) != "k=v" {
		t.Errorf("Read() = %q, want %q", data, "k=v")
	}
}

func TestArchiveModule_LoadTwice(t *testing.T) {
	t.Parallel()

	a, _ := openTestArchive(t, testutil.Manifest(t))
	m := NewArchiveModule(Info{Name: UnnamedModule}, a, nil)
	if err := m.Load(); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if err := m.Load(); err == nil {
		t.Error("second Load() succeeded, want error")
	}
}

func TestArchiveModule_CloseReleasesPackage(t *testing.T) {
	t.Parallel()

	a, src := openTestArchive(t,
		testutil.Manifest(t, manifest.AttrName, "Foo"),
		testutil.File{Name: "r.txt", Body: "r"},
	)
	m := NewArchiveModule(Info{Name: "Foo"}, a, nil)
	if err := m.Load(); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	e, _ := m.Index().Resource("r.txt")

	ctx := context.Background()
	if err := m.Close(ctx); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := m.Close(ctx); err != nil {
		t.Fatalf("second Close() error: %v", err)
	}
	if !src.Closed() {
		t.Error("package source not closed")
	}
	if m.State() != StateClosed {
		t.Errorf("State() = %s, want %s", m.State(), StateClosed)
	}
	if _, err := e.Read(); !errors.Is(err, ErrArchiveClosed) {
		t.Errorf("Read() after Close error = %v, want %v", err, ErrArchiveClosed)
	}
}

func TestArchive_Has(t *testing.T) {
	t.Parallel()

	a, _ := openTestArchive(t, testutil.Manifest(t, manifest.AttrName, "Foo"))
	defer testutil.DeferClose(t, a)()

	if !a.Has(manifest.Path) {
		t.Errorf("Has(%q) = false", manifest.Path)
	}
	if a.Has("missing.txt") {
		t.Error("Has(missing.txt) = true")
	}

	rc, err := a.Open(manifest.Path)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer rc.Close()
	mf, err := manifest.Parse(rc)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if mf.Get(manifest.AttrName) != "Foo" {
		t.Errorf("Name = %q, want Foo", mf.Get(manifest.AttrName))
	}
}

func TestOpenArchive_NotZip(t *testing.T) {
	t.Parallel()

	src := testutil.NewCountingSource([]byte("definitely not a zip archive"))
	_, err := OpenArchive("bad.zip", func(string) (Source, error) { return src, nil })
	if err == nil {
		t.Fatal("OpenArchive() succeeded on garbage")
	}
	if !src.Closed() {
		t.Error("source not closed after failed open")
	}
}
