// SPDX-License-Identifier: MPL-2.0

package dvalmod

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"dval/internal/testutil"
	"dval/pkg/manifest"
)

func TestPack(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.MustWriteFile(t, filepath.Join(dir, "src", "foo", "Entry.star"), []byte("def start(): pass\ndef stop(): pass\n"))
	testutil.MustWriteFile(t, filepath.Join(dir, "src", "data", "config.txt"), []byte("k=v"))
	testutil.MustWriteFile(t, filepath.Join(dir, "src", "META-INF", "MANIFEST.MF"),
		[]byte("Manifest-Version: 1.0\r\nName: Foo\r\nAuthor: Alice\r\n\r\n"))

	out := filepath.Join(dir, "foo.zip")
	path, err := Pack(filepath.Join(dir, "src"), out, PackOptions{Version: "1.2", MainClass: "foo.Entry"})
	if err != nil {
		t.Fatalf("Pack() error: %v", err)
	}
	if path != out {
		t.Errorf("Pack() = %q, want %q", path, out)
	}

	a, err := OpenArchive(path, nil)
	if err != nil {
		t.Fatalf("OpenArchive() error: %v", err)
	}
	defer testutil.DeferClose(t, a)()

	files := a.Files()
	if len(files) == 0 || files[0].Name != manifest.Path {
		t.Fatalf("first archive item is not %s", manifest.Path)
	}
	var names []string
	for _, f := range files {
		names = append(names, f.Name)
	}
	slices.Sort(names)
	if want := []string{manifest.Path, "data/config.txt", "foo/Entry.star"}; !slices.Equal(names, want) {
		t.Errorf("archive items = %v, want %v", names, want)
	}

	rc, err := a.Open(manifest.Path)
	if err != nil {
		t.Fatalf("Open(manifest) error: %v", err)
	}
	defer rc.Close()
	mf, err := manifest.Parse(rc)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	for key, want := range map[string]string{
		manifest.AttrName:      "Foo",
		manifest.AttrAuthor:    "Alice",
		manifest.AttrVersion:   "1.2",
		manifest.AttrMainClass: "foo.Entry",
	} {
		if got := mf.Get(key); got != want {
			t.Errorf("manifest %s = %q, want %q", key, got, want)
		}
	}
}

func TestPack_NotADirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	file := filepath.Join(dir, "plain.txt")
	testutil.MustWriteFile(t, file, []byte("x"))

	out := filepath.Join(dir, "out.zip")
	if _, err := Pack(file, out, PackOptions{}); err == nil {
		t.Fatal("Pack() succeeded on a regular file")
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Errorf("output exists after failed Pack(): %v", err)
	}
}
