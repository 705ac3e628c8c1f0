// SPDX-License-Identifier: MPL-2.0

package dvalmod

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
)

type testUnit struct {
	name string
	src  []byte
}

func (u *testUnit) Name() string   { return u.name }
func (u *testUnit) Source() []byte { return u.src }

func defineTestUnit(name string, src []byte) (CodeUnit, error) {
	return &testUnit{name: name, src: src}, nil
}

func countingOpen(data string, opens *atomic.Int32) OpenFunc {
	return func() (io.ReadCloser, error) {
		opens.Add(1)
		return io.NopCloser(bytes.NewReader([]byte(data))), nil
	}
}

func TestLogicalName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path     string
		wantName string
		wantKind EntryKind
	}{
		{"foo/Entry.star", "foo.Entry", KindCode},
		{"Top.star", "Top", KindCode},
		{"a/b/c/D.star", "a.b.c.D", KindCode},
		{"data/config.txt", "data/config.txt", KindResource},
		{"foo/Entry.star.bak", "foo/Entry.star.bak", KindResource},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			name, kind := LogicalName(tt.path)
			if name != tt.wantName || kind != tt.wantKind {
				t.Errorf("LogicalName(%q) = (%q, %s), want (%q, %s)", tt.path, name, kind, tt.wantName, tt.wantKind)
			}
		})
	}
}

func TestIsIndexable(t *testing.T) {
	t.Parallel()

	tests := map[string]bool{
		"foo/":                 false,
		"":                     false,
		"META-INF/MANIFEST.MF": false,
		"META-INF/extra.txt":   false,
		"foo/Entry.star":       true,
		"icon.png":             true,
	}
	for path, want := range tests {
		if got := IsIndexable(path); got != want {
			t.Errorf("IsIndexable(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestEntry_DefineOnceConcurrently(t *testing.T) {
	t.Parallel()

	var opens, defines atomic.Int32
	e := NewEntry("foo.Entry", KindCode, countingOpen("def start(): pass", &opens))
	define := func(name string, src []byte) (CodeUnit, error) {
		defines.Add(1)
		return defineTestUnit(name, src)
	}

	const workers = 16
	units := make([]CodeUnit, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			u, err := e.Define(define)
			if err != nil {
				t.Errorf("Define() error: %v", err)
				return
			}
			units[i] = u
		}()
	}
	wg.Wait()

	if got := opens.Load(); got != 1 {
		t.Errorf("entry opened %d times, want 1", got)
	}
	if got := defines.Load(); got != 1 {
		t.Errorf("define called %d times, want 1", got)
	}
	for i, u := range units {
		if u != units[0] {
			t.Errorf("units[%d] differs from units[0]", i)
		}
	}
	if _, ok := e.Cached(); !ok {
		t.Error("Cached() = false after Define")
	}
}

func TestEntry_DefineErrorIsCached(t *testing.T) {
	t.Parallel()

	var opens atomic.Int32
	boom := errors.New("boom")
	e := NewEntry("bad", KindCode, countingOpen("x", &opens))
	define := func(string, []byte) (CodeUnit, error) { return nil, boom }

	for range 3 {
		if _, err := e.Define(define); !errors.Is(err, boom) {
			t.Fatalf("Define() error = %v, want %v", err, boom)
		}
	}
	if got := opens.Load(); got != 1 {
		t.Errorf("entry opened %d times, want 1", got)
	}
	if _, ok := e.Cached(); ok {
		t.Error("Cached() = true after failed Define")
	}
}

func TestEntry_ReadOpensFreshStream(t *testing.T) {
	t.Parallel()

	var opens atomic.Int32
	e := NewEntry("data.txt", KindResource, countingOpen("payload", &opens))
	for range 2 {
		data, err := e.Read()
		if err != nil {
			t.Fatalf("Read() error: %v", err)
		}
		if string(data) != "payload" {
			t.Errorf("Read() = %q, want %q", data, "payload")
		}
	}
	if got := opens.Load(); got != 2 {
		t.Errorf("entry opened %d times, want 2", got)
	}
}

func TestIndex_AddKeepsFirst(t *testing.T) {
	t.Parallel()

	var opens atomic.Int32
	x := NewIndex()
	first := NewEntry("a", KindResource, countingOpen("1", &opens))
	x.Add(first)
	x.Add(NewEntry("a", KindResource, countingOpen("2", &opens)))
	x.Add(NewEntry("a", KindCode, countingOpen("3", &opens)))

	got, ok := x.Resource("a")
	if !ok || got != first {
		t.Fatalf("Resource(a) = %v, %v; want first entry", got, ok)
	}
	if _, ok := x.Code("a"); !ok {
		t.Error("Code(a) missing; code and resources use separate keys")
	}

	st := x.Stats()
	if st.Code != 1 || st.Resources != 1 || st.Cached != 0 {
		t.Errorf("Stats() = %+v", st)
	}
}
