// SPDX-License-Identifier: MPL-2.0

package dvalmod

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"dval/pkg/version"
)

type stubModule struct {
	*Base
	closeErr error
}

func (m *stubModule) Load() error {
	m.MarkLoaded()
	return nil
}

func (m *stubModule) Close(ctx context.Context) error {
	return errors.Join(m.Base.Close(ctx), m.closeErr)
}

func newStub(name, ver, author string) *stubModule {
	info := Info{Name: name, Version: version.MustParse(ver, ""), Author: author}
	return &stubModule{Base: NewBase(info, nil)}
}

func TestRegistry_DuplicateKeepsFirst(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	if err := r.Register(newStub("Foo", "1.0", "Alice")); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	err := r.Register(newStub("Foo", "2.0", "Bob"))
	if !errors.Is(err, ErrModuleExists) {
		t.Fatalf("Register() duplicate error = %v, want %v", err, ErrModuleExists)
	}

	m, ok := r.Get("Foo")
	if !ok {
		t.Fatal("Get(Foo) not found")
	}
	if got := m.Info(); got.Version.String() != "1.0" || got.Author != "Alice" {
		t.Errorf("Get(Foo) = %s by %s, want 1.0 by Alice", got.Version, got.Author)
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
}

func TestRegistry_ConcurrentRegisterSameName(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	const workers = 32
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.Register(newStub("Foo", fmt.Sprintf("1.%d", i), "")) == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Errorf("%d registrations succeeded, want 1", successes)
	}
}

func TestRegistry_RangeOrder(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	for _, name := range []string{"c", "a", "b"} {
		if err := r.Register(newStub(name, "1", "")); err != nil {
			t.Fatalf("Register(%s) error: %v", name, err)
		}
	}

	var got []string
	r.Range(func(m Module) bool {
		got = append(got, m.Info().Name)
		return m.Info().Name != "a"
	})
	if fmt.Sprint(got) != "[c a]" {
		t.Errorf("Range() visited %v, want [c a]", got)
	}
}

func TestRegistry_CloseAllContinuesPastFailures(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	bad := newStub("bad", "1", "")
	bad.closeErr = errors.New("stuck")
	good := newStub("good", "1", "")
	for _, m := range []*stubModule{bad, good} {
		if err := r.Register(m); err != nil {
			t.Fatalf("Register() error: %v", err)
		}
	}

	err := r.CloseAll(context.Background())
	if err == nil || !errors.Is(err, bad.closeErr) {
		t.Errorf("CloseAll() error = %v, want %v", err, bad.closeErr)
	}
	if good.State() != StateClosed {
		t.Errorf("good.State() = %s, want %s", good.State(), StateClosed)
	}
}
