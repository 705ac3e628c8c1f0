// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"io/fs"
	"strings"
	"testing"
)

func TestActionableError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *ActionableError
		want string
	}{
		{"operation only", &ActionableError{Operation: "load config"}, "failed to load config"},
		{"with resource", &ActionableError{Operation: "load module", Resource: "a.zip"}, "failed to load module: a.zip"},
		{
			"with cause",
			&ActionableError{Operation: "load module", Resource: "a.zip", Cause: errors.New("boom")},
			"failed to load module: a.zip: boom",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestActionableError_ErrorsIs(t *testing.T) {
	err := WrapWithContext(fs.ErrNotExist, "read config", "/etc/dval/config.cue")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Error("errors.Is() did not see through ActionableError")
	}
	var ae *ActionableError
	if !errors.As(err, &ae) || ae.Resource != "/etc/dval/config.cue" {
		t.Errorf("errors.As() = %v", ae)
	}
	if WrapWithContext(nil, "x", "y") != nil {
		t.Error("WrapWithContext(nil) != nil")
	}
}

func TestActionableError_Format(t *testing.T) {
	err := &ActionableError{
		Operation:   "acquire lock",
		Suggestions: []string{"Check lock.dir", "Run 'dval lock status'"},
		Cause: &ActionableError{
			Operation: "open marker",
			Cause:     errors.New("permission denied"),
		},
	}

	short := err.Format(false)
	for _, s := range []string{"failed to acquire lock", "• Check lock.dir", "• Run 'dval lock status'"} {
		if !strings.Contains(short, s) {
			t.Errorf("Format(false) missing %q\n%s", s, short)
		}
	}
	if strings.Contains(short, "Error chain:") {
		t.Errorf("Format(false) contains the error chain\n%s", short)
	}

	long := err.Format(true)
	for _, s := range []string{"Error chain:", "1. failed to open marker: permission denied", "2. permission denied"} {
		if !strings.Contains(long, s) {
			t.Errorf("Format(true) missing %q\n%s", s, long)
		}
	}
}

func TestErrorContext_Build(t *testing.T) {
	cause := errors.New("bad")
	ae := NewErrorContext().
		WithOperation("pack module").
		WithResource("./greeter").
		WithSuggestion("one").
		WithSuggestion("two").
		Wrap(cause).
		Build()
	if ae == nil {
		t.Fatal("Build() returned nil")
	}
	if ae.Operation != "pack module" || ae.Resource != "./greeter" || len(ae.Suggestions) != 2 || ae.Cause != cause {
		t.Errorf("Build() = %+v", ae)
	}

	if NewErrorContext().WithResource("x").Build() != nil {
		t.Error("Build() without an operation should be nil")
	}
	if err := NewErrorContext().BuildError(); err != nil {
		t.Errorf("BuildError() without an operation = %v, want nil", err)
	}
}
