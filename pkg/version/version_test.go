// SPDX-License-Identifier: MPL-2.0

package version

import (
	"errors"
	"testing"
)

func TestParseString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"1.2", "1.2"},
		{"0.11.0-102", "0.11.0-102"},
		{"2.04", "2.04"},
		{"3", "3"},
		{"1.x.3", "1.0.3"},
		{" 1.0 ", "1.0"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			v, err := Parse(tt.in, "")
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", tt.in, err)
			}
			if got := v.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseInvalid(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "   ", "-5"} {
		if _, err := Parse(in, ""); !errors.Is(err, ErrInvalidVersion) {
			t.Errorf("Parse(%q) error = %v, want ErrInvalidVersion", in, err)
		}
	}
}

func TestCompare(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b string
		want int
	}{
		{"1.2", "1.2", 0},
		{"1.2", "1.2.0", 0},
		{"1.2", "1.3", -1},
		{"1.10", "1.9", 1},
		{"2", "1.99.99", 1},
		{"0.11.0-102", "0.11.0-7", 0},
	}

	for _, tt := range tests {
		a := MustParse(tt.a, "")
		b := MustParse(tt.b, "")
		if got := a.Compare(b); got != tt.want {
			t.Errorf("Compare(%s, %s) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
		if got := b.Compare(a); got != -tt.want {
			t.Errorf("Compare(%s, %s) = %d, want %d", tt.b, tt.a, got, -tt.want)
		}
	}
}

func TestLabelAndBuild(t *testing.T) {
	t.Parallel()

	v := MustParse("0.11.0-102", "Grevyi Alpha")
	if v.Label != "Grevyi Alpha" {
		t.Errorf("Label = %q", v.Label)
	}
	if v.Build() != "102" {
		t.Errorf("Build() = %q, want 102", v.Build())
	}
	if !v.NewerThan(MustParse("0.10.9", "")) {
		t.Error("expected 0.11.0 to be newer than 0.10.9")
	}
}
