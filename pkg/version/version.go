// SPDX-License-Identifier: MPL-2.0

// Package version parses and orders dotted numeric version strings such as
// "1.2", "0.11.0-102" or "2.04". Components are compared numerically; missing
// trailing components count as zero, so "1.2" and "1.2.0" are equal. An
// optional build suffix after the first '-' is carried for display only.
package version

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidVersion is the sentinel error wrapped by InvalidVersionError.
var ErrInvalidVersion = errors.New("invalid version")

type (
	// Version is an immutable parsed version with an optional human label.
	Version struct {
		// Label is the optional display name (manifest "Version-Name").
		Label string

		numbers []int
		// widths records zero-padded components ("04") so String round-trips.
		widths []int
		build  string
	}

	// InvalidVersionError is returned when a version string cannot be parsed.
	InvalidVersionError struct {
		Value string
	}
)

// Error implements the error interface for InvalidVersionError.
func (e *InvalidVersionError) Error() string {
	return fmt.Sprintf("invalid version %q: must contain at least one dot-separated component", e.Value)
}

// Unwrap returns ErrInvalidVersion for errors.Is() compatibility.
func (e *InvalidVersionError) Unwrap() error { return ErrInvalidVersion }

// Parse parses s into a Version labelled with label. Non-numeric components
// parse as zero, matching how hand-written manifests are usually treated.
func Parse(s, label string) (Version, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Version{}, &InvalidVersionError{Value: s}
	}

	core, build, _ := strings.Cut(s, "-")
	parts := strings.Split(core, ".")
	if core == "" || len(parts) == 0 {
		return Version{}, &InvalidVersionError{Value: s}
	}

	v := Version{
		Label:   label,
		numbers: make([]int, len(parts)),
		widths:  make([]int, len(parts)),
		build:   build,
	}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			continue
		}
		v.numbers[i] = n
		if len(p) > 1 && p[0] == '0' {
			v.widths[i] = len(p)
		}
	}
	return v, nil
}

// MustParse is like Parse but panics on error. Intended for constants.
func MustParse(s, label string) Version {
	v, err := Parse(s, label)
	if err != nil {
		panic(err)
	}
	return v
}

// IsZero reports whether v was never parsed.
func (v Version) IsZero() bool { return len(v.numbers) == 0 }

// Build returns the build suffix, if any.
func (v Version) Build() string { return v.build }

// Compare returns -1 if v < other, 0 if equal, +1 if v > other.
// Build suffixes and labels do not take part in ordering.
func (v Version) Compare(other Version) int {
	n := max(len(v.numbers), len(other.numbers))
	for i := range n {
		a, b := component(v.numbers, i), component(other.numbers, i)
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		}
	}
	return 0
}

// Equal reports whether v and other order equally.
func (v Version) Equal(other Version) bool { return v.Compare(other) == 0 }

// NewerThan reports whether v orders after other.
func (v Version) NewerThan(other Version) bool { return v.Compare(other) > 0 }

// String renders the version core and build suffix without the label.
func (v Version) String() string {
	if v.IsZero() {
		return ""
	}
	var sb strings.Builder
	for i, n := range v.numbers {
		if i > 0 {
			sb.WriteByte('.')
		}
		if w := v.widths[i]; w > 0 {
			fmt.Fprintf(&sb, "%0*d", w, n)
			continue
		}
		sb.WriteString(strconv.Itoa(n))
	}
	if v.build != "" {
		sb.WriteByte('-')
		sb.WriteString(v.build)
	}
	return sb.String()
}

func component(nums []int, i int) int {
	if i < len(nums) {
		return nums[i]
	}
	return 0
}
