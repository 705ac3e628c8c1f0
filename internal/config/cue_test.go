// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"strings"
	"testing"
)

func TestFieldPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		sel  []string
		want string
	}{
		{nil, ""},
		{[]string{"lock"}, "lock"},
		{[]string{"lock", "enabled"}, "lock.enabled"},
		{[]string{"modules", "paths", "2"}, "modules.paths[2]"},
		{[]string{"0", "x"}, "0.x"},
	}
	for _, tt := range tests {
		if got := fieldPath(tt.sel); got != tt.want {
			t.Errorf("fieldPath(%v) = %q, want %q", tt.sel, got, tt.want)
		}
	}
}

func TestFormatError_NonCUE(t *testing.T) {
	t.Parallel()

	if formatError(nil, "c.cue") != nil {
		t.Error("formatError(nil) != nil")
	}
	err := formatError(errors.New("plain"), "c.cue")
	if err == nil || !strings.HasPrefix(err.Error(), "c.cue: ") || !strings.Contains(err.Error(), "plain") {
		t.Errorf("formatError() = %v", err)
	}
}
