// SPDX-License-Identifier: MPL-2.0

package applock

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestTokenRoundTrip(t *testing.T) {
	t.Parallel()

	for _, token := range []string{"x", "dval", "Grévy", strings.Repeat("t", MaxTokenLen)} {
		var buf bytes.Buffer
		if err := writeToken(&buf, token); err != nil {
			t.Fatalf("writeToken(%q) error: %v", token, err)
		}
		if got := int(buf.Bytes()[0]); got != len(token) {
			t.Errorf("length prefix = %d, want %d", got, len(token))
		}
		got, err := readToken(&buf)
		if err != nil {
			t.Fatalf("readToken() error: %v", err)
		}
		if got != token {
			t.Errorf("readToken() = %q, want %q", got, token)
		}
	}
}

func TestWriteToken_TooLong(t *testing.T) {
	t.Parallel()

	err := writeToken(io.Discard, strings.Repeat("t", MaxTokenLen+1))
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("writeToken() error = %v, want %v", err, ErrInvalidToken)
	}
}

func TestReadToken_Truncated(t *testing.T) {
	t.Parallel()

	if _, err := readToken(bytes.NewReader([]byte{5, 'a', 'b'})); err == nil {
		t.Error("readToken() accepted a truncated token")
	}
	if _, err := readToken(bytes.NewReader(nil)); err == nil {
		t.Error("readToken() accepted empty input")
	}
}
