// SPDX-License-Identifier: MPL-2.0

package applock

import (
	"fmt"
	"io"
)

const (
	// MaxTokenLen is the longest token the one-byte length prefix can carry.
	MaxTokenLen = 255

	replyMismatch byte = 0
	replyMatch    byte = 1
)

func writeToken(w io.Writer, token string) error {
	if len(token) > MaxTokenLen {
		return fmt.Errorf("token length %d: %w", len(token), ErrInvalidToken)
	}
	buf := make([]byte, 0, 1+len(token))
	buf = append(buf, byte(len(token)))
	buf = append(buf, token...)
	_, err := w.Write(buf)
	return err
}

func readToken(r io.Reader) (string, error) {
	var n [1]byte
	if _, err := io.ReadFull(r, n[:]); err != nil {
		return "", fmt.Errorf("read token length: %w", err)
	}
	buf := make([]byte, n[0])
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	return string(buf), nil
}
