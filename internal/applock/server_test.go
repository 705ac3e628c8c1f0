// SPDX-License-Identifier: MPL-2.0

package applock

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"testing"
	"time"
)

// exchange sends raw bytes to the lock server on port, half-closes the
// connection and returns the single reply byte.
func exchange(t *testing.T, port int, payload []byte) byte {
	t.Helper()
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(DefaultHost, strconv.Itoa(port)), time.Second)
	if err != nil {
		t.Fatalf("Dial() error: %v", err)
	}
	defer conn.Close()
	if err := conn.SetDeadline(time.Now().Add(5 * time.Second)); err != nil {
		t.Fatalf("SetDeadline() error: %v", err)
	}

	if _, err := conn.Write(payload); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	if err := conn.(*net.TCPConn).CloseWrite(); err != nil {
		t.Fatalf("CloseWrite() error: %v", err)
	}

	var reply [1]byte
	if _, err := io.ReadFull(conn, reply[:]); err != nil {
		t.Fatalf("read reply: %v", err)
	}
	return reply[0]
}

func TestServer_Replies(t *testing.T) {
	t.Parallel()

	l := newTestLock(t, "dval-test", t.TempDir())
	if out, err := l.Acquire(context.Background()); out != OutcomeServer {
		t.Fatalf("Acquire() = %s, %v", out, err)
	}

	tests := []struct {
		name    string
		payload []byte
		want    byte
	}{
		{name: "matching token", payload: append([]byte{9}, "dval-test"...), want: replyMatch},
		{name: "other token", payload: append([]byte{9}, "dval-prod"...), want: replyMismatch},
		{name: "prefix of token", payload: append([]byte{4}, "dval"...), want: replyMismatch},
		{name: "truncated token", payload: append([]byte{9}, "dval"...), want: replyMismatch},
		{name: "length only", payload: []byte{9}, want: replyMismatch},
		{name: "empty", payload: nil, want: replyMismatch},
	}

	// The server answers one connection at a time, so the cases run in order.
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exchange(t, l.Port(), tt.payload); got != tt.want {
				t.Errorf("reply = %#x, want %#x", got, tt.want)
			}
		})
	}

	if running, err := l.handshake(context.Background(), l.Port()); err != nil || !running {
		t.Errorf("handshake() after bad peers = %v, %v; want server still answering", running, err)
	}
}

func TestHandshake_RefusedIsNotAnError(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", net.JoinHostPort(DefaultHost, "0"))
	if err != nil {
		t.Fatalf("Listen() error: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()

	l := newTestLock(t, "dval-test", t.TempDir())
	running, err := l.handshake(context.Background(), port)
	if running || err != nil {
		t.Errorf("handshake() on closed port = %v, %v; want false, nil", running, err)
	}
}

func TestSocketErrorClassification(t *testing.T) {
	t.Parallel()

	wrap := func(op string, errno error) error {
		return fmt.Errorf("dial: %w", &net.OpError{Op: op, Net: "tcp", Err: os.NewSyscallError(op, errno)})
	}

	if !isConnRefused(wrap("connect", errConnRefused)) {
		t.Error("isConnRefused() = false for a wrapped refusal")
	}
	if isConnRefused(wrap("bind", errAddrInUse)) {
		t.Error("isConnRefused() = true for a bind conflict")
	}
	if !isAddrInUse(wrap("bind", errAddrInUse)) {
		t.Error("isAddrInUse() = false for a wrapped bind conflict")
	}
	if isAddrInUse(wrap("connect", errConnRefused)) {
		t.Error("isAddrInUse() = true for a refusal")
	}
}
