// SPDX-License-Identifier: MPL-2.0

package applock

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

// bind listens on preferred (0 for an ephemeral port). A port conflict is
// retried on a fresh ephemeral port until maxBind attempts are used up; any
// other listen error ends the attempt immediately.
func (l *Lock) bind(preferred int) (net.Listener, int, error) {
	port := preferred
	var lastErr error
	for attempt := 1; attempt <= l.maxBind; attempt++ {
		ln, err := l.listen("tcp", net.JoinHostPort(l.host, strconv.Itoa(port)))
		if err == nil {
			bound := port
			if addr, ok := ln.Addr().(*net.TCPAddr); ok {
				bound = addr.Port
			}
			return ln, bound, nil
		}
		if !isAddrInUse(err) {
			return nil, 0, fmt.Errorf("listen: %w", err)
		}
		l.logger.Debug("lock port in use", "port", port, "attempt", attempt)
		lastErr = err
		port = 0
	}
	return nil, 0, fmt.Errorf("%w after %d attempts: %w", ErrBindExhausted, l.maxBind, lastErr)
}

// serve answers handshakes one connection at a time until ln is closed.
func (l *Lock) serve(ln net.Listener, done chan<- struct{}) {
	defer close(done)
	for {
		conn, err := ln.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				l.logger.Error("lock accept failed, no longer answering", "err", err)
			}
			return
		}
		l.answer(conn)
	}
}

func (l *Lock) answer(conn net.Conn) {
	defer conn.Close()

	if addr, ok := conn.RemoteAddr().(*net.TCPAddr); !ok || !addr.IP.IsLoopback() {
		l.logger.Warn("lock rejected non-loopback peer", "peer", conn.RemoteAddr())
		return
	}
	_ = conn.SetDeadline(time.Now().Add(l.probeTimeout))

	reply := replyMismatch
	token, err := readToken(conn)
	switch {
	case err != nil:
		l.logger.Debug("lock handshake unreadable", "peer", conn.RemoteAddr(), "err", err)
	case token == l.token:
		reply = replyMatch
	}
	if _, err := conn.Write([]byte{reply}); err != nil {
		l.logger.Debug("lock reply failed", "peer", conn.RemoteAddr(), "err", err)
	}
}
