// SPDX-License-Identifier: MPL-2.0

package applock

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"
)

// handshake asks the listener on port whether it holds l.token. A refused
// connection is the expected "nobody there" answer and returns no error.
func (l *Lock) handshake(ctx context.Context, port int) (bool, error) {
	addr := net.JoinHostPort(l.host, strconv.Itoa(port))
	d := net.Dialer{Timeout: l.probeTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		if isConnRefused(err) {
			return false, nil
		}
		return false, fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(l.probeTimeout)); err != nil {
		return false, err
	}
	if err := writeToken(conn, l.token); err != nil {
		return false, fmt.Errorf("send token to %s: %w", addr, err)
	}

	var reply [1]byte
	if _, err := io.ReadFull(conn, reply[:]); err != nil {
		return false, fmt.Errorf("read reply from %s: %w", addr, err)
	}
	return reply[0] == replyMatch, nil
}
