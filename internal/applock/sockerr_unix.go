// SPDX-License-Identifier: MPL-2.0

//go:build unix

package applock

import (
	"errors"

	"golang.org/x/sys/unix"
)

var (
	// errAddrInUse is the errno reported when a lock port is already bound.
	errAddrInUse error = unix.EADDRINUSE
	// errConnRefused is the errno reported when nothing listens on a port.
	errConnRefused error = unix.ECONNREFUSED
)

func isAddrInUse(err error) bool {
	return errors.Is(err, errAddrInUse)
}

func isConnRefused(err error) bool {
	return errors.Is(err, errConnRefused)
}
