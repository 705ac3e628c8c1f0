// SPDX-License-Identifier: MPL-2.0

//go:build windows

package applock

import (
	"errors"

	"golang.org/x/sys/windows"
)

var (
	// errAddrInUse is the Winsock error reported when a lock port is already bound.
	errAddrInUse error = windows.WSAEADDRINUSE
	// errConnRefused is the Winsock error reported when nothing listens on a port.
	errConnRefused error = windows.WSAECONNREFUSED
)

func isAddrInUse(err error) bool {
	return errors.Is(err, errAddrInUse)
}

func isConnRefused(err error) bool {
	return errors.Is(err, errConnRefused)
}
