//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

// File: server/listen_unix.go
// Author: momentics <momentics@gmail.com>
//
// Listening socket options via golang.org/x/sys/unix.

package server

import (
	"syscall"

	"go.uber.org/multierr"
	"golang.org/x/sys/unix"
)

// socketControl sets SO_REUSEADDR, and SO_REUSEPORT when requested, before bind.
func socketControl(reusePort bool) func(network, address string, c syscall.RawConn) error {
	return func(network, address string, c syscall.RawConn) error {
		var serr error
		err := c.Control(func(fd uintptr) {
			serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
			if serr == nil && reusePort {
				serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
			}
		})
		return multierr.Append(err, serr)
	}
}
