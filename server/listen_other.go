//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package server

import "syscall"

// socketControl is a no-op where the unix socket options are unavailable.
func socketControl(bool) func(network, address string, c syscall.RawConn) error {
	return nil
}
