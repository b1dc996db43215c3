package server

import (
	"context"
	"net"
)

// Listen opens a TCP listener on addr with the platform socket options applied.
func Listen(ctx context.Context, addr string, reusePort bool) (net.Listener, error) {
	lc := net.ListenConfig{Control: socketControl(reusePort)}
	return lc.Listen(ctx, "tcp", addr)
}
