package ipc

import (
	"context"
	"fmt"
	"net"
)

// listenTCP refuses non-loopback hosts; the protocol has no authentication.
func listenTCP(addr string) (net.Listener, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	ip := net.ParseIP(host)
	if host != "localhost" && (ip == nil || !ip.IsLoopback()) {
		return nil, fmt.Errorf("%w: tcp address %q is not loopback", ErrInvalidConfig, addr)
	}
	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), NetworkTCP, addr)
	if err != nil {
		return nil, fmt.Errorf("ipc: listen %s: %w", addr, err)
	}
	return ln, nil
}
