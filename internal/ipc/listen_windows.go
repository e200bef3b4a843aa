//go:build windows

package ipc

import (
	"errors"
	"fmt"
	"net"
)

var ErrAddressInUse = errors.New("ipc: address in use")

// Windows has no filesystem socket fallback here; the endpoint is loopback
// TCP and the backlog is left to the OS.
func listen(cfg Config) (net.Listener, error) {
	if cfg.Network != NetworkTCP {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedNetwork, cfg.Network)
	}
	return listenTCP(cfg.Address)
}

func releaseAddress(Config) {}
