//go:build !windows

package ipc

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

var ErrAddressInUse = errors.New("ipc: address in use")

func listen(cfg Config) (net.Listener, error) {
	switch cfg.Network {
	case NetworkUnix:
		return listenUnix(cfg.Address, cfg.Backlog)
	case NetworkTCP:
		return listenTCP(cfg.Address)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedNetwork, cfg.Network)
}

// listenUnix binds a filesystem socket with an explicit listen backlog. A
// stale socket file left by a crashed process is removed; a live one is not.
func listenUnix(path string, backlog int) (net.Listener, error) {
	if err := clearStaleSocket(path); err != nil {
		return nil, err
	}

	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, fmt.Errorf("ipc: socket: %w", err)
	}
	unix.CloseOnExec(fd)

	if err := unix.Bind(fd, &unix.SockaddrUnix{Name: path}); err != nil {
		_ = unix.Close(fd)
		if errors.Is(err, unix.EADDRINUSE) {
			return nil, fmt.Errorf("%w: %s", ErrAddressInUse, path)
		}
		return nil, fmt.Errorf("ipc: bind %s: %w", path, err)
	}
	if err := unix.Listen(fd, backlog); err != nil {
		_ = unix.Close(fd)
		_ = os.Remove(path)
		return nil, fmt.Errorf("ipc: listen %s: %w", path, err)
	}

	f := os.NewFile(uintptr(fd), path)
	defer f.Close()
	ln, err := net.FileListener(f)
	if err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("ipc: file listener %s: %w", path, err)
	}
	return ln, nil
}

func clearStaleSocket(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("ipc: stat %s: %w", path, err)
	}
	if info.Mode()&os.ModeSocket == 0 {
		return fmt.Errorf("%w: %s exists and is not a socket", ErrAddressInUse, path)
	}
	conn, err := net.DialTimeout(NetworkUnix, path, 100*time.Millisecond)
	if err == nil {
		_ = conn.Close()
		return fmt.Errorf("%w: %s has a live listener", ErrAddressInUse, path)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ipc: remove stale socket %s: %w", path, err)
	}
	return nil
}

func releaseAddress(cfg Config) {
	if cfg.Network == NetworkUnix {
		_ = os.Remove(cfg.Address)
	}
}
