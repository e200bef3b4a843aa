package ipc

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/danmuck/memipc/internal/protocol"
)

const (
	NetworkUnix = "unix"
	NetworkTCP  = "tcp"

	DefaultSocketPath = "/tmp/memipc.sock"
	DefaultTCPAddress = "127.0.0.1:28011"
	DefaultBacklog    = 100
	DefaultBufferSize = 1024
)

var (
	ErrInvalidConfig      = errors.New("ipc: invalid config")
	ErrUnsupportedNetwork = errors.New("ipc: unsupported network")
)

// Config defines the listening endpoint and per-connection behavior.
type Config struct {
	Network string
	Address string
	Backlog int
	// BufferSize bounds one request read. Bytes past the logical message
	// length are ignored.
	BufferSize int
	// ReadTimeout bounds each per-connection read. Zero blocks forever.
	// On timeout the connection is closed and the worker returns to accept.
	ReadTimeout time.Duration
	// CloseAfterReply closes the connection after one exchange instead of
	// waiting for further requests on it.
	CloseAfterReply bool
}

// DefaultConfig returns the platform endpoint: a filesystem socket on
// non-Windows targets, loopback TCP on Windows.
func DefaultConfig() Config {
	cfg := Config{
		Network:    NetworkUnix,
		Address:    DefaultSocketPath,
		Backlog:    DefaultBacklog,
		BufferSize: DefaultBufferSize,
	}
	if runtime.GOOS == "windows" {
		cfg.Network = NetworkTCP
		cfg.Address = DefaultTCPAddress
	}
	return cfg
}

// WithDefaults fills zero fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	c.Network = strings.ToLower(strings.TrimSpace(c.Network))
	c.Address = strings.TrimSpace(c.Address)
	if c.Network == "" {
		c.Network = def.Network
		if c.Address == "" {
			c.Address = def.Address
		}
	}
	if c.Address == "" {
		switch c.Network {
		case NetworkUnix:
			c.Address = DefaultSocketPath
		case NetworkTCP:
			c.Address = DefaultTCPAddress
		}
	}
	if c.Backlog <= 0 {
		c.Backlog = def.Backlog
	}
	if c.BufferSize <= 0 {
		c.BufferSize = def.BufferSize
	}
	return c
}

func (c Config) Validate() error {
	switch c.Network {
	case NetworkUnix, NetworkTCP:
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedNetwork, c.Network)
	}
	if c.Address == "" {
		return fmt.Errorf("%w: missing address", ErrInvalidConfig)
	}
	if c.Backlog <= 0 {
		return fmt.Errorf("%w: backlog must be positive", ErrInvalidConfig)
	}
	if c.BufferSize < protocol.RequestLen(protocol.WriteDouble) {
		return fmt.Errorf("%w: buffer_size %d smaller than largest request", ErrInvalidConfig, c.BufferSize)
	}
	if c.ReadTimeout < 0 {
		return fmt.Errorf("%w: negative read_timeout", ErrInvalidConfig)
	}
	return nil
}
