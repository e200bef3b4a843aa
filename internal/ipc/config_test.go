package ipc

import (
	"errors"
	"runtime"
	"testing"
)

func TestDefaultConfigMatchesPlatform(t *testing.T) {
	cfg := DefaultConfig()
	if runtime.GOOS == "windows" {
		if cfg.Network != NetworkTCP || cfg.Address != DefaultTCPAddress {
			t.Fatalf("unexpected windows default: %+v", cfg)
		}
	} else if cfg.Network != NetworkUnix || cfg.Address != DefaultSocketPath {
		t.Fatalf("unexpected default: %+v", cfg)
	}
	if cfg.Backlog != 100 || cfg.BufferSize != 1024 {
		t.Fatalf("unexpected sizes: %+v", cfg)
	}
	if cfg.ReadTimeout != 0 || cfg.CloseAfterReply {
		t.Fatalf("default must block and keep connections open: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestConfigWithDefaults(t *testing.T) {
	cfg := Config{Network: " TCP "}.WithDefaults()
	if cfg.Network != NetworkTCP || cfg.Address != DefaultTCPAddress {
		t.Fatalf("unexpected tcp defaults: %+v", cfg)
	}
	cfg = Config{Network: NetworkUnix, Address: "/run/x.sock", Backlog: 5}.WithDefaults()
	if cfg.Address != "/run/x.sock" || cfg.Backlog != 5 || cfg.BufferSize != DefaultBufferSize {
		t.Fatalf("unexpected merged config: %+v", cfg)
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		cfg  Config
		want error
	}{
		{Config{Network: "udp", Address: "x", Backlog: 1, BufferSize: 1024}, ErrUnsupportedNetwork},
		{Config{Network: NetworkUnix, Backlog: 1, BufferSize: 1024}, ErrInvalidConfig},
		{Config{Network: NetworkUnix, Address: "x", BufferSize: 1024}, ErrInvalidConfig},
		{Config{Network: NetworkUnix, Address: "x", Backlog: 1, BufferSize: 12}, ErrInvalidConfig},
		{Config{Network: NetworkUnix, Address: "x", Backlog: 1, BufferSize: 1024, ReadTimeout: -1}, ErrInvalidConfig},
	}
	for i, tc := range cases {
		if err := tc.cfg.Validate(); !errors.Is(err, tc.want) {
			t.Fatalf("case %d: got=%v want=%v", i, err, tc.want)
		}
	}
}
