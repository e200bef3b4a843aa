package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/memipc/internal/config"
)

type overrideFile struct {
	IPC struct {
		Network         string `toml:"network"`
		Address         string `toml:"address"`
		Backlog         int    `toml:"backlog"`
		BufferSize      int    `toml:"buffer_size"`
		ReadTimeout     string `toml:"read_timeout"`
		CloseAfterReply bool   `toml:"close_after_reply"`
	} `toml:"ipc"`
	Admin struct {
		Addr        string   `toml:"addr"`
		CorsOrigins []string `toml:"cors_origins"`
		Token       string   `toml:"token"`
	} `toml:"admin"`
	Machine struct {
		ByteOrder     string `toml:"byte_order"`
		StartInactive bool   `toml:"start_inactive"`
	} `toml:"machine"`
}

// loadDaemonConfig loads base (or defaults) and then applies only the keys
// that override defines.
func loadDaemonConfig(base, override string) (config.DaemonConfig, error) {
	cfg := config.Default()
	if strings.TrimSpace(base) != "" {
		loaded, err := config.LoadDaemonConfig(base)
		if err != nil {
			return config.DaemonConfig{}, err
		}
		cfg = loaded
	}
	if strings.TrimSpace(override) == "" {
		return cfg, nil
	}

	var raw overrideFile
	meta, err := toml.DecodeFile(override, &raw)
	if err != nil {
		return config.DaemonConfig{}, fmt.Errorf("load override: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return config.DaemonConfig{}, fmt.Errorf("override: unsupported key %q", undecoded[0].String())
	}

	if meta.IsDefined("ipc", "network") {
		cfg.IPC.Network = strings.TrimSpace(raw.IPC.Network)
	}
	if meta.IsDefined("ipc", "address") {
		cfg.IPC.Address = strings.TrimSpace(raw.IPC.Address)
	}
	if meta.IsDefined("ipc", "backlog") {
		cfg.IPC.Backlog = raw.IPC.Backlog
	}
	if meta.IsDefined("ipc", "buffer_size") {
		cfg.IPC.BufferSize = raw.IPC.BufferSize
	}
	if meta.IsDefined("ipc", "read_timeout") {
		cfg.IPC.ReadTimeout = strings.TrimSpace(raw.IPC.ReadTimeout)
	}
	if meta.IsDefined("ipc", "close_after_reply") {
		cfg.IPC.CloseAfterReply = raw.IPC.CloseAfterReply
	}
	if meta.IsDefined("admin", "addr") {
		cfg.Admin.Addr = strings.TrimSpace(raw.Admin.Addr)
	}
	if meta.IsDefined("admin", "cors_origins") {
		cfg.Admin.CorsOrigins = raw.Admin.CorsOrigins
	}
	if meta.IsDefined("admin", "token") {
		cfg.Admin.Token = strings.TrimSpace(raw.Admin.Token)
	}
	if meta.IsDefined("machine", "byte_order") {
		cfg.Machine.ByteOrder = strings.TrimSpace(raw.Machine.ByteOrder)
	}
	if meta.IsDefined("machine", "start_inactive") {
		cfg.Machine.StartInactive = raw.Machine.StartInactive
	}

	if err := config.ValidateDaemonConfig(cfg); err != nil {
		return config.DaemonConfig{}, fmt.Errorf("override: %w", err)
	}
	return cfg, nil
}
