package config

import (
	"encoding/binary"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/danmuck/memipc/internal/ipc"
	"github.com/danmuck/memipc/internal/memory"
	"github.com/pelletier/go-toml/v2"
)

// DaemonConfig is the memipcd configuration file.
type DaemonConfig struct {
	IPC     IPCConfig     `toml:"ipc"`
	Admin   AdminConfig   `toml:"admin"`
	Machine MachineConfig `toml:"machine"`
}

type IPCConfig struct {
	Network         string `toml:"network"`
	Address         string `toml:"address"`
	Backlog         int    `toml:"backlog"`
	BufferSize      int    `toml:"buffer_size"`
	ReadTimeout     string `toml:"read_timeout"`
	CloseAfterReply bool   `toml:"close_after_reply"`
}

type AdminConfig struct {
	Addr        string   `toml:"addr"`
	CorsOrigins []string `toml:"cors_origins"`
	// Token, when set, is required as a bearer token on POST routes.
	Token string `toml:"token"`
}

type MachineConfig struct {
	ByteOrder     string         `toml:"byte_order"`
	StartInactive bool           `toml:"start_inactive"`
	Regions       []RegionConfig `toml:"regions"`
}

type RegionConfig struct {
	Name     string `toml:"name"`
	Base     uint32 `toml:"base"`
	Size     uint32 `toml:"size"`
	ReadOnly bool   `toml:"read_only"`
	Image    string `toml:"image"`
}

// Default returns a single 32 MiB RAM region served on the platform endpoint.
func Default() DaemonConfig {
	def := ipc.DefaultConfig()
	return DaemonConfig{
		IPC: IPCConfig{
			Network:    def.Network,
			Address:    def.Address,
			Backlog:    def.Backlog,
			BufferSize: def.BufferSize,
		},
		Machine: MachineConfig{
			ByteOrder: "little",
			Regions: []RegionConfig{
				{Name: "ram", Base: 0x00000000, Size: 0x02000000},
			},
		},
	}
}

func LoadDaemonConfig(path string) (DaemonConfig, error) {
	cfg := Default()
	cfg.Machine.Regions = nil
	if err := loadToml(path, &cfg); err != nil {
		return DaemonConfig{}, err
	}
	if len(cfg.Machine.Regions) == 0 {
		cfg.Machine.Regions = Default().Machine.Regions
	}
	if err := ValidateDaemonConfig(cfg); err != nil {
		return DaemonConfig{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateDaemonConfig(cfg DaemonConfig) error {
	ipcCfg, err := cfg.IPC.ToIPC()
	if err != nil {
		return err
	}
	if err := ipcCfg.Validate(); err != nil {
		return fmt.Errorf("ipc config invalid: %w", err)
	}
	if _, err := parseByteOrder(cfg.Machine.ByteOrder); err != nil {
		return err
	}
	if len(cfg.Machine.Regions) == 0 {
		return fmt.Errorf("machine config has no regions")
	}
	for i, r := range cfg.Machine.Regions {
		if strings.TrimSpace(r.Name) == "" {
			return fmt.Errorf("region[%d] invalid: name is required", i)
		}
		if r.Size == 0 {
			return fmt.Errorf("region[%d] invalid: size is required", i)
		}
	}
	return nil
}

// ToIPC converts the file section to a server config with defaults applied.
func (c IPCConfig) ToIPC() (ipc.Config, error) {
	out := ipc.Config{
		Network:         c.Network,
		Address:         c.Address,
		Backlog:         c.Backlog,
		BufferSize:      c.BufferSize,
		CloseAfterReply: c.CloseAfterReply,
	}
	if raw := strings.TrimSpace(c.ReadTimeout); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return ipc.Config{}, fmt.Errorf("parse read_timeout: %w", err)
		}
		out.ReadTimeout = d
	}
	return out.WithDefaults(), nil
}

// Build maps every region, seeds images and loads the machine unless
// StartInactive is set.
func (c MachineConfig) Build() (*memory.Machine, error) {
	order, err := parseByteOrder(c.ByteOrder)
	if err != nil {
		return nil, err
	}
	m := memory.NewMachine(order)
	for _, r := range c.Regions {
		region := memory.Region{Name: r.Name, Base: r.Base, Size: r.Size, ReadOnly: r.ReadOnly}
		if err := m.Map(region); err != nil {
			return nil, err
		}
		if r.Image == "" {
			continue
		}
		data, err := os.ReadFile(r.Image)
		if err != nil {
			return nil, fmt.Errorf("region %q image: %w", r.Name, err)
		}
		if uint64(len(data)) > uint64(r.Size) {
			return nil, fmt.Errorf("region %q image is %d bytes, region is %d", r.Name, len(data), r.Size)
		}
		if err := m.LoadImage(r.Base, data); err != nil {
			return nil, err
		}
	}
	if !c.StartInactive {
		m.Load()
	}
	return m, nil
}

func parseByteOrder(raw string) (binary.ByteOrder, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "little", "le", "little-endian":
		return binary.LittleEndian, nil
	case "big", "be", "big-endian":
		return binary.BigEndian, nil
	}
	return nil, fmt.Errorf("machine config: unknown byte_order %q", raw)
}
