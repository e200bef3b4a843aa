package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "daemon", "memipcd":
		return daemonTemplate, nil
	case "ps2":
		return ps2Template, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const daemonTemplate = `[ipc]
network = "unix"
address = "/tmp/memipc.sock"
backlog = 100
buffer_size = 1024
read_timeout = ""
close_after_reply = false

[admin]
addr = "127.0.0.1:9310"
token = ""
cors_origins = ["http://localhost:3000"]

[machine]
byte_order = "little"
start_inactive = false

[[machine.regions]]
name = "ram"
base = 0x00000000
size = 0x02000000
`

const ps2Template = `[ipc]
network = "unix"
address = "/tmp/pcsx2.sock"
backlog = 100
buffer_size = 1024
read_timeout = "30s"
close_after_reply = false

[admin]
addr = ""
token = ""

[machine]
byte_order = "little"
start_inactive = true

[[machine.regions]]
name = "ee_ram"
base = 0x00000000
size = 0x02000000

[[machine.regions]]
name = "iop_ram"
base = 0x1C000000
size = 0x00200000

[[machine.regions]]
name = "bios"
base = 0x1FC00000
size = 0x00400000
read_only = true

[[machine.regions]]
name = "scratchpad"
base = 0x70000000
size = 0x00004000
`
