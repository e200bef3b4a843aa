//go:build !windows

package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/memipc/internal/client"
	"github.com/danmuck/memipc/internal/dispatch"
	"github.com/danmuck/memipc/internal/ipc"
	"github.com/danmuck/memipc/internal/memory"
	"github.com/danmuck/memipc/internal/protocol"
	"github.com/danmuck/memipc/internal/testutil/testlog"
)

func TestParseCommand(t *testing.T) {
	testlog.Start(t)

	cmd, err := parseCommand([]string{"read32", "0x100"})
	if err != nil {
		t.Fatalf("parse read32: %v", err)
	}
	if cmd.op != protocol.ReadWord || cmd.address != 0x100 {
		t.Fatalf("unexpected command: %+v", cmd)
	}

	cmd, err = parseCommand([]string{"WRITE16", "16", "0xBEEF"})
	if err != nil {
		t.Fatalf("parse write16: %v", err)
	}
	if cmd.op != protocol.WriteHalf || cmd.address != 16 || cmd.value != 0xBEEF {
		t.Fatalf("unexpected command: %+v", cmd)
	}
}

func TestParseCommandErrors(t *testing.T) {
	testlog.Start(t)

	cases := map[string][]string{
		"missing":      {"read8"},
		"unknown op":   {"peek", "0"},
		"bad address":  {"read8", "zz"},
		"wide address": {"read8", "0x100000000"},
		"read value":   {"read8", "0", "1"},
		"write value":  {"write8", "0"},
		"overflow":     {"write8", "0", "0x100"},
	}
	for name, args := range cases {
		if _, err := parseCommand(args); err == nil {
			t.Fatalf("%s: expected error for %v", name, args)
		}
	}
	if _, err := parseCommand([]string{"peek", "0"}); !errors.Is(err, protocol.ErrUnknownOpcode) {
		t.Fatalf("expected ErrUnknownOpcode, got %v", err)
	}
}

func startServer(t *testing.T) string {
	t.Helper()
	m := memory.NewMachine(nil)
	if err := m.Map(memory.Region{Name: "ram", Base: 0, Size: 0x1000}); err != nil {
		t.Fatalf("map: %v", err)
	}
	m.Load()

	cfg := ipc.DefaultConfig()
	cfg.Network = ipc.NetworkUnix
	cfg.Address = filepath.Join(t.TempDir(), "memipc.sock")
	srv, err := ipc.NewServer(cfg, dispatch.New(m))
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	if err := srv.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { _ = srv.Stop() })
	return cfg.Address
}

func TestREPLSession(t *testing.T) {
	testlog.Start(t)
	path := startServer(t)

	c, err := client.Dial(context.Background(), ipc.NetworkUnix, path)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	input := strings.Join([]string{
		"write32 0x10 0xdeadbeef",
		"",
		"read32 0x10",
		"read8 0x10",
		"read8 0x2000",
		"bogus 1",
		"quit",
		"read8 0",
	}, "\n")
	var out bytes.Buffer
	editor := newScannerEditor(strings.NewReader(input), nil)
	if err := repl(context.Background(), c, editor, &out, time.Second); err != nil {
		t.Fatalf("repl: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 5 {
		t.Fatalf("unexpected output lines: %q", lines)
	}
	if lines[0] != "ok" || lines[1] != "0xdeadbeef" || lines[2] != "0xef" {
		t.Fatalf("unexpected output: %q", lines)
	}
	if !strings.HasPrefix(lines[3], "error:") || !strings.HasPrefix(lines[4], "error:") {
		t.Fatalf("expected error lines, got %q", lines[3:])
	}
}
