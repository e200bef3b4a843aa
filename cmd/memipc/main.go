package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/danmuck/memipc/internal/client"
	"github.com/danmuck/memipc/internal/ipc"
	"github.com/danmuck/memipc/internal/logging"
	"github.com/danmuck/memipc/internal/protocol"
)

var errUsage = errors.New("usage: <op> <address> [value]")

// command is one parsed request line.
type command struct {
	op      protocol.Opcode
	address uint32
	value   uint64
}

func main() {
	def := ipc.DefaultConfig()
	network := flag.String("network", def.Network, "server network: unix|tcp")
	addr := flag.String("addr", def.Address, "server socket path or host:port")
	timeout := flag.Duration("timeout", 5*time.Second, "per-request timeout")
	flag.Parse()

	logging.ConfigureRuntime()

	ctx := context.Background()
	c, err := client.Dial(ctx, *network, *addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "memipc: %v\n", err)
		os.Exit(1)
	}
	defer c.Close()

	if flag.NArg() == 0 {
		editor := newLineEditor()
		defer editor.Close()
		if err := repl(ctx, c, editor, os.Stdout, *timeout); err != nil {
			fmt.Fprintf(os.Stderr, "memipc: %v\n", err)
			os.Exit(1)
		}
		return
	}

	cmd, err := parseCommand(flag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "memipc: %v\n", err)
		os.Exit(2)
	}
	if err := run(ctx, c, cmd, os.Stdout, *timeout); err != nil {
		fmt.Fprintf(os.Stderr, "memipc: %v\n", err)
		os.Exit(1)
	}
}

func parseCommand(args []string) (command, error) {
	if len(args) < 2 {
		return command{}, errUsage
	}
	op, err := protocol.ParseOpcode(args[0])
	if err != nil {
		return command{}, err
	}
	address, err := strconv.ParseUint(args[1], 0, 32)
	if err != nil {
		return command{}, fmt.Errorf("address %q: %w", args[1], err)
	}
	cmd := command{op: op, address: uint32(address)}

	switch {
	case op.IsRead():
		if len(args) != 2 {
			return command{}, fmt.Errorf("%s takes no value", op)
		}
	case op.IsWrite():
		if len(args) != 3 {
			return command{}, fmt.Errorf("%s requires a value", op)
		}
		value, err := strconv.ParseUint(args[2], 0, op.Width()*8)
		if err != nil {
			return command{}, fmt.Errorf("value %q: %w", args[2], err)
		}
		cmd.value = value
	}
	return cmd, nil
}

func run(ctx context.Context, c *client.Client, cmd command, out io.Writer, timeout time.Duration) error {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	value, err := c.Do(reqCtx, cmd.op, cmd.address, cmd.value)
	if err != nil {
		return err
	}
	if cmd.op.IsRead() {
		fmt.Fprintf(out, "0x%0*x\n", cmd.op.Width()*2, value)
		return nil
	}
	fmt.Fprintln(out, "ok")
	return nil
}

// repl reads commands until EOF or "quit". Request failures are printed and
// the loop continues; only connection-level errors end it.
func repl(ctx context.Context, c *client.Client, editor lineReader, out io.Writer, timeout time.Duration) error {
	for {
		line, err := editor.ReadLine("memipc> ")
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "quit", "exit":
			return nil
		case "help":
			fmt.Fprintln(out, "ops: read8 read16 read32 read64 write8 write16 write32 write64")
			fmt.Fprintln(out, "usage: <op> <address> [value]; numbers accept 0x prefixes")
			continue
		}

		cmd, err := parseCommand(fields)
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		err = run(ctx, c, cmd, out, timeout)
		switch {
		case err == nil:
		case errors.Is(err, protocol.ErrFailStatus):
			fmt.Fprintf(out, "error: %v\n", err)
		default:
			return err
		}
	}
}
