package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/danmuck/memipc/internal/daemon"
	"github.com/danmuck/memipc/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "daemon config (TOML); empty uses built-in defaults")
	overridePath := flag.String("override", "", "TOML file whose defined keys override -config (regions cannot be overridden)")
	flag.Parse()

	logging.ConfigureRuntime()

	cfg, err := loadDaemonConfig(*configPath, *overridePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "memipcd: %v\n", err)
		os.Exit(1)
	}
	svc, err := daemon.NewService(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "memipcd: %v\n", err)
		os.Exit(1)
	}
	if err := svc.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "memipcd: %v\n", err)
		os.Exit(1)
	}
}
