// Package daemon runs the memipcd process lifecycle: machine, IPC socket and
// optional admin HTTP.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/danmuck/memipc/internal/admin"
	"github.com/danmuck/memipc/internal/auth"
	"github.com/danmuck/memipc/internal/config"
	"github.com/danmuck/memipc/internal/dispatch"
	"github.com/danmuck/memipc/internal/ipc"
	"github.com/danmuck/memipc/internal/memory"
	"github.com/danmuck/memipc/internal/observability"
	"github.com/rs/zerolog/log"
)

var ErrWorkerExited = errors.New("daemon: ipc worker exited")

const serviceID = "memipcd"

// Service wires one machine to one IPC server.
type Service struct {
	cfg     config.DaemonConfig
	machine *memory.Machine
	server  *ipc.Server
	admin   *admin.Admin
}

func NewService(cfg config.DaemonConfig) (*Service, error) {
	if err := config.ValidateDaemonConfig(cfg); err != nil {
		return nil, err
	}
	machine, err := cfg.Machine.Build()
	if err != nil {
		return nil, fmt.Errorf("daemon: build machine: %w", err)
	}
	ipcCfg, err := cfg.IPC.ToIPC()
	if err != nil {
		return nil, err
	}
	disp := dispatch.New(machine, dispatch.WithObserver(observability.ObserveDispatch))
	server, err := ipc.NewServer(ipcCfg, disp)
	if err != nil {
		return nil, err
	}
	s := &Service{cfg: cfg, machine: machine, server: server}
	if addr := strings.TrimSpace(cfg.Admin.Addr); addr != "" {
		// admin reads skip the observer so socket metrics count socket traffic only
		s.admin = admin.Appear(serviceID, addr, cfg.Admin.CorsOrigins, server, machine, dispatch.New(machine))
		if token := strings.TrimSpace(cfg.Admin.Token); token != "" {
			s.admin.RequireToken(auth.StaticToken{Token: token})
		}
	}
	return s, nil
}

func (s *Service) Machine() *memory.Machine {
	return s.machine
}

func (s *Service) Server() *ipc.Server {
	return s.server
}

// Run blocks until SIGINT/SIGTERM.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.Serve(ctx)
}

// Serve starts the IPC server and blocks until ctx ends, the accept worker
// exits, or the admin server fails. The IPC server is stopped on return.
func (s *Service) Serve(ctx context.Context) error {
	if err := s.server.Start(); err != nil {
		return err
	}
	defer s.server.Stop()

	adminErr := make(chan error, 1)
	adminCtx, cancelAdmin := context.WithCancel(ctx)
	if s.admin != nil {
		go func() {
			adminErr <- s.admin.Serve(adminCtx)
		}()
	}
	// stopAdmin cancels the admin server and waits for its graceful shutdown.
	stopAdmin := func() error {
		cancelAdmin()
		if s.admin == nil {
			return nil
		}
		return <-adminErr
	}

	regions := s.machine.Regions()
	log.Info().
		Str("service", serviceID).
		Int("regions", len(regions)).
		Bool("machine_active", s.machine.Active()).
		Bool("admin", s.admin != nil).
		Msg("daemon ready")

	select {
	case <-ctx.Done():
		log.Info().Msg("daemon shutdown")
		if err := stopAdmin(); err != nil {
			return fmt.Errorf("daemon: admin: %w", err)
		}
		return nil
	case <-s.server.Done():
		_ = stopAdmin()
		err := s.server.Err()
		if err == nil {
			return ErrWorkerExited
		}
		return fmt.Errorf("%w: %w", ErrWorkerExited, err)
	case err := <-adminErr:
		cancelAdmin()
		if err != nil {
			return fmt.Errorf("daemon: admin: %w", err)
		}
		return nil
	}
}
