package ipc

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/danmuck/memipc/internal/observability"
	"github.com/rs/zerolog/log"
)

var (
	ErrNilHandler = errors.New("ipc: nil handler")
)

// Handler turns one request buffer into one reply.
type Handler interface {
	Dispatch(request []byte) []byte
}

// State is the server lifecycle state.
type State int

const (
	StateStopped State = iota
	StateStarted
)

func (s State) String() string {
	if s == StateStarted {
		return "started"
	}
	return "stopped"
}

type worker struct {
	done chan struct{}
	err  error
}

// Server owns the listening socket, lifecycle state and accept worker.
// Start and Stop are serialized internally.
type Server struct {
	cfg     Config
	handler Handler
	listen  func(Config) (net.Listener, error)

	mu     sync.Mutex
	state  State
	ln     net.Listener
	worker *worker
}

type Option func(*Server)

// WithListenFunc replaces the platform listener. Start calls fn once per
// Stopped to Started transition.
func WithListenFunc(fn func(Config) (net.Listener, error)) Option {
	return func(s *Server) {
		if fn != nil {
			s.listen = fn
		}
	}
}

func NewServer(cfg Config, handler Handler, opts ...Option) (*Server, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Server{
		cfg:     cfg,
		handler: handler,
		listen:  listen,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Server) Config() Config {
	return s.cfg
}

// Start binds the endpoint and launches the accept worker. It returns once
// the socket is listening. Calling Start while started is a no-op.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateStarted {
		return nil
	}

	ln, err := s.listen(s.cfg)
	if err != nil {
		log.Error().Str("network", s.cfg.Network).Str("addr", s.cfg.Address).Err(err).Msg("ipc start failed")
		return fmt.Errorf("ipc: start: %w", err)
	}
	observability.RegisterMetrics()

	w := &worker{done: make(chan struct{})}
	s.ln = ln
	s.worker = w
	s.state = StateStarted
	go s.acceptLoop(ln, w)

	log.Info().
		Str("network", s.cfg.Network).
		Str("addr", ln.Addr().String()).
		Int("backlog", s.cfg.Backlog).
		Bool("close_after_reply", s.cfg.CloseAfterReply).
		Dur("read_timeout", s.cfg.ReadTimeout).
		Msg("ipc listening")
	return nil
}

// Stop closes the listening socket and releases its address. Calling Stop
// while stopped is a no-op. Stop does not wait for the worker; see Done.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateStopped {
		return nil
	}
	err := s.ln.Close()
	releaseAddress(s.cfg)
	s.ln = nil
	s.state = StateStopped
	log.Info().Str("addr", s.cfg.Address).Msg("ipc stopped")
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("ipc: stop: %w", err)
	}
	return nil
}

func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Addr returns the bound address, or nil while stopped.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Done is closed when the most recently started worker exits. It returns
// nil if the server was never started.
func (s *Server) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.worker == nil {
		return nil
	}
	return s.worker.done
}

// Err reports why the most recent worker exited: nil while it runs or
// after a clean Stop.
func (s *Server) Err() error {
	s.mu.Lock()
	w := s.worker
	s.mu.Unlock()
	if w == nil {
		return nil
	}
	select {
	case <-w.done:
		return w.err
	default:
		return nil
	}
}

func (s *Server) acceptLoop(ln net.Listener, w *worker) {
	defer close(w.done)
	buf := make([]byte, s.cfg.BufferSize)
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				observability.RecordIPCWorkerExit("closed")
				log.Debug().Msg("ipc accept loop exit: listener closed")
				return
			}
			w.err = fmt.Errorf("ipc: accept: %w", err)
			s.workerFailed("accept", w.err)
			return
		}
		if err := s.serveConn(conn, buf); err != nil {
			w.err = err
			s.workerFailed("conn", err)
			return
		}
	}
}

// serveConn runs the read, dispatch, write loop on one connection. A nil
// return sends the worker back to accept; an error terminates it.
func (s *Server) serveConn(conn net.Conn, buf []byte) error {
	defer conn.Close()
	observability.RecordIPCConnection()
	observability.SetIPCConnectionActive(true)
	defer observability.SetIPCConnectionActive(false)
	log.Debug().Str("remote", remoteName(conn)).Msg("ipc client connected")

	for {
		clear(buf)
		if s.cfg.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		}
		n, err := conn.Read(buf)
		if n > 0 {
			reply := s.handler.Dispatch(buf)
			if _, werr := conn.Write(reply); werr != nil {
				return fmt.Errorf("ipc: write: %w", werr)
			}
			if s.cfg.CloseAfterReply {
				return nil
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				log.Debug().Str("remote", remoteName(conn)).Msg("ipc client disconnected")
				return nil
			}
			if errors.Is(err, os.ErrDeadlineExceeded) {
				log.Debug().Str("remote", remoteName(conn)).Dur("read_timeout", s.cfg.ReadTimeout).Msg("ipc client idle, closing")
				return nil
			}
			return fmt.Errorf("ipc: read: %w", err)
		}
	}
}

func (s *Server) workerFailed(stage string, err error) {
	observability.RecordIPCWorkerExit(stage)
	log.Error().Str("stage", stage).Err(err).Msg("ipc accept loop terminated")
}

func remoteName(conn net.Conn) string {
	if addr := conn.RemoteAddr(); addr != nil && addr.String() != "" {
		return addr.String()
	}
	return "local"
}
