// Package admin serves the HTTP status surface next to the IPC socket.
package admin

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/danmuck/memipc/internal/auth"
	"github.com/danmuck/memipc/internal/ipc"
	"github.com/danmuck/memipc/internal/memory"
	"github.com/danmuck/memipc/internal/observability"
	"github.com/danmuck/memipc/internal/protocol"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const (
	version = "0.1.0"
	maxDump = 4096
)

var (
	ErrInvalidAddress = errors.New("admin: invalid address")
	ErrInvalidWidth   = errors.New("admin: invalid width")
	ErrInvalidLength  = errors.New("admin: invalid length")
)

// IPCStatus is the read-only view of the IPC server.
type IPCStatus interface {
	State() ipc.State
	Addr() net.Addr
}

// Machine is the backing store view the admin surface reports and toggles.
type Machine interface {
	Active() bool
	Load()
	Unload()
	Regions() []memory.Region
	ByteOrderName() string
	Snapshot(address uint32, n int) ([]byte, error)
}

type Admin struct {
	ID       string    `json:"id"`
	Addr     string    `json:"addr"`
	Appeared time.Time `json:"appeared"`

	ipc     IPCStatus
	machine Machine
	handler ipc.Handler
	router  *gin.Engine

	validator auth.Validator
}

// Appear builds the admin router. Reads issued through /memory go through
// handler, the same dispatcher the IPC socket uses.
func Appear(id, addr string, corsOrigins []string, srv IPCStatus, machine Machine, handler ipc.Handler) *Admin {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.AccessLog(log.Logger))
	r.Use(observability.AccessMetrics())
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(corsOrigins),
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	a := &Admin{
		ID:       id,
		Addr:     addr,
		Appeared: time.Now(),
		ipc:      srv,
		machine:  machine,
		handler:  handler,
		router:   r,
	}
	a.RegisterRoutes()
	return a
}

// RequireToken guards the mutating routes with v. A nil validator leaves
// them open.
func (a *Admin) RequireToken(v auth.Validator) {
	a.validator = v
}

func (a *Admin) HTTPRouter() *gin.Engine {
	return a.router
}

func (a *Admin) RegisterRoutes() {
	a.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(a.Appeared).String(),
			"service": a.ID,
			"version": version,
		})
	})

	a.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	a.router.GET("/ready", func(c *gin.Context) {
		ready := a.ipc.State() == ipc.StateStarted
		status := http.StatusOK
		if !ready {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"ready":   ready,
			"uptime":  time.Since(a.Appeared).String(),
			"service": a.ID,
			"version": version,
		})
	})

	a.router.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, a.Status())
	})

	a.router.GET("/memory/:addr", func(c *gin.Context) {
		address, err := parseAddress(c.Param("addr"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		width, err := parseWidth(c.DefaultQuery("width", "4"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		observability.TagMemoryAccess(c, address, width)
		value, err := a.Read(width, address)
		if err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"address": fmt.Sprintf("0x%08x", address),
			"width":   width,
			"value":   value,
			"hex":     fmt.Sprintf("0x%0*x", width*2, value),
		})
	})

	// raw bytes bypass the dispatcher; the machine must still be active
	a.router.GET("/dump/:addr", func(c *gin.Context) {
		address, err := parseAddress(c.Param("addr"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		n, err := parseLength(c.DefaultQuery("len", "64"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		observability.TagMemoryAccess(c, address, n)
		data, err := a.machine.Snapshot(address, n)
		if err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"address": fmt.Sprintf("0x%08x", address),
			"len":     len(data),
			"hex":     hex.EncodeToString(data),
		})
	})

	a.router.POST("/machine/:action", a.authorize, func(c *gin.Context) {
		switch c.Param("action") {
		case "load":
			a.machine.Load()
		case "unload":
			a.machine.Unload()
		default:
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown action"})
			return
		}
		log.Info().Str("action", c.Param("action")).Msg("admin machine action")
		c.JSON(http.StatusOK, gin.H{"status": "ok", "active": a.machine.Active()})
	})
}

// StatusView is the /status payload.
type StatusView struct {
	Service   string          `json:"service"`
	IPCState  string          `json:"ipc_state"`
	IPCAddr   string          `json:"ipc_addr"`
	Active    bool            `json:"machine_active"`
	ByteOrder string          `json:"byte_order"`
	Regions   []memory.Region `json:"regions"`
}

func (a *Admin) Status() StatusView {
	out := StatusView{
		Service:   a.ID,
		IPCState:  a.ipc.State().String(),
		Active:    a.machine.Active(),
		ByteOrder: a.machine.ByteOrderName(),
		Regions:   a.machine.Regions(),
	}
	if addr := a.ipc.Addr(); addr != nil {
		out.IPCAddr = addr.String()
	}
	return out
}

// Read performs one read through the IPC dispatcher.
func (a *Admin) Read(width int, address uint32) (uint64, error) {
	op, err := protocol.ReadOpcode(width)
	if err != nil {
		return 0, err
	}
	req, err := protocol.EncodeRequest(op, address, 0)
	if err != nil {
		return 0, err
	}
	return protocol.DecodeReply(op, a.handler.Dispatch(req))
}

// Serve runs the HTTP server until ctx is cancelled.
func (a *Admin) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.Addr,
		Handler:           a.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	log.Info().Str("addr", a.Addr).Msg("admin listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (a *Admin) authorize(c *gin.Context) {
	if err := auth.Authorize(a.validator, c.GetHeader("Authorization")); err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	c.Next()
}

func parseAddress(raw string) (uint32, error) {
	raw = strings.TrimSpace(raw)
	v, err := strconv.ParseUint(raw, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAddress, raw)
	}
	return uint32(v), nil
}

func parseWidth(raw string) (int, error) {
	w, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidWidth, raw)
	}
	if _, err := protocol.ReadOpcode(w); err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidWidth, raw)
	}
	return w, nil
}

func parseLength(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 || n > maxDump {
		return 0, fmt.Errorf("%w: %q (1..%d)", ErrInvalidLength, raw, maxDump)
	}
	return n, nil
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
