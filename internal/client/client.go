// Package client speaks the memory IPC wire protocol to a running server.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/danmuck/memipc/internal/protocol"
	"github.com/danmuck/memipc/internal/protocol/frame"
)

const ConnectionTimeout = 2 * time.Second

var (
	ErrClosed = errors.New("client: closed")
)

// Client holds one connection. Requests are serialized; the server answers
// them in order on the same connection.
type Client struct {
	mu      sync.Mutex
	conn    net.Conn
	network string
	address string
	closed  bool
}

// Dial connects to network/address, bounded by ctx and ConnectionTimeout.
func Dial(ctx context.Context, network, address string) (*Client, error) {
	connectCtx, cancel := context.WithTimeout(ctx, ConnectionTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(connectCtx, network, address)
	if err != nil {
		return nil, fmt.Errorf("client: connect %s %s: %w", network, address, err)
	}
	return &Client{conn: conn, network: network, address: address}, nil
}

func (c *Client) Address() string {
	return c.address
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

// Do sends one request and waits for its reply. value is ignored for reads;
// writes return 0. A FAIL reply is reported as protocol.ErrFailStatus and
// leaves the connection usable; any transport error, including ctx expiry,
// closes it.
func (c *Client) Do(ctx context.Context, op protocol.Opcode, address uint32, value uint64) (uint64, error) {
	req := frame.Request{Opcode: op, Address: address, Value: value}
	buf, err := req.Encode()
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, ErrClosed
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Time{}
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return 0, c.fail(ctx, "deadline", err)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetDeadline(time.Now())
	})
	defer stop()

	if _, err := c.conn.Write(buf); err != nil {
		return 0, c.fail(ctx, "write", err)
	}
	reply, err := frame.ReadReply(c.conn, op)
	if err != nil {
		return 0, c.fail(ctx, "read", err)
	}
	if !reply.Status.OK() {
		return 0, fmt.Errorf("%w: %s %#08x", protocol.ErrFailStatus, op, address)
	}
	return reply.Value(), nil
}

// fail closes the connection after a transport error. The exchange may be
// half done, and a late reply would otherwise be read as the answer to the
// next request. Callers must dial again. c.mu must be held.
func (c *Client) fail(ctx context.Context, stage string, err error) error {
	c.closed = true
	_ = c.conn.Close()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("client: %s: %w", stage, ctxErr)
	}
	// the conn deadline can fire just before ctx records its own expiry
	if d, ok := ctx.Deadline(); ok && !time.Now().Before(d) {
		return fmt.Errorf("client: %s: %w", stage, context.DeadlineExceeded)
	}
	return fmt.Errorf("client: %s: %w", stage, err)
}

// Read issues the read opcode for width (1, 2, 4 or 8 bytes).
func (c *Client) Read(ctx context.Context, width int, address uint32) (uint64, error) {
	op, err := protocol.ReadOpcode(width)
	if err != nil {
		return 0, err
	}
	return c.Do(ctx, op, address, 0)
}

func (c *Client) Read8(ctx context.Context, address uint32) (uint8, error) {
	v, err := c.Do(ctx, protocol.ReadByte, address, 0)
	return uint8(v), err
}

func (c *Client) Read16(ctx context.Context, address uint32) (uint16, error) {
	v, err := c.Do(ctx, protocol.ReadHalf, address, 0)
	return uint16(v), err
}

func (c *Client) Read32(ctx context.Context, address uint32) (uint32, error) {
	v, err := c.Do(ctx, protocol.ReadWord, address, 0)
	return uint32(v), err
}

func (c *Client) Read64(ctx context.Context, address uint32) (uint64, error) {
	return c.Do(ctx, protocol.ReadDouble, address, 0)
}

func (c *Client) Write8(ctx context.Context, address uint32, value uint8) error {
	_, err := c.Do(ctx, protocol.WriteByte, address, uint64(value))
	return err
}

func (c *Client) Write16(ctx context.Context, address uint32, value uint16) error {
	_, err := c.Do(ctx, protocol.WriteHalf, address, uint64(value))
	return err
}

func (c *Client) Write32(ctx context.Context, address uint32, value uint32) error {
	_, err := c.Do(ctx, protocol.WriteWord, address, uint64(value))
	return err
}

func (c *Client) Write64(ctx context.Context, address uint32, value uint64) error {
	_, err := c.Do(ctx, protocol.WriteDouble, address, value)
	return err
}
