// Package dispatch interprets one request buffer against a memory capability.
package dispatch

import (
	"time"

	"github.com/danmuck/memipc/internal/protocol"
	"github.com/rs/zerolog/log"
)

// Memory is the host's memory access capability. A non-nil error means the
// access could not be serviced (no active machine, unmapped address, ...).
type Memory interface {
	Read(width int, address uint32) (uint64, error)
	Write(width int, address uint32, value uint64) error
}

// Observer receives one callback per dispatched request.
type Observer func(op protocol.Opcode, status protocol.Status, elapsed time.Duration)

type Option func(*Dispatcher)

func WithObserver(obs Observer) Option {
	return func(d *Dispatcher) {
		d.observe = obs
	}
}

// Dispatcher is stateless apart from its collaborators; it is safe to share.
type Dispatcher struct {
	mem     Memory
	observe Observer
}

func New(mem Memory, opts ...Option) *Dispatcher {
	d := &Dispatcher{mem: mem}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch produces exactly one reply for request. Every failure collapses
// to a single FAIL status byte.
func (d *Dispatcher) Dispatch(request []byte) []byte {
	start := time.Now()
	var op protocol.Opcode
	if len(request) > 0 {
		op = protocol.Opcode(request[0])
	}
	reply := d.dispatch(request)
	if d.observe != nil {
		d.observe(op, protocol.Status(reply[0]), time.Since(start))
	}
	return reply
}

func (d *Dispatcher) dispatch(request []byte) []byte {
	if len(request) < protocol.HeaderLen {
		return protocol.FailReply()
	}
	op := protocol.Opcode(request[0])
	if !op.Valid() || len(request) < protocol.RequestLen(op) {
		log.Debug().Uint8("opcode", request[0]).Msg("dispatch unknown or short request")
		return protocol.FailReply()
	}
	address := uint32(protocol.DecodeUint(request, protocol.AddressOffset, 4))
	width := op.Width()

	if op.IsRead() {
		value, err := d.mem.Read(width, address)
		if err != nil {
			log.Debug().Str("op", op.String()).Uint32("address", address).Err(err).Msg("dispatch read failed")
			return protocol.FailReply()
		}
		return protocol.OKReply(value, width)
	}

	value := protocol.DecodeUint(request, protocol.OperandOffset, width)
	if err := d.mem.Write(width, address, value); err != nil {
		log.Debug().Str("op", op.String()).Uint32("address", address).Err(err).Msg("dispatch write failed")
		return protocol.FailReply()
	}
	return protocol.MakeReply(protocol.StatusOK, nil)
}
