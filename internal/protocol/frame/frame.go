package frame

import (
	"errors"
	"fmt"
	"io"

	"github.com/danmuck/memipc/internal/protocol"
)

var (
	ErrShortRequest = errors.New("frame: short request")
	ErrShortReply   = errors.New("frame: short reply")
)

// Request is one decoded wire request.
type Request struct {
	Opcode  protocol.Opcode
	Address uint32
	Value   uint64
}

// Reply is one decoded wire reply.
type Reply struct {
	Status  protocol.Status
	Payload []byte
}

// Value decodes the payload as a big-endian integer; 0 when empty.
func (r Reply) Value() uint64 {
	switch len(r.Payload) {
	case 1, 2, 4, 8:
		return protocol.DecodeUint(r.Payload, 0, len(r.Payload))
	}
	return 0
}

// ParseRequest decodes buf. Bytes past the logical request length are ignored.
func ParseRequest(buf []byte) (Request, error) {
	if len(buf) < protocol.HeaderLen {
		return Request{}, ErrShortRequest
	}
	op := protocol.Opcode(buf[0])
	if !op.Valid() {
		return Request{}, fmt.Errorf("%w: 0x%02x", protocol.ErrUnknownOpcode, buf[0])
	}
	if len(buf) < protocol.RequestLen(op) {
		return Request{}, ErrShortRequest
	}
	req := Request{
		Opcode:  op,
		Address: uint32(protocol.DecodeUint(buf, protocol.AddressOffset, 4)),
	}
	if op.IsWrite() {
		req.Value = protocol.DecodeUint(buf, protocol.OperandOffset, op.Width())
	}
	return req, nil
}

func (r Request) Encode() ([]byte, error) {
	return protocol.EncodeRequest(r.Opcode, r.Address, r.Value)
}

// WriteRequest encodes r as a single write.
func WriteRequest(w io.Writer, r Request) error {
	buf, err := r.Encode()
	if err != nil {
		return err
	}
	_, err = w.Write(buf)
	return err
}

// ReadReply reads the reply for op. A FAIL status is complete after the
// status byte; successful reads carry op.Width() payload bytes.
func ReadReply(r io.Reader, op protocol.Opcode) (Reply, error) {
	var status [1]byte
	if _, err := io.ReadFull(r, status[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return Reply{}, ErrShortReply
		}
		return Reply{}, err
	}
	out := Reply{Status: protocol.Status(status[0])}
	if !out.Status.OK() || !op.IsRead() {
		return out, nil
	}
	out.Payload = make([]byte, op.Width())
	if _, err := io.ReadFull(r, out.Payload); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return Reply{}, ErrShortReply
		}
		return Reply{}, err
	}
	return out, nil
}
