package protocol

import (
	"encoding/binary"
	"fmt"
)

// DecodeUint reads width big-endian bytes at offset. The caller guarantees
// offset+width <= len(buf).
func DecodeUint(buf []byte, offset, width int) uint64 {
	b := buf[offset : offset+width]
	switch width {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(binary.BigEndian.Uint16(b))
	case 4:
		return uint64(binary.BigEndian.Uint32(b))
	case 8:
		return binary.BigEndian.Uint64(b)
	}
	panic(fmt.Sprintf("protocol: invalid width %d", width))
}

// DecodeReply validates a reply for op and returns its payload value.
// Writes return 0 on success.
func DecodeReply(op Opcode, reply []byte) (uint64, error) {
	if len(reply) < 1 {
		return 0, ErrShortReply
	}
	if !Status(reply[0]).OK() {
		return 0, ErrFailStatus
	}
	want := ReplyLen(op)
	if len(reply) < want {
		return 0, fmt.Errorf("%w: got=%d want=%d", ErrShortReply, len(reply), want)
	}
	if !op.IsRead() {
		return 0, nil
	}
	return DecodeUint(reply, 1, op.Width()), nil
}
