package protocol

import (
	"encoding/binary"
	"fmt"
)

// EncodeUint writes value as exactly width big-endian bytes. Widths other
// than 1, 2, 4 or 8 are a caller bug.
func EncodeUint(value uint64, width int) []byte {
	buf := make([]byte, width)
	putUint(buf, value, width)
	return buf
}

func putUint(buf []byte, value uint64, width int) {
	switch width {
	case 1:
		buf[0] = byte(value)
	case 2:
		binary.BigEndian.PutUint16(buf, uint16(value))
	case 4:
		binary.BigEndian.PutUint32(buf, uint32(value))
	case 8:
		binary.BigEndian.PutUint64(buf, value)
	default:
		panic(fmt.Sprintf("protocol: invalid width %d", width))
	}
}

// MakeReply prefixes payload with the status byte.
func MakeReply(status Status, payload []byte) []byte {
	out := make([]byte, 1+len(payload))
	out[0] = byte(status)
	copy(out[1:], payload)
	return out
}

// OKReply encodes a successful reply carrying value at width bytes.
func OKReply(value uint64, width int) []byte {
	out := make([]byte, 1+width)
	out[0] = byte(StatusOK)
	putUint(out[1:], value, width)
	return out
}

func FailReply() []byte {
	return []byte{byte(StatusFail)}
}

// EncodeRequest builds the wire request for op. value is ignored for reads.
func EncodeRequest(op Opcode, address uint32, value uint64) ([]byte, error) {
	if !op.Valid() {
		return nil, fmt.Errorf("%w: 0x%02x", ErrUnknownOpcode, uint8(op))
	}
	buf := make([]byte, RequestLen(op))
	buf[0] = byte(op)
	binary.BigEndian.PutUint32(buf[AddressOffset:OperandOffset], address)
	if op.IsWrite() {
		width := op.Width()
		if width < 8 && value>>(8*width) != 0 {
			return nil, fmt.Errorf("%w: %#x in %d bytes", ErrValueOverflow, value, width)
		}
		putUint(buf[OperandOffset:], value, width)
	}
	return buf, nil
}
