package protocol

import (
	"fmt"
	"strings"
)

const (
	AddressOffset = 1
	OperandOffset = 5
	HeaderLen     = 5
	MaxMessageLen = 1024
)

// Opcode identifies the memory operation carried by a request.
type Opcode uint8

const (
	ReadByte    Opcode = 0x00
	ReadHalf    Opcode = 0x01
	ReadWord    Opcode = 0x02
	ReadDouble  Opcode = 0x03
	WriteByte   Opcode = 0x04
	WriteHalf   Opcode = 0x05
	WriteWord   Opcode = 0x06
	WriteDouble Opcode = 0x07
)

var opcodeNames = [...]string{
	ReadByte:    "read8",
	ReadHalf:    "read16",
	ReadWord:    "read32",
	ReadDouble:  "read64",
	WriteByte:   "write8",
	WriteHalf:   "write16",
	WriteWord:   "write32",
	WriteDouble: "write64",
}

var opcodeWidths = [...]int{1, 2, 4, 8, 1, 2, 4, 8}

func (op Opcode) Valid() bool {
	return op <= WriteDouble
}

// Width returns the access width in bytes, or 0 for an unknown opcode.
func (op Opcode) Width() int {
	if !op.Valid() {
		return 0
	}
	return opcodeWidths[op]
}

func (op Opcode) IsRead() bool {
	return op <= ReadDouble
}

func (op Opcode) IsWrite() bool {
	return op >= WriteByte && op <= WriteDouble
}

func (op Opcode) String() string {
	if !op.Valid() {
		return fmt.Sprintf("unknown(0x%02x)", uint8(op))
	}
	return opcodeNames[op]
}

// ParseOpcode maps a name produced by Opcode.String back to its opcode.
func ParseOpcode(name string) (Opcode, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for i, n := range opcodeNames {
		if n == key {
			return Opcode(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownOpcode, name)
}

// ReadOpcode returns the read opcode for an access width.
func ReadOpcode(width int) (Opcode, error) {
	switch width {
	case 1:
		return ReadByte, nil
	case 2:
		return ReadHalf, nil
	case 4:
		return ReadWord, nil
	case 8:
		return ReadDouble, nil
	}
	return 0, fmt.Errorf("%w: %d", ErrInvalidWidth, width)
}

// RequestLen is the logical request size for op; 0 when op is unknown.
func RequestLen(op Opcode) int {
	switch {
	case op.IsRead():
		return HeaderLen
	case op.IsWrite():
		return HeaderLen + op.Width()
	}
	return 0
}

// ReplyLen is the size of a successful reply for op. Unknown opcodes and
// writes always answer with the status byte alone.
func ReplyLen(op Opcode) int {
	if op.IsRead() {
		return 1 + op.Width()
	}
	return 1
}

// Status is the leading reply byte.
type Status uint8

const (
	StatusOK   Status = 0x00
	StatusFail Status = 0xFF
)

func (s Status) OK() bool {
	return s == StatusOK
}

func (s Status) String() string {
	if s == StatusOK {
		return "ok"
	}
	return "fail"
}
