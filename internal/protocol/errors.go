package protocol

import "errors"

var (
	ErrUnknownOpcode = errors.New("protocol: unknown opcode")
	ErrInvalidWidth  = errors.New("protocol: invalid access width")
	ErrFailStatus    = errors.New("protocol: fail status")
	ErrShortReply    = errors.New("protocol: short reply")
	ErrValueOverflow = errors.New("protocol: value does not fit access width")
)
