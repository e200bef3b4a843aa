// Package protocol owns the memory IPC wire contract and its codec.
//
// Ownership boundary:
// - opcode table (width, direction, request/reply sizes)
// - big-endian integer encode/decode primitives
// - reply construction and status sentinels
//
// Request: [opcode:1][address:4 BE][operand:0|1|2|4|8 BE]
// Reply:   [status:1][payload:0|1|2|4|8 BE]
package protocol
