package protocol

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodeDecodeUintRoundTrip(t *testing.T) {
	values := map[int][]uint64{
		1: {0, 1, 0x42, 0x7F, 0xFF},
		2: {0, 0x0100, 0xBEEF, 0xFFFF},
		4: {0, 0x1000, 0xDEADBEEF, 0xFFFFFFFF},
		8: {0, 0x0102030405060708, 0xFFFFFFFFFFFFFFFF},
	}
	for width, vals := range values {
		for _, v := range vals {
			enc := EncodeUint(v, width)
			if len(enc) != width {
				t.Fatalf("unexpected encoded len: width=%d got=%d", width, len(enc))
			}
			if got := DecodeUint(enc, 0, width); got != v {
				t.Fatalf("round trip mismatch: width=%d got=%#x want=%#x", width, got, v)
			}
		}
	}
}

func TestEncodeUintIsBigEndian(t *testing.T) {
	got := EncodeUint(0xDEADBEEF, 4)
	if !bytes.Equal(got, []byte{0xDE, 0xAD, 0xBE, 0xEF}) {
		t.Fatalf("unexpected bytes: % x", got)
	}
	if got := DecodeUint([]byte{0x02, 0x00, 0x00, 0x10, 0x00}, AddressOffset, 4); got != 0x1000 {
		t.Fatalf("unexpected address: %#x", got)
	}
}

func TestEncodeUintInvalidWidthPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for width 3")
		}
	}()
	EncodeUint(1, 3)
}

func TestMakeReply(t *testing.T) {
	got := MakeReply(StatusOK, []byte{0x42})
	if !bytes.Equal(got, []byte{0x00, 0x42}) {
		t.Fatalf("unexpected reply: % x", got)
	}
	got = MakeReply(StatusFail, nil)
	if !bytes.Equal(got, []byte{0xFF}) {
		t.Fatalf("unexpected fail reply: % x", got)
	}
	if !bytes.Equal(OKReply(0xBEEF, 2), []byte{0x00, 0xBE, 0xEF}) {
		t.Fatalf("unexpected ok reply")
	}
}

func TestOpcodeTable(t *testing.T) {
	cases := []struct {
		op         Opcode
		width      int
		read       bool
		requestLen int
		replyLen   int
	}{
		{ReadByte, 1, true, 5, 2},
		{ReadHalf, 2, true, 5, 3},
		{ReadWord, 4, true, 5, 5},
		{ReadDouble, 8, true, 5, 9},
		{WriteByte, 1, false, 6, 1},
		{WriteHalf, 2, false, 7, 1},
		{WriteWord, 4, false, 9, 1},
		{WriteDouble, 8, false, 13, 1},
	}
	for _, tc := range cases {
		if !tc.op.Valid() {
			t.Fatalf("%s: expected valid", tc.op)
		}
		if tc.op.Width() != tc.width {
			t.Fatalf("%s: unexpected width: %d", tc.op, tc.op.Width())
		}
		if tc.op.IsRead() != tc.read || tc.op.IsWrite() == tc.read {
			t.Fatalf("%s: unexpected direction", tc.op)
		}
		if RequestLen(tc.op) != tc.requestLen {
			t.Fatalf("%s: unexpected request len: %d", tc.op, RequestLen(tc.op))
		}
		if ReplyLen(tc.op) != tc.replyLen {
			t.Fatalf("%s: unexpected reply len: %d", tc.op, ReplyLen(tc.op))
		}
		parsed, err := ParseOpcode(tc.op.String())
		if err != nil || parsed != tc.op {
			t.Fatalf("%s: parse round trip failed: %v %v", tc.op, parsed, err)
		}
	}
}

func TestUnknownOpcodes(t *testing.T) {
	for b := 0x08; b <= 0xFF; b++ {
		op := Opcode(b)
		if op.Valid() || op.IsRead() || op.IsWrite() || op.Width() != 0 {
			t.Fatalf("opcode 0x%02x should be unknown", b)
		}
		if RequestLen(op) != 0 || ReplyLen(op) != 1 {
			t.Fatalf("opcode 0x%02x: unexpected sizes", b)
		}
	}
	if _, err := ParseOpcode("peek"); !errors.Is(err, ErrUnknownOpcode) {
		t.Fatalf("expected ErrUnknownOpcode, got %v", err)
	}
}

func TestEncodeRequest(t *testing.T) {
	got, err := EncodeRequest(WriteWord, 0x10, 0xDEADBEEF)
	if err != nil {
		t.Fatalf("encode request: %v", err)
	}
	want := []byte{0x06, 0x00, 0x00, 0x00, 0x10, 0xDE, 0xAD, 0xBE, 0xEF}
	if !bytes.Equal(got, want) {
		t.Fatalf("unexpected request: got=% x want=% x", got, want)
	}

	got, err = EncodeRequest(ReadWord, 0x1000, 0xFFFF)
	if err != nil {
		t.Fatalf("encode read request: %v", err)
	}
	if !bytes.Equal(got, []byte{0x02, 0x00, 0x00, 0x10, 0x00}) {
		t.Fatalf("unexpected read request: % x", got)
	}

	if _, err := EncodeRequest(WriteByte, 0, 0x100); !errors.Is(err, ErrValueOverflow) {
		t.Fatalf("expected ErrValueOverflow, got %v", err)
	}
	if _, err := EncodeRequest(Opcode(0x20), 0, 0); !errors.Is(err, ErrUnknownOpcode) {
		t.Fatalf("expected ErrUnknownOpcode, got %v", err)
	}
}

func TestDecodeReply(t *testing.T) {
	v, err := DecodeReply(ReadByte, []byte{0x00, 0x42})
	if err != nil || v != 0x42 {
		t.Fatalf("unexpected decode: v=%#x err=%v", v, err)
	}
	if _, err := DecodeReply(ReadWord, []byte{0xFF}); !errors.Is(err, ErrFailStatus) {
		t.Fatalf("expected ErrFailStatus, got %v", err)
	}
	if _, err := DecodeReply(ReadWord, []byte{0x00, 0x01}); !errors.Is(err, ErrShortReply) {
		t.Fatalf("expected ErrShortReply, got %v", err)
	}
	if v, err := DecodeReply(WriteDouble, []byte{0x00}); err != nil || v != 0 {
		t.Fatalf("unexpected write decode: v=%d err=%v", v, err)
	}
}
