// Package protocol
// Author: momentics <momentics@gmail.com>
//
// WebSocket frame model and byte-slice decoder.
//
//	 0                   1                   2                   3
//	 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
//	+-+-+-+-+-------+-+-------------+-------------------------------+
//	|F|R|R|R| opcode|M| Payload len |    Extended payload length    |
//	|I|S|S|S|  (4)  |A|     (7)     |             (16/64)           |
//	|N|V|V|V|       |S|             |   (if payload len==126/127)   |
//	| |1|2|3|       |K|             |                               |
//	+-+-+-+-+-------+-+-------------+ - - - - - - - - - - - - - - - +
//	|     Extended payload length continued, if payload len == 127  |
//	+ - - - - - - - - - - - - - - - +-------------------------------+
//	|                               |Masking-key, if MASK set to 1  |
//	+-------------------------------+-------------------------------+
//	| Masking-key (continued)       |          Payload Data         |
//	+-------------------------------- - - - - - - - - - - - - - - - +

package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/momentics/hioload-gps/api"
)

var (
	// ErrIncomplete means the buffer ends before the frame does.
	ErrIncomplete = errors.New("incomplete frame")
	// ErrFrameTooLarge means the declared payload length exceeds the decode limit.
	ErrFrameTooLarge = errors.New("frame payload exceeds maximum allowed size")
)

// DecodeError describes why a buffer could not be decoded into a Frame.
type DecodeError struct {
	Reason string // which part of the frame failed
	Need   uint64 // bytes from the start of raw needed to continue; the whole frame for ErrFrameTooLarge
	Have   int    // bytes available
	Err    error  // ErrIncomplete or ErrFrameTooLarge
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v (need %d, have %d)", e.Reason, e.Err, e.Need, e.Have)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Is makes every DecodeError match api.ErrDecode.
func (e *DecodeError) Is(target error) bool { return target == api.ErrDecode }

// Frame is one decoded WebSocket frame. Values returned by the decoder
// own their payload; nothing is shared with the input buffer.
type Frame struct {
	Fin        bool
	Rsv1       bool
	Rsv2       bool
	Rsv3       bool
	Opcode     byte
	Masked     bool
	PayloadLen uint64
	MaskKey    [4]byte
	Payload    []byte
}

// IsText reports whether op is the text opcode.
func IsText(op byte) bool { return op == OpcodeText }

// IsPing reports whether op is the ping opcode.
func IsPing(op byte) bool { return op == OpcodePing }

// IsPong reports whether op is the pong opcode.
func IsPong(op byte) bool { return op == OpcodePong }

// IsClose reports whether op is the close opcode.
func IsClose(op byte) bool { return op == OpcodeClose }

// IsControl reports whether op belongs to the control range.
func IsControl(op byte) bool { return op&0x08 != 0 }

func (f *Frame) IsText() bool  { return IsText(f.Opcode) }
func (f *Frame) IsPing() bool  { return IsPing(f.Opcode) }
func (f *Frame) IsPong() bool  { return IsPong(f.Opcode) }
func (f *Frame) IsClose() bool { return IsClose(f.Opcode) }

// Text returns the payload as a string.
func (f *Frame) Text() string { return string(f.Payload) }

// DecodeFrame parses one frame from the start of raw.
// It returns the frame and the number of bytes consumed.
func DecodeFrame(raw []byte) (*Frame, int, error) {
	return DecodeFrameLimit(raw, 0)
}

// DecodeFrameLimit is DecodeFrame with a payload size cap; max == 0 disables the cap.
func DecodeFrameLimit(raw []byte, max uint64) (*Frame, int, error) {
	if len(raw) < 2 {
		return nil, 0, &DecodeError{Reason: "header", Need: 2, Have: len(raw), Err: ErrIncomplete}
	}

	b0, b1 := raw[0], raw[1]
	f := &Frame{
		Fin:    b0&FinBit != 0,
		Rsv1:   b0&Rsv1Bit != 0,
		Rsv2:   b0&Rsv2Bit != 0,
		Rsv3:   b0&Rsv3Bit != 0,
		Opcode: b0 & OpcodeMsk,
		Masked: b1&MaskBit != 0,
	}
	length := uint64(b1 & LenMsk)
	offset := 2

	switch length {
	case len16Escape:
		if len(raw) < offset+2 {
			return nil, 0, &DecodeError{Reason: "extended length", Need: uint64(offset + 2), Have: len(raw), Err: ErrIncomplete}
		}
		length = uint64(binary.BigEndian.Uint16(raw[offset:]))
		offset += 2
	case len64Escape:
		if len(raw) < offset+8 {
			return nil, 0, &DecodeError{Reason: "extended length", Need: uint64(offset + 8), Have: len(raw), Err: ErrIncomplete}
		}
		length = binary.BigEndian.Uint64(raw[offset:])
		offset += 8
		// the most significant bit must be 0
		if length>>63 != 0 {
			return nil, 0, &DecodeError{Reason: "extended length", Need: math.MaxUint64, Have: len(raw), Err: ErrFrameTooLarge}
		}
	}

	if max > 0 && length > max {
		total := uint64(offset) + length
		if f.Masked {
			total += 4
		}
		return nil, 0, &DecodeError{Reason: "payload", Need: total, Have: len(raw), Err: ErrFrameTooLarge}
	}

	if f.Masked {
		if len(raw) < offset+4 {
			return nil, 0, &DecodeError{Reason: "mask key", Need: uint64(offset + 4), Have: len(raw), Err: ErrIncomplete}
		}
		copy(f.MaskKey[:], raw[offset:offset+4])
		offset += 4
	}

	if uint64(len(raw)-offset) < length {
		return nil, 0, &DecodeError{Reason: "payload", Need: uint64(offset) + length, Have: len(raw), Err: ErrIncomplete}
	}
	end := offset + int(length)

	f.PayloadLen = length
	f.Payload = make([]byte, length)
	copy(f.Payload, raw[offset:end])
	if f.Masked {
		maskBytes(f.Payload, f.MaskKey)
	}
	return f, end, nil
}

// maskBytes XORs buf with key cycled by index. Masking and unmasking are the same operation.
func maskBytes(buf []byte, key [4]byte) {
	for i := range buf {
		buf[i] ^= key[i%4]
	}
}
