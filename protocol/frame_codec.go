// File: protocol/frame_codec.go
// Package protocol implements the frame encoder and canned control frames.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Server frames are never masked. MaskFrame exists for client-side traffic
// generation (tests and the load client).

package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrPayloadTooLarge is returned when a payload exceeds MaxEncodePayload.
	ErrPayloadTooLarge = errors.New("payload exceeds maximum encodable size")
	// ErrControlTooLarge is returned for control frames above 125 bytes.
	ErrControlTooLarge = errors.New("control frame payload too large")
)

// HeaderLen returns the unmasked header size for a payload of n bytes.
func HeaderLen(n int) int {
	switch {
	case n <= 125:
		return 2
	case n <= 0xFFFF:
		return 4
	default:
		return 10
	}
}

// EncodeText serializes payload as a single unmasked text frame.
func EncodeText(payload []byte) ([]byte, error) {
	return EncodeFrame(OpcodeText, payload)
}

// EncodeFrame serializes payload as a single unmasked final frame with the given opcode,
// using the minimal length encoding.
func EncodeFrame(opcode byte, payload []byte) ([]byte, error) {
	return encode(opcode, payload, nil)
}

// MaskFrame serializes payload as a masked final frame, as a client would send it.
func MaskFrame(opcode byte, payload []byte, key [4]byte) ([]byte, error) {
	return encode(opcode, payload, &key)
}

func encode(opcode byte, payload []byte, key *[4]byte) ([]byte, error) {
	plen := len(payload)
	if uint64(plen) > MaxEncodePayload {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, plen)
	}
	if IsControl(opcode) && plen > MaxControlPayloadLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrControlTooLarge, plen)
	}

	hlen := HeaderLen(plen)
	if key != nil {
		hlen += 4
	}
	out := make([]byte, hlen+plen)
	out[0] = FinBit | (opcode & OpcodeMsk)

	var maskBit byte
	if key != nil {
		maskBit = MaskBit
	}
	offset := 2
	switch {
	case plen <= 125:
		out[1] = byte(plen) | maskBit
	case plen <= 0xFFFF:
		out[1] = len16Escape | maskBit
		binary.BigEndian.PutUint16(out[2:], uint16(plen))
		offset += 2
	default:
		out[1] = len64Escape | maskBit
		binary.BigEndian.PutUint64(out[2:], uint64(plen))
		offset += 8
	}

	if key != nil {
		copy(out[offset:], key[:])
		offset += 4
	}
	copy(out[offset:], payload)
	if key != nil {
		maskBytes(out[offset:], *key)
	}
	return out, nil
}

// GeneratePing returns a fresh empty ping frame.
func GeneratePing() []byte {
	b := pingFrame
	return b[:]
}

// GeneratePong returns a fresh empty pong frame.
func GeneratePong() []byte {
	b := pongFrame
	return b[:]
}

// GenerateClose returns a fresh empty close frame.
func GenerateClose() []byte {
	b := closeFrame
	return b[:]
}
