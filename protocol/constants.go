// Package protocol
// Author: momentics <momentics@gmail.com>
//
// WebSocket wire protocol constants

package protocol

const (
	// Data opcodes
	OpcodeContinuation = 0x0
	OpcodeText         = 0x1
	OpcodeBinary       = 0x2

	// Control opcodes (>=0x8)
	OpcodeClose = 0x8
	OpcodePing  = 0x9
	OpcodePong  = 0xA

	// Frame limit settings
	MaxControlPayloadLen = 125
	MaxFrameHeaderLen    = 14 // for extended payloads with masking

	// Payload length escapes in the 7-bit length field.
	len16Escape = 126
	len64Escape = 127

	// MaxEncodePayload is the largest payload EncodeText will frame.
	MaxEncodePayload = 1<<31 - 1

	// Bit masks
	FinBit    = 0x80
	Rsv1Bit   = 0x40
	Rsv2Bit   = 0x20
	Rsv3Bit   = 0x10
	OpcodeMsk = 0x0F
	MaskBit   = 0x80
	LenMsk    = 0x7F
)

// Canned control frames: FIN set, zero-length payload, unmasked.
var (
	pingFrame  = [2]byte{FinBit | OpcodePing, 0x00}
	pongFrame  = [2]byte{FinBit | OpcodePong, 0x00}
	closeFrame = [2]byte{FinBit | OpcodeClose, 0x00}
)
