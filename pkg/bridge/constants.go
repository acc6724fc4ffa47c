// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package bridge talks to an nRF24L01+ USB dongle over a serial or
// WebSocket stream.
//
// The dongle firmware exposes the raw transceiver primitives (address and
// channel setup, FIFO flushes, mode changes, transmit, receive) as framed
// commands. Radio implements nrfnet.Radio on the host side of that link;
// Emulator implements the dongle side on top of any nrfnet.Radio, which is
// how the protocol is tested and how simulated nodes can be served to real
// tools.
//
// Frame layout:
//
//	0x7E | stuffed(length | CBOR body | CRC16 big-endian) | 0x7F
//
// The CBOR body is a two element array [msg_type, payload_map] where the
// payload map uses small integer keys.
package bridge

// Protocol framing bytes
const (
	StartByte = 0x7E
	EndByte   = 0x7F
	EscByte   = 0x7D
	EscXor    = 0x20
)

// Frame size limits
const (
	MaxBodySize  = 96
	MaxFrameSize = 1 + MaxBodySize + 2 // length + body + CRC, before stuffing
)

// CRC-16-CCITT configuration
const (
	crcPolynomial = 0x1021
	crcInitial    = 0xFFFF
)

// Message types - Commands (Host → Dongle) 0x10-0x2F
const (
	MsgInit         = 0x10
	MsgSetChannel   = 0x11
	MsgSetRxAddress = 0x12
	MsgSetTxAddress = 0x13
	MsgFlushTx      = 0x14
	MsgFlushRx      = 0x15
	MsgSetMode      = 0x16
	MsgTransmit     = 0x20
	MsgPing         = 0x2F
)

// Message types - Responses and events (Dongle → Host) 0x30-0x3F
const (
	MsgOK       = 0x30
	MsgTxResult = 0x31
	MsgRxPacket = 0x32
	MsgPong     = 0x3F
)

// Message types - Errors (Dongle → Host) 0xE0-0xEF
const (
	MsgError = 0xE0
)

// KeySeq is the payload key of the request sequence number. The dongle
// echoes it in the response so late replies can be told apart.
const KeySeq = 15

// Decoder states (internal)
const (
	stateIdle = iota
	stateLength
	stateBody
	stateCRC1
	stateCRC2
	stateEnd
)

// ErrorCode is carried in ERROR responses.
type ErrorCode int

// Error code values
const (
	ErrorNone         ErrorCode = 0x00
	ErrorUnknownCmd   ErrorCode = 0x01
	ErrorBadArgument  ErrorCode = 0x02
	ErrorRadioFailure ErrorCode = 0x03
)

// String returns the human-readable name for an error code
func (c ErrorCode) String() string {
	switch c {
	case ErrorNone:
		return "NONE"
	case ErrorUnknownCmd:
		return "UNKNOWN_COMMAND"
	case ErrorBadArgument:
		return "BAD_ARGUMENT"
	case ErrorRadioFailure:
		return "RADIO_FAILURE"
	default:
		return "UNKNOWN"
	}
}
