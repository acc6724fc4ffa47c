// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bridge

import "github.com/Thermoquad/nrfnet/pkg/nrfnet"

// Command builder functions create Frames ready for encoding.
// These are convenience wrappers around NewFrame that keep payload key
// usage in one place.

// NewInitCommand creates an INIT command (0x10).
func NewInitCommand() *Frame {
	return NewFrame(MsgInit, nil)
}

// NewSetChannelCommand creates a SET_CHANNEL command (0x11).
func NewSetChannelCommand(channel uint8) *Frame {
	return NewFrame(MsgSetChannel, map[int]interface{}{
		0: uint64(channel),
	})
}

// NewSetRxAddressCommand creates a SET_RX_ADDRESS command (0x12).
func NewSetRxAddressCommand(pipe uint8, addr nrfnet.PhysicalAddress) *Frame {
	return NewFrame(MsgSetRxAddress, map[int]interface{}{
		0: uint64(pipe),
		1: addr[:],
	})
}

// NewSetTxAddressCommand creates a SET_TX_ADDRESS command (0x13).
func NewSetTxAddressCommand(addr nrfnet.PhysicalAddress) *Frame {
	return NewFrame(MsgSetTxAddress, map[int]interface{}{
		0: addr[:],
	})
}

// NewFlushTxCommand creates a FLUSH_TX command (0x14).
func NewFlushTxCommand() *Frame {
	return NewFrame(MsgFlushTx, nil)
}

// NewFlushRxCommand creates a FLUSH_RX command (0x15).
func NewFlushRxCommand() *Frame {
	return NewFrame(MsgFlushRx, nil)
}

// NewSetModeCommand creates a SET_MODE command (0x16).
func NewSetModeCommand(mode nrfnet.RadioMode) *Frame {
	return NewFrame(MsgSetMode, map[int]interface{}{
		0: uint64(mode),
	})
}

// NewTransmitCommand creates a TRANSMIT command (0x20).
// The dongle answers with TX_RESULT once the hardware ack arrived or the
// auto-retransmit count ran out.
func NewTransmitCommand(data []byte) *Frame {
	return NewFrame(MsgTransmit, map[int]interface{}{
		0: data,
	})
}

// NewPingCommand creates a PING command (0x2F).
// The dongle responds with PONG containing its uptime.
func NewPingCommand() *Frame {
	return NewFrame(MsgPing, nil)
}

// NewOKResponse creates an OK response (0x30).
func NewOKResponse() *Frame {
	return NewFrame(MsgOK, nil)
}

// NewTxResultResponse creates a TX_RESULT response (0x31).
func NewTxResultResponse(acked bool) *Frame {
	return NewFrame(MsgTxResult, map[int]interface{}{
		0: acked,
	})
}

// NewRxPacketEvent creates an RX_PACKET event (0x32).
func NewRxPacketEvent(pipe uint8, data []byte) *Frame {
	return NewFrame(MsgRxPacket, map[int]interface{}{
		0: uint64(pipe),
		1: data,
	})
}

// NewPongResponse creates a PONG response (0x3F).
func NewPongResponse(uptimeMs uint64) *Frame {
	return NewFrame(MsgPong, map[int]interface{}{
		0: uptimeMs,
	})
}

// NewErrorResponse creates an ERROR response (0xE0).
func NewErrorResponse(code ErrorCode, text string) *Frame {
	return NewFrame(MsgError, map[int]interface{}{
		0: uint64(code),
		1: text,
	})
}

// FormatMessageType returns the human-readable name for a message type
func FormatMessageType(msgType uint8) string {
	switch msgType {
	case MsgInit:
		return "INIT"
	case MsgSetChannel:
		return "SET_CHANNEL"
	case MsgSetRxAddress:
		return "SET_RX_ADDRESS"
	case MsgSetTxAddress:
		return "SET_TX_ADDRESS"
	case MsgFlushTx:
		return "FLUSH_TX"
	case MsgFlushRx:
		return "FLUSH_RX"
	case MsgSetMode:
		return "SET_MODE"
	case MsgTransmit:
		return "TRANSMIT"
	case MsgPing:
		return "PING"
	case MsgOK:
		return "OK"
	case MsgTxResult:
		return "TX_RESULT"
	case MsgRxPacket:
		return "RX_PACKET"
	case MsgPong:
		return "PONG"
	case MsgError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}
