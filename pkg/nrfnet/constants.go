// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package nrfnet turns a point-to-point nRF24L01+ transceiver into a
// multi-hop tree network.
//
// Every node owns a 16-bit logical address made of octal digits. The lowest
// digit names the child of the root, the next digit the child of that node,
// and so on for up to five levels. Packets travel down the tree when the
// destination is a descendant and up toward the root otherwise, so no
// routing table is needed.
//
// The package contains the pure address arithmetic, the 32-byte wire
// packet, the listen/transmit mode discipline and the Network dispatcher.
// The transceiver itself is a collaborator described by the Radio interface.
package nrfnet

// Packet size limits
const (
	MaxPacketSize  = 32 // transceiver FIFO width
	HeaderSize     = 6  // to(2) + from(2) + type(1) + length(1)
	MaxPayloadSize = MaxPacketSize - HeaderSize
)

// Address layout
const (
	PhysicalAddressSize = 5
	DigitBits           = 3
	DigitMask           = 0x07
	MaxDepth            = 5
	SentinelByte        = 0xCC
)

// Radio defaults used by Begin
const (
	DefaultChannel = 76
	DefaultRxPipe  = 1
)

// RootAddress is the logical address of the tree root.
const RootAddress NodeAddress = 0

// addressPool maps octal digits 1..7 to on-air address bytes. The values
// avoid long runs of equal bits which confuse the nRF24 preamble detector.
var addressPool = [7]byte{0xC3, 0x3C, 0x33, 0xCE, 0x3E, 0xE3, 0xEC}

// MessageType tags the payload of a network packet.
type MessageType uint8

// Message type values
const (
	MsgData    MessageType = 0x00
	MsgAck     MessageType = 0x01
	MsgPing    MessageType = 0x02
	MsgPingAck MessageType = 0x03
)

// Valid reports whether t is one of the defined message types.
func (t MessageType) Valid() bool {
	return t <= MsgPingAck
}

// String returns the human-readable name for a message type
func (t MessageType) String() string {
	switch t {
	case MsgData:
		return "DATA"
	case MsgAck:
		return "ACK"
	case MsgPing:
		return "PING"
	case MsgPingAck:
		return "PING_ACK"
	default:
		return "UNKNOWN"
	}
}
