// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package nrfnet

import (
	"encoding/binary"
	"fmt"
)

// Header is the routing header carried by every packet.
type Header struct {
	To   NodeAddress
	From NodeAddress
	Type MessageType
}

// Packet is a network packet with a fixed-capacity payload. Only the first
// Length bytes of Payload are meaningful.
//
// Wire layout (little-endian):
//
//	to(2) | from(2) | type(1) | length(1) | payload(length)
type Packet struct {
	Header
	Length  uint8
	Payload [MaxPayloadSize]byte
}

// NewPacket assembles a packet from a header and payload bytes.
func NewPacket(h Header, payload []byte) (Packet, error) {
	var p Packet
	if err := p.Set(h, payload); err != nil {
		return Packet{}, err
	}
	return p, nil
}

// Set overwrites the packet in place.
func (p *Packet) Set(h Header, payload []byte) error {
	if len(payload) > MaxPayloadSize {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrPayloadTooLarge, len(payload), MaxPayloadSize)
	}
	if !h.Type.Valid() {
		return fmt.Errorf("%w: 0x%02X", ErrUnknownMessageType, uint8(h.Type))
	}
	p.Header = h
	p.Length = uint8(len(payload))
	n := copy(p.Payload[:], payload)
	clear(p.Payload[n:])
	return nil
}

// Data returns the meaningful part of the payload.
func (p *Packet) Data() []byte {
	return p.Payload[:p.Length]
}

// Size returns the number of bytes the packet occupies on air.
func (p *Packet) Size() int {
	return HeaderSize + int(p.Length)
}

// MarshalTo writes the wire form of the packet into buf and returns the
// number of bytes written.
func (p *Packet) MarshalTo(buf []byte) (int, error) {
	if p.Length > MaxPayloadSize {
		return 0, fmt.Errorf("%w: %d bytes (max %d)", ErrPayloadTooLarge, p.Length, MaxPayloadSize)
	}
	size := p.Size()
	if len(buf) < size {
		return 0, fmt.Errorf("buffer too small: %d bytes (need %d)", len(buf), size)
	}

	binary.LittleEndian.PutUint16(buf[0:2], uint16(p.To))
	binary.LittleEndian.PutUint16(buf[2:4], uint16(p.From))
	buf[4] = uint8(p.Type)
	buf[5] = p.Length
	copy(buf[HeaderSize:size], p.Payload[:p.Length])
	return size, nil
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (p *Packet) MarshalBinary() ([]byte, error) {
	buf := make([]byte, p.Size())
	if _, err := p.MarshalTo(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler. Bytes after the
// payload (the transceiver always delivers a full FIFO slot) are ignored.
func (p *Packet) UnmarshalBinary(data []byte) error {
	if len(data) < HeaderSize {
		return fmt.Errorf("%w: %d bytes (need %d)", ErrShortPacket, len(data), HeaderSize)
	}

	msgType := MessageType(data[4])
	if !msgType.Valid() {
		return fmt.Errorf("%w: 0x%02X", ErrUnknownMessageType, data[4])
	}
	length := data[5]
	if length > MaxPayloadSize {
		return fmt.Errorf("%w: length field %d (max %d)", ErrPayloadTooLarge, length, MaxPayloadSize)
	}
	if len(data) < HeaderSize+int(length) {
		return fmt.Errorf("%w: length field %d but only %d payload bytes", ErrShortPacket, length, len(data)-HeaderSize)
	}

	p.To = NodeAddress(binary.LittleEndian.Uint16(data[0:2]))
	p.From = NodeAddress(binary.LittleEndian.Uint16(data[2:4]))
	p.Type = msgType
	p.Length = length
	n := copy(p.Payload[:], data[HeaderSize:HeaderSize+int(length)])
	clear(p.Payload[n:])
	return nil
}

// DecodePacket parses a packet received from the radio.
func DecodePacket(data []byte) (Packet, error) {
	var p Packet
	if err := p.UnmarshalBinary(data); err != nil {
		return Packet{}, err
	}
	return p, nil
}
