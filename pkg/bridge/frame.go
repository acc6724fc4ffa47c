// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bridge

import (
	"fmt"
	"time"

	"github.com/Thermoquad/nrfnet/pkg/nrfnet"
)

// Frame is one decoded bridge message
type Frame struct {
	Type      uint8
	Payload   map[int]interface{} // nil for empty payloads
	Timestamp time.Time
}

// NewFrame creates a frame from message type and payload map.
func NewFrame(msgType uint8, payload map[int]interface{}) *Frame {
	return &Frame{
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// Uint returns payload key as an unsigned integer.
func (f *Frame) Uint(key int) (uint64, bool) {
	switch v := f.Payload[key].(type) {
	case uint64:
		return v, true
	case int64:
		if v >= 0 {
			return uint64(v), true
		}
	}
	return 0, false
}

// Bool returns payload key as a bool.
func (f *Frame) Bool(key int) (bool, bool) {
	v, ok := f.Payload[key].(bool)
	return v, ok
}

// Bytes returns payload key as a byte string.
func (f *Frame) Bytes(key int) ([]byte, bool) {
	v, ok := f.Payload[key].([]byte)
	return v, ok
}

// Text returns payload key as a text string.
func (f *Frame) Text(key int) (string, bool) {
	v, ok := f.Payload[key].(string)
	return v, ok
}

// PhysicalAddress returns payload key as a 5 byte on-air address.
func (f *Frame) PhysicalAddress(key int) (nrfnet.PhysicalAddress, bool) {
	var addr nrfnet.PhysicalAddress
	data, ok := f.Bytes(key)
	if !ok || len(data) != len(addr) {
		return addr, false
	}
	copy(addr[:], data)
	return addr, true
}

// Seq returns the request sequence number, if the frame carries one.
func (f *Frame) Seq() (uint64, bool) {
	return f.Uint(KeySeq)
}

// SetSeq tags the frame with a request sequence number.
func (f *Frame) SetSeq(seq uint64) {
	if f.Payload == nil {
		f.Payload = make(map[int]interface{}, 1)
	}
	f.Payload[KeySeq] = seq
}

// EncodeFrame creates a complete wire-formatted bridge frame.
// Returns the frame bytes ready for transmission, including framing and byte stuffing.
func EncodeFrame(msgType uint8, payload map[int]interface{}) ([]byte, error) {
	body, err := encodeCBORBody(msgType, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode CBOR body: %w", err)
	}

	if len(body) > MaxBodySize {
		return nil, fmt.Errorf("CBOR body too large: %d bytes (max %d)", len(body), MaxBodySize)
	}

	// Length byte + body is what gets CRC'd and byte-stuffed
	data := make([]byte, 0, MaxFrameSize)
	data = append(data, uint8(len(body)))
	data = append(data, body...)

	crc := CalculateCRC(data)
	data = append(data, byte(crc>>8), byte(crc&0xFF))

	stuffed := stuffBytes(data)

	frame := make([]byte, 0, len(stuffed)+2)
	frame = append(frame, StartByte)
	frame = append(frame, stuffed...)
	frame = append(frame, EndByte)

	return frame, nil
}

// Encode encodes a Frame to wire format.
func (f *Frame) Encode() ([]byte, error) {
	return EncodeFrame(f.Type, f.Payload)
}

// stuffBytes applies byte stuffing to escape special bytes.
// Special bytes (START, END, ESC) are replaced with ESC + (byte XOR EscXor).
func stuffBytes(data []byte) []byte {
	result := make([]byte, 0, len(data)*2)

	for _, b := range data {
		if b == StartByte || b == EndByte || b == EscByte {
			result = append(result, EscByte, b^EscXor)
		} else {
			result = append(result, b)
		}
	}

	return result
}

// UnstuffBytes removes byte stuffing from escaped data.
// This is the inverse of stuffBytes.
func UnstuffBytes(data []byte) ([]byte, error) {
	result := make([]byte, 0, len(data))
	escapeNext := false

	for _, b := range data {
		if escapeNext {
			result = append(result, b^EscXor)
			escapeNext = false
		} else if b == EscByte {
			escapeNext = true
		} else {
			result = append(result, b)
		}
	}

	if escapeNext {
		return nil, fmt.Errorf("incomplete escape sequence at end of data")
	}

	return result, nil
}
