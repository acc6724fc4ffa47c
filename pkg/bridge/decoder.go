// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bridge

import (
	"errors"
	"fmt"
	"time"
)

// ErrCRCMismatch is returned when a complete frame fails its checksum.
var ErrCRCMismatch = errors.New("CRC mismatch")

// Decoder implements the bridge frame decoder state machine
type Decoder struct {
	state       int
	buffer      []byte
	bufferIndex int
	escapeNext  bool
	length      int
	crc         uint16
}

// NewDecoder creates a new frame decoder
func NewDecoder() *Decoder {
	return &Decoder{
		state:  stateIdle,
		buffer: make([]byte, MaxFrameSize),
	}
}

// Reset resets the decoder state to idle
func (d *Decoder) Reset() {
	d.state = stateIdle
	d.bufferIndex = 0
	d.escapeNext = false
	d.length = 0
	d.crc = 0
}

// DecodeByte processes a single byte through the decoder state machine
// Returns a completed frame, or nil if the frame is incomplete
// Returns an error if decoding fails
func (d *Decoder) DecodeByte(b byte) (*Frame, error) {
	// Framing bytes are never escaped on the wire
	if b == StartByte {
		d.Reset()
		d.state = stateLength
		return nil, nil
	}

	if b == EndByte {
		if d.state != stateEnd || d.escapeNext {
			state := d.state
			d.Reset()
			if state == stateIdle {
				return nil, nil
			}
			return nil, fmt.Errorf("unexpected END byte in state %d", state)
		}
		return d.finish()
	}

	if d.state == stateIdle {
		// Waiting for START byte
		return nil, nil
	}

	// Handle byte stuffing
	if b == EscByte && !d.escapeNext {
		d.escapeNext = true
		return nil, nil
	}
	if d.escapeNext {
		b ^= EscXor
		d.escapeNext = false
	}

	switch d.state {
	case stateLength:
		if int(b) > MaxBodySize {
			d.Reset()
			return nil, fmt.Errorf("invalid length: %d (max %d)", b, MaxBodySize)
		}
		d.length = int(b)
		d.buffer[0] = b
		d.bufferIndex = 1
		if d.length == 0 {
			d.state = stateCRC1
		} else {
			d.state = stateBody
		}
		return nil, nil

	case stateBody:
		if d.bufferIndex >= MaxFrameSize {
			d.Reset()
			return nil, fmt.Errorf("buffer overflow: frame exceeds max size")
		}
		d.buffer[d.bufferIndex] = b
		d.bufferIndex++
		if d.bufferIndex-1 >= d.length {
			d.state = stateCRC1
		}
		return nil, nil

	case stateCRC1:
		d.crc = uint16(b) << 8
		d.state = stateCRC2
		return nil, nil

	case stateCRC2:
		d.crc |= uint16(b)
		d.state = stateEnd
		return nil, nil

	case stateEnd:
		d.Reset()
		return nil, fmt.Errorf("expected END byte, got 0x%02X", b)

	default:
		d.Reset()
		return nil, fmt.Errorf("invalid state: %d", d.state)
	}
}

// finish validates the CRC and parses the CBOR body of a complete frame.
func (d *Decoder) finish() (*Frame, error) {
	defer d.Reset()

	calculated := CalculateCRC(d.buffer[:d.bufferIndex])
	if d.crc != calculated {
		return nil, fmt.Errorf("%w: expected 0x%04X, got 0x%04X", ErrCRCMismatch, calculated, d.crc)
	}

	msgType, payload, err := ParseCBORMessage(d.buffer[1:d.bufferIndex])
	if err != nil {
		return nil, err
	}

	return &Frame{Type: msgType, Payload: payload, Timestamp: time.Now()}, nil
}

// Decode feeds every byte of data through the decoder and returns the
// completed frames. Decode errors are collected and do not stop decoding.
func (d *Decoder) Decode(data []byte) ([]*Frame, []error) {
	var frames []*Frame
	var errs []error
	for _, b := range data {
		frame, err := d.DecodeByte(b)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if frame != nil {
			frames = append(frames, frame)
		}
	}
	return frames, errs
}
