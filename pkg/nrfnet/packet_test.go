// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package nrfnet

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacketWireLayout(t *testing.T) {
	p, err := NewPacket(Header{To: 0o12, From: 0o1, Type: MsgData}, []byte{0xAA, 0xBB})
	require.NoError(t, err)

	data, err := p.MarshalBinary()
	require.NoError(t, err)

	// to=0x000A, from=0x0001 little-endian, type, length, payload
	want := []byte{0x0A, 0x00, 0x01, 0x00, 0x00, 0x02, 0xAA, 0xBB}
	assert.Equal(t, want, data)
	assert.Equal(t, 8, p.Size())
}

func TestPacketRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		header  Header
		payload []byte
	}{
		{"empty ack", Header{To: 0o1, From: 0, Type: MsgAck}, nil},
		{"text", Header{To: 0, From: 0o1, Type: MsgData}, []byte("hello")},
		{"full payload", Header{To: 0o54321, From: 0o12345, Type: MsgData}, bytes.Repeat([]byte{0x5A}, MaxPayloadSize)},
		{"ping", Header{To: 0o2, From: 0o7, Type: MsgPing}, nil},
		{"ping ack", Header{To: 0o7, From: 0o2, Type: MsgPingAck}, []byte{1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPacket(tt.header, tt.payload)
			require.NoError(t, err)

			data, err := p.MarshalBinary()
			require.NoError(t, err)
			assert.Len(t, data, HeaderSize+len(tt.payload))
			assert.LessOrEqual(t, len(data), MaxPacketSize)

			decoded, err := DecodePacket(data)
			require.NoError(t, err)
			assert.Equal(t, tt.header, decoded.Header)
			assert.Equal(t, len(tt.payload), int(decoded.Length))
			assert.True(t, bytes.Equal(tt.payload, decoded.Data()))
		})
	}
}

func TestNewPacketPayloadTooLarge(t *testing.T) {
	_, err := NewPacket(Header{To: 0o1, Type: MsgData}, make([]byte, MaxPayloadSize+1))
	assert.ErrorIs(t, err, ErrPayloadTooLarge)

	_, err = NewPacket(Header{To: 0o1, Type: MsgData}, make([]byte, MaxPayloadSize))
	assert.NoError(t, err)
}

func TestNewPacketUnknownType(t *testing.T) {
	_, err := NewPacket(Header{To: 0o1, Type: MessageType(9)}, nil)
	assert.ErrorIs(t, err, ErrUnknownMessageType)
}

func TestSetClearsOldPayload(t *testing.T) {
	var p Packet
	require.NoError(t, p.Set(Header{To: 0o1, Type: MsgData}, []byte("a long payload")))
	require.NoError(t, p.Set(Header{To: 0o1, Type: MsgAck}, []byte("x")))

	assert.Equal(t, []byte("x"), p.Data())
	for _, b := range p.Payload[1:] {
		require.Zero(t, b)
	}
}

func TestDecodePacketErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrShortPacket},
		{"header only partial", []byte{0x01, 0x00, 0x00, 0x00, 0x00}, ErrShortPacket},
		{"length past input", []byte{0x01, 0x00, 0x00, 0x00, 0x00, 0x04, 0xAA}, ErrShortPacket},
		{"length over max", append([]byte{0x01, 0x00, 0x00, 0x00, 0x00, 27}, make([]byte, 27)...), ErrPayloadTooLarge},
		{"unknown type", []byte{0x01, 0x00, 0x00, 0x00, 0x04, 0x00}, ErrUnknownMessageType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodePacket(tt.data)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

// A radio always returns a full 32 byte slot; the padding is ignored.
func TestDecodePacketIgnoresPadding(t *testing.T) {
	p, err := NewPacket(Header{To: 0, From: 0o1, Type: MsgData}, []byte("hi"))
	require.NoError(t, err)

	var slot [MaxPacketSize]byte
	n, err := p.MarshalTo(slot[:])
	require.NoError(t, err)
	require.Equal(t, 8, n)

	decoded, err := DecodePacket(slot[:])
	require.NoError(t, err)
	assert.Equal(t, []byte("hi"), decoded.Data())
}

func TestMarshalToShortBuffer(t *testing.T) {
	p, err := NewPacket(Header{To: 0o1, Type: MsgData}, []byte("hello"))
	require.NoError(t, err)

	_, err = p.MarshalTo(make([]byte, 10))
	assert.Error(t, err)
}

func TestMessageTypeString(t *testing.T) {
	assert.Equal(t, "DATA", MsgData.String())
	assert.Equal(t, "ACK", MsgAck.String())
	assert.Equal(t, "PING", MsgPing.String())
	assert.Equal(t, "PING_ACK", MsgPingAck.String())
	assert.False(t, MessageType(4).Valid())
}

func TestFormatPacket(t *testing.T) {
	p, err := NewPacket(Header{To: 0o2, From: 0o11, Type: MsgData}, []byte("hello"))
	require.NoError(t, err)

	at := time.Date(2025, 1, 2, 13, 14, 15, 16_000_000, time.UTC)
	out := FormatPacket(&p, at)

	assert.Contains(t, out, "[13:14:15.016] DATA (0x00) 011 -> 02 len=5")
	assert.Contains(t, out, "68 65 6C 6C 6F")
	assert.Contains(t, out, `Text:    "hello"`)

	ack, err := NewPacket(Header{To: 0o11, From: 0o2, Type: MsgAck}, nil)
	require.NoError(t, err)
	out = FormatPacket(&ack, at)
	assert.NotContains(t, out, "Payload")
}

func TestFormatPayloadBinary(t *testing.T) {
	out := FormatPayload([]byte{0x00, 0xFF})
	assert.Contains(t, out, "00 FF")
	assert.NotContains(t, out, "Text")
}

func TestIsPrintable(t *testing.T) {
	assert.True(t, IsPrintable([]byte("hello ~")))
	assert.False(t, IsPrintable(nil))
	assert.False(t, IsPrintable([]byte("tab\t")))
	assert.False(t, IsPrintable([]byte{0x7F}))
}

func TestFormatRoute(t *testing.T) {
	hops, err := Route(0o11, 0o2)
	require.NoError(t, err)
	assert.Equal(t, "011 -> 01 -> 0 -> 02", FormatRoute(0o11, hops))
}
