// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package nrfnet

// RadioMode is the hardware operating mode of the transceiver.
type RadioMode uint8

// Radio mode values
const (
	RadioModeRx RadioMode = 0x00
	RadioModeTx RadioMode = 0x01
)

// String returns the human-readable name for a radio mode
func (m RadioMode) String() string {
	switch m {
	case RadioModeRx:
		return "RX"
	case RadioModeTx:
		return "TX"
	default:
		return "UNKNOWN"
	}
}

// Radio is the transceiver driver the network layer runs on. The driver's
// own transfer primitives bound their waiting internally; none of these
// calls are expected to block indefinitely.
//
// Implementations are not required to be safe for concurrent use: Network
// serializes every call.
type Radio interface {
	// Init brings the transceiver into a known powered-up state.
	Init() error
	// SetChannel selects the RF channel (0..125 on nRF24L01+).
	SetChannel(channel uint8) error
	// SetRxAddress sets the address a receive pipe listens on.
	SetRxAddress(pipe uint8, addr PhysicalAddress) error
	// SetTxAddress sets the destination of the next Transmit.
	SetTxAddress(addr PhysicalAddress) error
	// Transmit sends one packet and reports whether the receiver
	// acknowledged it. A nil error means the hardware ack arrived.
	Transmit(data []byte) error
	// Receive copies the oldest received packet into buf.
	Receive(buf []byte) (int, error)
	// Available reports whether a received packet is waiting.
	Available() bool
	// FlushTx drops every pending transmit payload.
	FlushTx() error
	// FlushRx drops every pending received payload.
	FlushRx() error
	// SetMode switches between receive and transmit operation.
	SetMode(mode RadioMode) error
}
