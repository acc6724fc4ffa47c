// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package nrfnet

import "fmt"

// Mode is the operating state of the network layer.
type Mode int

// Mode values
const (
	ModeListening Mode = iota
	ModeTransmitting
)

// String returns the human-readable name for a mode
func (m Mode) String() string {
	switch m {
	case ModeListening:
		return "LISTENING"
	case ModeTransmitting:
		return "TRANSMITTING"
	default:
		return "UNKNOWN"
	}
}

// ModeController switches the radio between listening and transmitting.
// Every transition flushes both FIFOs first so data from the previous
// operation never leaks into the next one.
type ModeController struct {
	radio Radio
	mode  Mode
}

// NewModeController creates a controller for radio. The radio is assumed
// to be listening until the first transition.
func NewModeController(radio Radio) *ModeController {
	return &ModeController{radio: radio, mode: ModeListening}
}

// Mode returns the current state.
func (c *ModeController) Mode() Mode {
	return c.mode
}

// Listen flushes the FIFOs and puts the radio in receive mode.
func (c *ModeController) Listen() error {
	return c.set(ModeListening, RadioModeRx)
}

// Transmit flushes the FIFOs and puts the radio in transmit mode.
func (c *ModeController) Transmit() error {
	return c.set(ModeTransmitting, RadioModeTx)
}

func (c *ModeController) set(mode Mode, hw RadioMode) error {
	if err := c.radio.FlushTx(); err != nil {
		return fmt.Errorf("flush tx: %w", err)
	}
	if err := c.radio.FlushRx(); err != nil {
		return fmt.Errorf("flush rx: %w", err)
	}
	if err := c.radio.SetMode(hw); err != nil {
		return fmt.Errorf("set radio mode %s: %w", hw, err)
	}
	c.mode = mode
	return nil
}
