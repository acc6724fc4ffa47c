// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package nrfnet

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the network layer. Use errors.Is to match
// them through the typed errors below.
var (
	ErrAddressEncoding    = errors.New("invalid node address")
	ErrNoParent           = errors.New("root node has no parent")
	ErrPayloadTooLarge    = errors.New("payload too large")
	ErrShortPacket        = errors.New("packet too short")
	ErrUnknownMessageType = errors.New("unknown message type")
	ErrTransmitFailed     = errors.New("transmit failed")
	ErrNotStarted         = errors.New("network not started")
	ErrAlreadyStarted     = errors.New("network already started")
	ErrSendToSelf         = errors.New("destination is own address")
)

// AddressError reports a node address that cannot be represented on air.
type AddressError struct {
	Node   NodeAddress
	Level  int // 1-based tree level of the offending digit, 0 if not digit related
	Reason string
}

// Error implements the error interface
func (e *AddressError) Error() string {
	if e.Level > 0 {
		return fmt.Sprintf("invalid node address %s: %s at level %d", e.Node, e.Reason, e.Level)
	}
	return fmt.Sprintf("invalid node address %s: %s", e.Node, e.Reason)
}

// Unwrap makes AddressError match ErrAddressEncoding.
func (e *AddressError) Unwrap() error {
	return ErrAddressEncoding
}

// TransmitError reports a transmit attempt the radio could not complete,
// usually because the next hop did not acknowledge at the hardware level.
type TransmitError struct {
	NextHop NodeAddress
	Type    MessageType
	Err     error // error reported by the radio, may be nil
}

// Error implements the error interface
func (e *TransmitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transmit %s to next hop %s failed: %v", e.Type, e.NextHop, e.Err)
	}
	return fmt.Sprintf("transmit %s to next hop %s failed", e.Type, e.NextHop)
}

// Is makes TransmitError match ErrTransmitFailed.
func (e *TransmitError) Is(target error) bool {
	return target == ErrTransmitFailed
}

// Unwrap returns the underlying radio error.
func (e *TransmitError) Unwrap() error {
	return e.Err
}
