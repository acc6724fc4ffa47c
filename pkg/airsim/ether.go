// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package airsim simulates nRF24L01+ transceivers sharing the air.
//
// A Transceiver behaves like the real chip as far as the network layer can
// observe: six receive pipes, a transmit address, a three slot receive FIFO
// and hardware auto-acknowledge. A transmission is acknowledged only when a
// listening transceiver on the same channel owns the destination address
// and still has room in its FIFO. Payloads are padded to the 32 byte static
// payload width.
package airsim

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Thermoquad/nrfnet/pkg/nrfnet"
)

// Hardware limits of the simulated chip
const (
	FIFODepth    = 3
	PipeCount    = 6
	PayloadWidth = nrfnet.MaxPacketSize
)

// Errors reported by simulated transceivers
var (
	ErrNoAck           = errors.New("no ack from receiver")
	ErrNotTransmitting = errors.New("radio is not in transmit mode")
	ErrNotInitialized  = errors.New("radio is not initialized")
	ErrFIFOEmpty       = errors.New("rx fifo empty")
	ErrInvalidPipe     = errors.New("invalid rx pipe")
)

// Frame describes one transmission on the air.
type Frame struct {
	From    string // name of the sending transceiver
	To      string // name of the acknowledging transceiver, empty if none
	Address nrfnet.PhysicalAddress
	Channel uint8
	Data    []byte
	Acked   bool
}

// Ether is the shared medium. All transceivers created from the same Ether
// can hear each other.
type Ether struct {
	mu       sync.Mutex
	radios   []*Transceiver
	observer func(Frame)
}

// NewEther creates an empty medium.
func NewEther() *Ether {
	return &Ether{}
}

// OnFrame registers fn to be called after every transmission.
func (e *Ether) OnFrame(fn func(Frame)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observer = fn
}

// NewTransceiver attaches a new transceiver to the medium.
func (e *Ether) NewTransceiver(name string) *Transceiver {
	e.mu.Lock()
	defer e.mu.Unlock()
	t := &Transceiver{ether: e, name: name, attached: true}
	e.radios = append(e.radios, t)
	return t
}

// Detach takes a transceiver off the air, as if it lost power.
func (e *Ether) Detach(t *Transceiver) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t.attached = false
	t.rxFIFO = nil
}

// Attach puts a detached transceiver back on the air.
func (e *Ether) Attach(t *Transceiver) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t.attached = true
}

// receiverFor finds the transceiver that would acknowledge a frame sent by
// from. Must be called with e.mu held.
func (e *Ether) receiverFor(from *Transceiver) *Transceiver {
	for _, r := range e.radios {
		if r == from || !r.attached || !r.initialized {
			continue
		}
		if r.mode != nrfnet.RadioModeRx || r.channel != from.channel {
			continue
		}
		if r.listensOn(from.txAddr) {
			return r
		}
	}
	return nil
}

// Transceiver is one simulated radio. It implements nrfnet.Radio.
type Transceiver struct {
	ether *Ether
	name  string

	// All fields below are guarded by ether.mu.
	attached    bool
	initialized bool
	channel     uint8
	rxAddr      [PipeCount]nrfnet.PhysicalAddress
	rxEnabled   [PipeCount]bool
	txAddr      nrfnet.PhysicalAddress
	mode        nrfnet.RadioMode
	rxFIFO      [][]byte
	history     []string
	dropped     int
}

var _ nrfnet.Radio = (*Transceiver)(nil)

// Name returns the name given at creation.
func (t *Transceiver) Name() string {
	return t.name
}

func (t *Transceiver) listensOn(addr nrfnet.PhysicalAddress) bool {
	for pipe := range t.rxAddr {
		if t.rxEnabled[pipe] && t.rxAddr[pipe] == addr {
			return true
		}
	}
	return false
}

func (t *Transceiver) record(op string) {
	t.history = append(t.history, op)
}

// Init powers the radio up in receive mode with empty FIFOs.
func (t *Transceiver) Init() error {
	t.ether.mu.Lock()
	defer t.ether.mu.Unlock()
	t.record("init")
	t.initialized = true
	t.mode = nrfnet.RadioModeRx
	t.rxFIFO = nil
	return nil
}

// SetChannel selects the RF channel.
func (t *Transceiver) SetChannel(channel uint8) error {
	t.ether.mu.Lock()
	defer t.ether.mu.Unlock()
	t.record(fmt.Sprintf("channel %d", channel))
	if channel > 125 {
		return fmt.Errorf("channel %d out of range", channel)
	}
	t.channel = channel
	return nil
}

// SetRxAddress sets and enables a receive pipe.
func (t *Transceiver) SetRxAddress(pipe uint8, addr nrfnet.PhysicalAddress) error {
	t.ether.mu.Lock()
	defer t.ether.mu.Unlock()
	t.record(fmt.Sprintf("rx_address %d %s", pipe, addr))
	if int(pipe) >= PipeCount {
		return fmt.Errorf("%w: %d", ErrInvalidPipe, pipe)
	}
	t.rxAddr[pipe] = addr
	t.rxEnabled[pipe] = true
	return nil
}

// SetTxAddress sets the destination of the next transmission.
func (t *Transceiver) SetTxAddress(addr nrfnet.PhysicalAddress) error {
	t.ether.mu.Lock()
	defer t.ether.mu.Unlock()
	t.record(fmt.Sprintf("tx_address %s", addr))
	t.txAddr = addr
	return nil
}

// Transmit puts one payload on the air and waits for the auto-ack.
func (t *Transceiver) Transmit(data []byte) error {
	t.ether.mu.Lock()
	t.record("transmit")

	if !t.initialized {
		t.ether.mu.Unlock()
		return ErrNotInitialized
	}
	if t.mode != nrfnet.RadioModeTx {
		t.ether.mu.Unlock()
		return ErrNotTransmitting
	}
	if len(data) > PayloadWidth {
		t.ether.mu.Unlock()
		return fmt.Errorf("payload of %d bytes exceeds %d", len(data), PayloadWidth)
	}

	frame := Frame{From: t.name, Address: t.txAddr, Channel: t.channel}
	frame.Data = make([]byte, PayloadWidth)
	copy(frame.Data, data)

	var err error
	r := t.ether.receiverFor(t)
	switch {
	case !t.attached || r == nil:
		err = ErrNoAck
	case len(r.rxFIFO) >= FIFODepth:
		r.dropped++
		err = ErrNoAck
	default:
		r.rxFIFO = append(r.rxFIFO, frame.Data)
		frame.To = r.name
		frame.Acked = true
	}
	observer := t.ether.observer
	t.ether.mu.Unlock()

	if observer != nil {
		observer(frame)
	}
	return err
}

// Receive pops the oldest payload from the receive FIFO.
func (t *Transceiver) Receive(buf []byte) (int, error) {
	t.ether.mu.Lock()
	defer t.ether.mu.Unlock()
	t.record("receive")
	if len(t.rxFIFO) == 0 {
		return 0, ErrFIFOEmpty
	}
	data := t.rxFIFO[0]
	t.rxFIFO = t.rxFIFO[1:]
	return copy(buf, data), nil
}

// Available reports whether the receive FIFO holds a payload.
func (t *Transceiver) Available() bool {
	t.ether.mu.Lock()
	defer t.ether.mu.Unlock()
	return len(t.rxFIFO) > 0
}

// FlushTx is a no-op: Transmit never leaves payloads behind.
func (t *Transceiver) FlushTx() error {
	t.ether.mu.Lock()
	defer t.ether.mu.Unlock()
	t.record("flush_tx")
	return nil
}

// FlushRx empties the receive FIFO.
func (t *Transceiver) FlushRx() error {
	t.ether.mu.Lock()
	defer t.ether.mu.Unlock()
	t.record("flush_rx")
	t.rxFIFO = nil
	return nil
}

// SetMode switches between receive and transmit.
func (t *Transceiver) SetMode(mode nrfnet.RadioMode) error {
	t.ether.mu.Lock()
	defer t.ether.mu.Unlock()
	t.record("mode " + mode.String())
	t.mode = mode
	return nil
}

// Inject places a raw payload in the receive FIFO as if it arrived over
// the air. It returns false when the FIFO is full.
func (t *Transceiver) Inject(data []byte) bool {
	t.ether.mu.Lock()
	defer t.ether.mu.Unlock()
	if len(t.rxFIFO) >= FIFODepth {
		t.dropped++
		return false
	}
	buf := make([]byte, PayloadWidth)
	copy(buf, data)
	t.rxFIFO = append(t.rxFIFO, buf)
	return true
}

// History returns the radio operations performed so far, oldest first.
func (t *Transceiver) History() []string {
	t.ether.mu.Lock()
	defer t.ether.mu.Unlock()
	return append([]string(nil), t.history...)
}

// ResetHistory clears the operation history.
func (t *Transceiver) ResetHistory() {
	t.ether.mu.Lock()
	defer t.ether.mu.Unlock()
	t.history = nil
}

// Mode returns the current hardware mode.
func (t *Transceiver) Mode() nrfnet.RadioMode {
	t.ether.mu.Lock()
	defer t.ether.mu.Unlock()
	return t.mode
}

// Dropped returns the number of payloads lost to a full receive FIFO.
func (t *Transceiver) Dropped() int {
	t.ether.mu.Lock()
	defer t.ether.mu.Unlock()
	return t.dropped
}
