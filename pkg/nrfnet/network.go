// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package nrfnet

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// EventHandler receives DATA packets addressed to this node. The payload
// slice is only valid for the duration of the call.
type EventHandler func(from NodeAddress, payload []byte)

// Option configures a Network.
type Option func(*Network)

// WithChannel selects the RF channel configured by Begin.
func WithChannel(channel uint8) Option {
	return func(n *Network) { n.channel = channel }
}

// WithRxPipe selects the receive pipe that listens on the node's own address.
func WithRxPipe(pipe uint8) Option {
	return func(n *Network) { n.rxPipe = pipe }
}

// WithLogger sets the diagnostic sink. The default is the logrus standard logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(n *Network) { n.log = log }
}

// Network is the routing dispatcher of one node. It owns the radio: every
// radio call goes through the Network and is serialized by its mutex.
type Network struct {
	mu      sync.Mutex
	radio   Radio
	modes   *ModeController
	log     logrus.FieldLogger
	channel uint8
	rxPipe  uint8

	started bool
	node    NodeAddress
	mask    TopologyMask
	phys    PhysicalAddress
	handler EventHandler

	// Reused for every send and receive.
	txPacket Packet
	txBuf    [MaxPacketSize]byte
	rxPacket Packet
	rxBuf    [MaxPacketSize]byte

	stats *Statistics
}

// delivery is a DATA packet copied out of the receive buffer so the
// handler can run without holding the lock.
type delivery struct {
	from    NodeAddress
	length  int
	payload [MaxPayloadSize]byte
	handler EventHandler
}

// New creates a Network on top of radio. Call Begin before use.
func New(radio Radio, opts ...Option) *Network {
	n := &Network{
		radio:   radio,
		modes:   NewModeController(radio),
		log:     logrus.StandardLogger(),
		channel: DefaultChannel,
		rxPipe:  DefaultRxPipe,
		stats:   NewStatistics(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Begin assigns the node address, configures the radio to listen on the
// node's physical address and enters listening mode. An address that
// cannot be represented on air is fatal and the node does not start.
func (n *Network) Begin(node NodeAddress, handler EventHandler) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.started {
		return ErrAlreadyStarted
	}

	phys, err := PhysicalAddressOf(node)
	if err != nil {
		return err
	}

	if err := n.radio.Init(); err != nil {
		return fmt.Errorf("radio init: %w", err)
	}
	if err := n.radio.SetRxAddress(n.rxPipe, phys); err != nil {
		return fmt.Errorf("set rx address: %w", err)
	}
	if err := n.radio.SetChannel(n.channel); err != nil {
		return fmt.Errorf("set channel %d: %w", n.channel, err)
	}
	if err := n.modes.Listen(); err != nil {
		return err
	}

	n.node = node
	n.mask = Setup(node)
	n.phys = phys
	n.handler = handler
	n.log = n.log.WithField("node", node.String())
	n.started = true
	n.log.WithFields(logrus.Fields{
		"physical_address": phys.String(),
		"mask":             n.mask.String(),
		"channel":          n.channel,
	}).Info("Network started")
	return nil
}

// Send builds a packet from this node to dest and hands it to the next hop:
// the child toward dest if dest is a descendant, the parent otherwise.
// Sending to the node's own address is rejected with ErrSendToSelf. A
// missing hardware ack from the next hop returns a *TransmitError. Send
// does not retry.
func (n *Network) Send(dest NodeAddress, payload []byte, msgType MessageType) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.send(dest, payload, msgType)
}

func (n *Network) send(dest NodeAddress, payload []byte, msgType MessageType) error {
	if !n.started {
		return ErrNotStarted
	}
	if dest == n.node {
		return fmt.Errorf("%w: %s", ErrSendToSelf, dest)
	}
	if err := Validate(dest); err != nil {
		return err
	}
	if err := n.txPacket.Set(Header{To: dest, From: n.node, Type: msgType}, payload); err != nil {
		return err
	}
	size, err := n.txPacket.MarshalTo(n.txBuf[:])
	if err != nil {
		return err
	}

	nextHop, err := NextHopFor(n.node, n.mask, dest)
	if err != nil {
		return err
	}
	n.log.WithFields(logrus.Fields{
		"to":       dest.String(),
		"type":     msgType.String(),
		"next_hop": nextHop.String(),
	}).Debug("Sending packet")

	return n.transmit(nextHop, n.txBuf[:size], msgType, false)
}

// transmit moves one packet to nextHop and always returns to listening.
func (n *Network) transmit(nextHop NodeAddress, data []byte, msgType MessageType, forwarded bool) error {
	phys, err := PhysicalAddressOf(nextHop)
	if err != nil {
		return err
	}
	log := n.log.WithFields(logrus.Fields{
		"next_hop":         nextHop.String(),
		"physical_address": phys.String(),
		"type":             msgType.String(),
	})

	if err := n.radio.SetTxAddress(phys); err != nil {
		return fmt.Errorf("set tx address: %w", err)
	}
	if err := n.modes.Transmit(); err != nil {
		if listenErr := n.modes.Listen(); listenErr != nil {
			log.WithError(listenErr).Error("Cannot return to listening")
		}
		return err
	}

	txErr := n.radio.Transmit(data)
	listenErr := n.modes.Listen()
	n.stats.recordTx(msgType, forwarded, txErr)
	if listenErr != nil {
		// The next Update retries the switch back to listening.
		log.WithError(listenErr).Error("Cannot return to listening")
	}

	if txErr != nil {
		log.WithError(txErr).Warn("Transmit failed")
		return errors.Join(&TransmitError{NextHop: nextHop, Type: msgType, Err: txErr}, listenErr)
	}
	if listenErr != nil {
		return listenErr
	}
	log.Debug("Transmit acknowledged")
	return nil
}

// Update polls the radio once. With nothing available it returns nil
// without side effects. A DATA packet for this node goes to the event
// handler and is then acknowledged to its sender; the ack result is
// returned, and a failed ack does not undo the delivery. Packets for other
// nodes are relayed unchanged toward their destination.
func (n *Network) Update() error {
	d, ok, err := n.poll()
	if err != nil || !ok {
		return err
	}

	n.log.WithFields(logrus.Fields{
		"from":   d.from.String(),
		"length": d.length,
	}).Info("Incoming message")
	if d.handler != nil {
		d.handler(d.from, d.payload[:d.length])
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.send(d.from, nil, MsgAck); err != nil {
		n.log.WithError(err).WithField("to", d.from.String()).Warn("ACK failed")
		return err
	}
	n.log.WithField("to", d.from.String()).Debug("ACK sent")
	return nil
}

// poll reads and dispatches one packet. It returns ok only for a DATA
// packet that must be delivered to the handler.
func (n *Network) poll() (d delivery, ok bool, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.started {
		return d, false, ErrNotStarted
	}
	if n.modes.Mode() != ModeListening {
		if err := n.modes.Listen(); err != nil {
			return d, false, err
		}
		n.log.Info("Returned to listening")
	}
	if !n.radio.Available() {
		return d, false, nil
	}

	clear(n.rxBuf[:])
	size, err := n.radio.Receive(n.rxBuf[:])
	if err != nil {
		return d, false, fmt.Errorf("receive: %w", err)
	}

	p := &n.rxPacket
	decodeErr := p.UnmarshalBinary(n.rxBuf[:size])
	n.stats.recordRx(p, n.node, decodeErr)
	if decodeErr != nil {
		n.log.WithError(decodeErr).Warn("Dropping malformed packet")
		return d, false, decodeErr
	}

	if p.To != n.node {
		return d, false, n.forward()
	}

	switch p.Type {
	case MsgData:
		d.from = p.From
		d.length = copy(d.payload[:], p.Data())
		d.handler = n.handler
		return d, true, nil
	case MsgAck:
		n.log.WithField("from", p.From.String()).Info("ACK received")
	case MsgPing, MsgPingAck:
		// Reserved: no handling is defined for ping traffic yet.
		n.log.WithFields(logrus.Fields{
			"from": p.From.String(),
			"type": p.Type.String(),
		}).Debug("Reserved message type consumed")
	}
	return d, false, nil
}

// forward relays the packet in the receive buffer without rebuilding it,
// so the original sender stays in the header.
func (n *Network) forward() error {
	p := &n.rxPacket
	log := n.log.WithFields(logrus.Fields{
		"from": p.From.String(),
		"to":   p.To.String(),
		"type": p.Type.String(),
	})

	if err := Validate(p.To); err != nil {
		log.WithError(err).Warn("Dropping packet with invalid destination")
		return err
	}
	nextHop, err := NextHopFor(n.node, n.mask, p.To)
	if err != nil {
		return err
	}
	log.WithField("next_hop", nextHop.String()).Info("Forwarding packet")

	return n.transmit(nextHop, n.rxBuf[:p.Size()], p.Type, true)
}

// Run calls Update until ctx is done, draining every waiting packet on
// each tick. Update errors are logged, not returned, since a single lost
// packet does not stop the node.
func (n *Network) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		for ctx.Err() == nil {
			err := n.Update()
			if errors.Is(err, ErrNotStarted) {
				return err
			}
			if err != nil {
				n.log.WithError(err).Debug("Update failed")
			}
			if !n.pending() {
				break
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (n *Network) pending() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.started && n.radio.Available()
}

// Address returns the node address assigned by Begin.
func (n *Network) Address() NodeAddress {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.node
}

// Mask returns the topology mask derived from the node address.
func (n *Network) Mask() TopologyMask {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.mask
}

// PhysicalAddress returns the on-air address the node listens on.
func (n *Network) PhysicalAddress() PhysicalAddress {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.phys
}

// Mode returns the current listen/transmit state.
func (n *Network) Mode() Mode {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.modes.Mode()
}

// Stats returns a snapshot of the traffic counters with rates filled in.
func (n *Network) Stats() Statistics {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stats.CalculateRates()
	return *n.stats
}
