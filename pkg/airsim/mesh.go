// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package airsim

import (
	"errors"
	"fmt"
	"slices"

	"github.com/Thermoquad/nrfnet/pkg/nrfnet"
)

// Message is a DATA payload delivered to a simulated node.
type Message struct {
	From    nrfnet.NodeAddress
	Payload []byte
}

// Node is one simulated network node.
type Node struct {
	Address nrfnet.NodeAddress
	// Transceiver is the node's presence on the air.
	Transceiver *Transceiver
	// Radio is what the Network drives: the transceiver itself, or a
	// wrapper around it.
	Radio nrfnet.Radio
	Net   *nrfnet.Network
	Inbox []Message
}

// Mesh is a set of started nodes sharing one Ether.
type Mesh struct {
	Ether *Ether
	Nodes map[nrfnet.NodeAddress]*Node
	order []nrfnet.NodeAddress
	opts  []nrfnet.Option
}

// NewMesh creates and starts one node per address.
func NewMesh(addrs []nrfnet.NodeAddress, opts ...nrfnet.Option) (*Mesh, error) {
	m := &Mesh{
		Ether: NewEther(),
		Nodes: make(map[nrfnet.NodeAddress]*Node, len(addrs)),
		opts:  opts,
	}
	for _, addr := range addrs {
		if _, err := m.AddNode(addr, nil); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// AddNode starts a node at addr. When wrap is non-nil the Network drives
// wrap(transceiver) instead of the transceiver directly.
func (m *Mesh) AddNode(addr nrfnet.NodeAddress, wrap func(*Transceiver) nrfnet.Radio) (*Node, error) {
	if _, dup := m.Nodes[addr]; dup {
		return nil, fmt.Errorf("duplicate node %s", addr)
	}

	node := &Node{Address: addr, Transceiver: m.Ether.NewTransceiver(addr.String())}
	node.Radio = node.Transceiver
	if wrap != nil {
		node.Radio = wrap(node.Transceiver)
	}
	node.Net = nrfnet.New(node.Radio, m.opts...)
	if err := node.Net.Begin(addr, node.deliver); err != nil {
		return nil, fmt.Errorf("begin %s: %w", addr, err)
	}

	m.Nodes[addr] = node
	m.order = append(m.order, addr)
	slices.Sort(m.order)
	return node, nil
}

func (n *Node) deliver(from nrfnet.NodeAddress, payload []byte) {
	n.Inbox = append(n.Inbox, Message{From: from, Payload: slices.Clone(payload)})
}

// Step polls every node once in address order.
func (m *Mesh) Step() error {
	var errs []error
	for _, addr := range m.order {
		if err := m.Nodes[addr].Net.Update(); err != nil {
			errs = append(errs, fmt.Errorf("node %s: %w", addr, err))
		}
	}
	return errors.Join(errs...)
}

// Settle steps the mesh until no radio has pending data or maxRounds is
// reached. It returns the number of rounds run and every Update error.
func (m *Mesh) Settle(maxRounds int) (int, error) {
	var errs []error
	rounds := 0
	for rounds < maxRounds && m.Pending() {
		if err := m.Step(); err != nil {
			errs = append(errs, err)
		}
		rounds++
	}
	return rounds, errors.Join(errs...)
}

// Pending reports whether any node has received data waiting.
func (m *Mesh) Pending() bool {
	for _, node := range m.Nodes {
		if node.Transceiver.Available() || node.Radio.Available() {
			return true
		}
	}
	return false
}

// Tree returns every address on the paths from the root to each of addrs,
// root included, sorted.
func Tree(addrs ...nrfnet.NodeAddress) ([]nrfnet.NodeAddress, error) {
	seen := map[nrfnet.NodeAddress]bool{nrfnet.RootAddress: true}
	for _, addr := range addrs {
		hops, err := nrfnet.Route(nrfnet.RootAddress, addr)
		if err != nil {
			return nil, err
		}
		for _, hop := range hops {
			seen[hop] = true
		}
	}

	tree := make([]nrfnet.NodeAddress, 0, len(seen))
	for addr := range seen {
		tree = append(tree, addr)
	}
	slices.Sort(tree)
	return tree, nil
}
