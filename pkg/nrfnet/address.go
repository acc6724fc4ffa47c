// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package nrfnet

import (
	"fmt"
	"strconv"
	"strings"
)

// NodeAddress is a logical node address. Each octal digit (3 bits) names one
// tree level, lowest digit first. Zero is the root.
type NodeAddress uint16

// PhysicalAddress is the 5-byte on-air address the transceiver listens on.
type PhysicalAddress [PhysicalAddressSize]byte

// TopologyMask marks the address bits that belong to a node and its
// ancestors. The remaining high bits are free for descendants.
type TopologyMask uint16

// String formats the address in octal with a leading zero, e.g. "011".
// The root is "0".
func (n NodeAddress) String() string {
	if n == RootAddress {
		return "0"
	}
	return "0" + strconv.FormatUint(uint64(n), 8)
}

// Depth returns the tree level of the address. The root is level 0.
func (n NodeAddress) Depth() int {
	depth := 0
	for v := uint16(n); v != 0; v >>= DigitBits {
		depth++
	}
	return depth
}

// String formats the physical address as space separated hex bytes.
func (p PhysicalAddress) String() string {
	parts := make([]string, len(p))
	for i, b := range p {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, " ")
}

// String formats the mask as a 16-bit hex value.
func (m TopologyMask) String() string {
	return fmt.Sprintf("0x%04X", uint16(m))
}

// ParseNodeAddress parses an octal node address such as "011" or "0".
func ParseNodeAddress(s string) (NodeAddress, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 8, 16)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an octal address", ErrAddressEncoding, s)
	}
	n := NodeAddress(v)
	if err := Validate(n); err != nil {
		return 0, err
	}
	return n, nil
}

// Validate checks that every digit up to the deepest level is in 1..7 and
// that the address fits in MaxDepth levels.
func Validate(n NodeAddress) error {
	level := 0
	for v := uint16(n); v != 0; v >>= DigitBits {
		level++
		if level > MaxDepth {
			return &AddressError{Node: n, Reason: fmt.Sprintf("deeper than %d levels", MaxDepth)}
		}
		if v&DigitMask == 0 {
			return &AddressError{Node: n, Level: level, Reason: "digit 0 before the deepest level"}
		}
	}
	return nil
}

// PhysicalAddressOf derives the on-air address of a node. Byte i carries the
// translated digit of level i+1; unused bytes keep SentinelByte. The root
// maps to all sentinel bytes.
func PhysicalAddressOf(n NodeAddress) (PhysicalAddress, error) {
	var addr PhysicalAddress
	for i := range addr {
		addr[i] = SentinelByte
	}
	if err := Validate(n); err != nil {
		return addr, err
	}

	count := 0
	for v := uint16(n); v != 0; v >>= DigitBits {
		addr[count] = addressPool[(v&DigitMask)-1]
		count++
	}
	return addr, nil
}

// Setup computes the topology mask of a node: the complement of the
// smallest 0xFFFF<<3k that has no bit in common with own.
func Setup(own NodeAddress) TopologyMask {
	check := uint16(0xFFFF)
	for check&uint16(own) != 0 {
		check <<= DigitBits
	}
	return TopologyMask(^check)
}

// IsDescendant reports whether candidate lies in the subtree of own. A node
// counts as part of its own subtree.
func IsDescendant(own NodeAddress, mask TopologyMask, candidate NodeAddress) bool {
	return uint16(candidate)&uint16(mask) == uint16(own)
}

// NextHop returns the child of own on the path to target, which must be a
// descendant of own: own's bits plus target's digit one level deeper.
func NextHop(own NodeAddress, mask TopologyMask, target NodeAddress) NodeAddress {
	childMask := ^(^uint16(mask) << DigitBits)
	nextDigit := uint16(target) & childMask &^ uint16(mask)
	return own | NodeAddress(nextDigit)
}

// Parent strips the deepest digit of own. The root has no parent.
func Parent(own NodeAddress, mask TopologyMask) (NodeAddress, error) {
	if own == RootAddress {
		return RootAddress, ErrNoParent
	}
	return NodeAddress(uint16(mask>>DigitBits) & uint16(own)), nil
}

// Child returns the address of child digit (1..7) under parent.
func Child(parent NodeAddress, digit uint8) (NodeAddress, error) {
	if err := Validate(parent); err != nil {
		return 0, err
	}
	if digit < 1 || digit > DigitMask {
		return 0, &AddressError{Node: parent, Level: parent.Depth() + 1, Reason: fmt.Sprintf("child digit %d outside 1..7", digit)}
	}
	depth := parent.Depth()
	if depth >= MaxDepth {
		return 0, &AddressError{Node: parent, Reason: "node is at maximum depth"}
	}
	return parent | NodeAddress(uint16(digit)<<(DigitBits*depth)), nil
}

// NextHopFor makes the routing decision a node takes for a packet addressed
// to dest: down toward a descendant, otherwise up to the parent.
func NextHopFor(own NodeAddress, mask TopologyMask, dest NodeAddress) (NodeAddress, error) {
	if IsDescendant(own, mask, dest) {
		return NextHop(own, mask, dest), nil
	}
	return Parent(own, mask)
}

// Route lists the hops a packet takes from one node to another, excluding
// from and including to.
func Route(from, to NodeAddress) ([]NodeAddress, error) {
	if err := Validate(from); err != nil {
		return nil, err
	}
	if err := Validate(to); err != nil {
		return nil, err
	}

	hops := []NodeAddress{}
	cur := from
	// A route climbs at most MaxDepth levels and descends at most MaxDepth.
	for i := 0; cur != to && i < 2*MaxDepth; i++ {
		next, err := NextHopFor(cur, Setup(cur), to)
		if err != nil {
			return nil, err
		}
		hops = append(hops, next)
		cur = next
	}
	if cur != to {
		return nil, fmt.Errorf("no route from %s to %s", from, to)
	}
	return hops, nil
}
