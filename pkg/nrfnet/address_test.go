// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package nrfnet

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhysicalAddressOf(t *testing.T) {
	tests := []struct {
		name string
		node NodeAddress
		want PhysicalAddress
	}{
		{"root", 0, PhysicalAddress{0xCC, 0xCC, 0xCC, 0xCC, 0xCC}},
		{"first child", 0o1, PhysicalAddress{0xC3, 0xCC, 0xCC, 0xCC, 0xCC}},
		{"second child", 0o2, PhysicalAddress{0x3C, 0xCC, 0xCC, 0xCC, 0xCC}},
		{"last child", 0o7, PhysicalAddress{0xEC, 0xCC, 0xCC, 0xCC, 0xCC}},
		{"grandchild", 0o11, PhysicalAddress{0xC3, 0xC3, 0xCC, 0xCC, 0xCC}},
		{"level 1 digit first", 0o12, PhysicalAddress{0x3C, 0xC3, 0xCC, 0xCC, 0xCC}},
		{"three levels", 0o123, PhysicalAddress{0x33, 0x3C, 0xC3, 0xCC, 0xCC}},
		{"deepest", 0o77777, PhysicalAddress{0xEC, 0xEC, 0xEC, 0xEC, 0xEC}},
		{"every pool entry", 0o54321, PhysicalAddress{0xC3, 0x3C, 0x33, 0xCE, 0x3E}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PhysicalAddressOf(tt.node)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPhysicalAddressOfInvalid(t *testing.T) {
	tests := []struct {
		name  string
		node  NodeAddress
		level int
	}{
		{"zero digit at level 1", 0o10, 1},
		{"zero digit at level 2", 0o101, 2},
		{"zero digit below six levels", 0o100000, 1},
		{"six levels", 0o111111, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PhysicalAddressOf(tt.node)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrAddressEncoding)

			var addrErr *AddressError
			require.True(t, errors.As(err, &addrErr))
			assert.Equal(t, tt.node, addrErr.Node)
			assert.Equal(t, tt.level, addrErr.Level)

			assert.Equal(t, PhysicalAddress{0xCC, 0xCC, 0xCC, 0xCC, 0xCC}, got)
		})
	}
}

// Distinct valid addresses never share a physical address.
func TestPhysicalAddressUnique(t *testing.T) {
	seen := make(map[PhysicalAddress]NodeAddress)
	for v := 0; v <= 0xFFFF; v++ {
		n := NodeAddress(v)
		phys, err := PhysicalAddressOf(n)
		if err != nil {
			continue
		}
		if other, dup := seen[phys]; dup {
			t.Fatalf("%s and %s both map to %s", other, n, phys)
		}
		seen[phys] = n
	}
	// 1 + 7 + 7^2 + 7^3 + 7^4 + 7^5 valid addresses
	assert.Len(t, seen, 19608)
}

func TestSetup(t *testing.T) {
	tests := []struct {
		node NodeAddress
		mask TopologyMask
	}{
		{0, 0x0000},
		{0o1, 0x0007},
		{0o7, 0x0007},
		{0o11, 0x003F},
		{0o123, 0x01FF},
		{0o1234, 0x0FFF},
		{0o12345, 0x7FFF},
	}

	for _, tt := range tests {
		t.Run(tt.node.String(), func(t *testing.T) {
			mask := Setup(tt.node)
			assert.Equal(t, tt.mask, mask)
			assert.Equal(t, uint16(tt.node), uint16(tt.node)&uint16(mask), "mask covers own digits")
		})
	}
}

func TestIsDescendant(t *testing.T) {
	tests := []struct {
		own       NodeAddress
		candidate NodeAddress
		want      bool
	}{
		{0, 0o2, true},
		{0, 0o12345, true},
		{0o1, 0o11, true},
		{0o1, 0o21, true},
		{0o1, 0o321, true},
		{0o1, 0o1, true},
		{0o1, 0o2, false},
		{0o1, 0o12, false},
		{0o1, 0, false},
		{0o11, 0o1, false},
		{0o11, 0o111, true},
		{0o11, 0o121, false},
	}

	for _, tt := range tests {
		got := IsDescendant(tt.own, Setup(tt.own), tt.candidate)
		assert.Equal(t, tt.want, got, "IsDescendant(%s, %s)", tt.own, tt.candidate)
	}
}

func TestNextHop(t *testing.T) {
	tests := []struct {
		own    NodeAddress
		target NodeAddress
		want   NodeAddress
	}{
		{0, 0o2, 0o2},
		{0, 0o12, 0o2},
		{0, 0o54321, 0o1},
		{0o1, 0o11, 0o11},
		{0o1, 0o321, 0o21},
		{0o3, 0o123, 0o23},
		{0o23, 0o123, 0o123},
		{0o21, 0o54321, 0o321},
	}

	for _, tt := range tests {
		mask := Setup(tt.own)
		require.True(t, IsDescendant(tt.own, mask, tt.target))
		got := NextHop(tt.own, mask, tt.target)
		assert.Equal(t, tt.want, got, "NextHop(%s, %s)", tt.own, tt.target)
		assert.Equal(t, tt.own.Depth()+1, got.Depth(), "next hop is one level deeper")
	}
}

func TestParent(t *testing.T) {
	tests := []struct {
		own  NodeAddress
		want NodeAddress
	}{
		{0o1, 0},
		{0o7, 0},
		{0o11, 0o1},
		{0o21, 0o1},
		{0o123, 0o23},
		{0o54321, 0o4321},
	}

	for _, tt := range tests {
		got, err := Parent(tt.own, Setup(tt.own))
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "Parent(%s)", tt.own)
	}

	_, err := Parent(RootAddress, Setup(RootAddress))
	assert.ErrorIs(t, err, ErrNoParent)
}

// Walking up from any valid node reaches the root in Depth steps.
func TestParentChainReachesRoot(t *testing.T) {
	for v := 1; v <= 0xFFFF; v++ {
		n := NodeAddress(v)
		if Validate(n) != nil {
			continue
		}
		cur, steps := n, 0
		for cur != RootAddress {
			parent, err := Parent(cur, Setup(cur))
			require.NoError(t, err)
			require.True(t, IsDescendant(parent, Setup(parent), cur))
			cur = parent
			steps++
		}
		if steps != n.Depth() {
			t.Fatalf("%s reached root in %d steps, depth %d", n, steps, n.Depth())
		}
	}
}

func TestNextHopForSiblingGoesToParent(t *testing.T) {
	own := NodeAddress(0o1)
	hop, err := NextHopFor(own, Setup(own), 0o2)
	require.NoError(t, err)
	assert.Equal(t, RootAddress, hop)
}

func TestChild(t *testing.T) {
	c, err := Child(RootAddress, 1)
	require.NoError(t, err)
	assert.Equal(t, NodeAddress(0o1), c)

	c, err = Child(0o1, 2)
	require.NoError(t, err)
	assert.Equal(t, NodeAddress(0o21), c)

	p, err := Parent(c, Setup(c))
	require.NoError(t, err)
	assert.Equal(t, NodeAddress(0o1), p)

	_, err = Child(0o1, 0)
	assert.ErrorIs(t, err, ErrAddressEncoding)
	_, err = Child(0o1, 8)
	assert.ErrorIs(t, err, ErrAddressEncoding)
	_, err = Child(0o77777, 1)
	assert.ErrorIs(t, err, ErrAddressEncoding)
}

func TestRoute(t *testing.T) {
	tests := []struct {
		from, to NodeAddress
		want     []NodeAddress
	}{
		{0o11, 0o2, []NodeAddress{0o1, 0, 0o2}},
		{0, 0o123, []NodeAddress{0o3, 0o23, 0o123}},
		{0o123, 0, []NodeAddress{0o23, 0o3, 0}},
		{0o11, 0o21, []NodeAddress{0o1, 0o21}},
		{0o1, 0o1, []NodeAddress{}},
	}

	for _, tt := range tests {
		got, err := Route(tt.from, tt.to)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "Route(%s, %s)", tt.from, tt.to)
	}

	_, err := Route(0o10, 0o1)
	assert.ErrorIs(t, err, ErrAddressEncoding)
}

func TestParseNodeAddress(t *testing.T) {
	n, err := ParseNodeAddress("011")
	require.NoError(t, err)
	assert.Equal(t, NodeAddress(0o11), n)

	n, err = ParseNodeAddress(" 0 ")
	require.NoError(t, err)
	assert.Equal(t, RootAddress, n)

	for _, bad := range []string{"", "8", "0x1", "010", "0111111", "0200000"} {
		_, err := ParseNodeAddress(bad)
		assert.ErrorIs(t, err, ErrAddressEncoding, "input %q", bad)
	}
}

func TestNodeAddressString(t *testing.T) {
	assert.Equal(t, "0", RootAddress.String())
	assert.Equal(t, "01", NodeAddress(0o1).String())
	assert.Equal(t, "0123", NodeAddress(0o123).String())

	for _, n := range []NodeAddress{0, 0o1, 0o11, 0o54321} {
		parsed, err := ParseNodeAddress(n.String())
		require.NoError(t, err)
		assert.Equal(t, n, parsed)
	}
}
