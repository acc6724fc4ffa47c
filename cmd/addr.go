// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/Thermoquad/nrfnet/pkg/nrfnet"
	"github.com/spf13/cobra"
)

var addrCmd = &cobra.Command{
	Use:   "addr <node> [dest]",
	Short: "Show how a node address maps onto the tree and the air",
	Long: `Decode an octal node address without touching any hardware.

Prints the depth, topology mask, on-air physical address, parent and
children of the node, and the route a packet takes from the root. With a
second address, prints the route between the two nodes instead.

Examples:
  nrfnet addr 011
  nrfnet addr 011 02`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runAddr,
}

func init() {
	rootCmd.AddCommand(addrCmd)
}

func runAddr(cmd *cobra.Command, args []string) error {
	addr, err := nrfnet.ParseNodeAddress(args[0])
	if err != nil {
		return err
	}

	if len(args) == 2 {
		dest, err := nrfnet.ParseNodeAddress(args[1])
		if err != nil {
			return err
		}
		hops, err := nrfnet.Route(addr, dest)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Route: %s (%d hops)\n", nrfnet.FormatRoute(addr, hops), len(hops))
		return nil
	}

	return describeAddress(cmd.OutOrStdout(), addr)
}

// describeAddress prints everything derived from a node address.
func describeAddress(w io.Writer, addr nrfnet.NodeAddress) error {
	phys, err := nrfnet.PhysicalAddressOf(addr)
	if err != nil {
		return err
	}
	mask := nrfnet.Setup(addr)

	fmt.Fprintf(w, "Node:     %s\n", addr)
	fmt.Fprintf(w, "Depth:    %d\n", addr.Depth())
	fmt.Fprintf(w, "Mask:     %s\n", mask)
	fmt.Fprintf(w, "Physical: %s\n", phys)

	parent, err := nrfnet.Parent(addr, mask)
	switch {
	case errors.Is(err, nrfnet.ErrNoParent):
		fmt.Fprintf(w, "Parent:   none (root)\n")
	case err != nil:
		return err
	default:
		fmt.Fprintf(w, "Parent:   %s\n", parent)
	}

	if addr.Depth() < nrfnet.MaxDepth {
		first, _ := nrfnet.Child(addr, 1)
		last, _ := nrfnet.Child(addr, nrfnet.DigitMask)
		fmt.Fprintf(w, "Children: %s .. %s\n", first, last)
	} else {
		fmt.Fprintf(w, "Children: none (maximum depth)\n")
	}

	hops, err := nrfnet.Route(nrfnet.RootAddress, addr)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Route:    %s\n", nrfnet.FormatRoute(nrfnet.RootAddress, hops))
	return nil
}
