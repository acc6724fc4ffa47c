// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/Thermoquad/nrfnet/pkg/nrfnet"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var neighborsCmd = &cobra.Command{
	Use:   "neighbors",
	Short: "Probe the parent and child slots of this node",
	Long: `Begin as --node and send an empty PING packet to the parent and to each
of the seven child slots.

A slot counts as present when its radio acknowledges the packet at the
hardware level. PING is a reserved message type: the receiving node consumes
it without replying, so the probe does not disturb running applications.

Exit codes:
  0 - At least one neighbor answered
  1 - No neighbor answered
  2 - Connection error`,
	RunE: runNeighbors,
}

func init() {
	rootCmd.AddCommand(neighborsCmd)
}

// neighbor is one probed slot
type neighbor struct {
	role    string
	address nrfnet.NodeAddress
	present bool
	err     error
}

// neighborSlots lists the parent (if any) and the child slots of addr.
func neighborSlots(addr nrfnet.NodeAddress) []neighbor {
	var slots []neighbor
	if parent, err := nrfnet.Parent(addr, nrfnet.Setup(addr)); err == nil {
		slots = append(slots, neighbor{role: "parent", address: parent})
	}
	for digit := uint8(1); digit <= nrfnet.DigitMask; digit++ {
		child, err := nrfnet.Child(addr, digit)
		if err != nil {
			break // maximum depth
		}
		slots = append(slots, neighbor{role: fmt.Sprintf("child %d", digit), address: child})
	}
	return slots
}

// probeNeighbors pings every slot and records which ones acknowledged.
// Errors other than a missing ack abort the probe.
func probeNeighbors(network *nrfnet.Network, slots []neighbor) error {
	for i := range slots {
		err := network.Send(slots[i].address, nil, nrfnet.MsgPing)
		switch {
		case err == nil:
			slots[i].present = true
		case errors.Is(err, nrfnet.ErrTransmitFailed):
			slots[i].err = err
		default:
			return err
		}
	}
	return nil
}

func runNeighbors(cmd *cobra.Command, args []string) error {
	n, err := startNode(nil, logrus.StandardLogger())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer n.Close()

	addr := n.net.Address()
	fmt.Printf("nrfnet - Neighbor Probe\n")
	fmt.Printf("Connection: %s\n", n.connInfo)
	fmt.Printf("Node: %s\n\n", addr)

	slots := neighborSlots(addr)
	if err := probeNeighbors(n.net, slots); err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		n.Close()
		os.Exit(2)
	}

	found := 0
	for _, s := range slots {
		status := "no answer"
		if s.present {
			status = "present"
			found++
		}
		fmt.Printf("  %-8s %-7s %s\n", s.role, s.address, status)
	}

	fmt.Printf("\n--- Probe summary ---\n")
	fmt.Printf("Neighbors found: %d of %d\n", found, len(slots))
	if found == 0 {
		fmt.Printf("No neighbors answered. Check channel and node power.\n")
		n.Close()
		os.Exit(1)
	}
	return nil
}
