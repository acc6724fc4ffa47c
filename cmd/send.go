// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Thermoquad/nrfnet/pkg/nrfnet"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	sendHex     bool
	sendWaitAck time.Duration
)

var sendCmd = &cobra.Command{
	Use:   "send <dest> <message>",
	Short: "Send one DATA packet to a node",
	Long: `Begin as --node and send a single DATA packet toward <dest>.

The packet goes to the next hop on the tree: a child when <dest> is below
this node, the parent otherwise. Success means the next hop acknowledged at
the hardware level; delivery further along the route is not confirmed.

With --wait-ack the command keeps polling for the end-to-end ACK message
the destination sends back.

Exit codes:
  0 - Next hop acknowledged the packet
  1 - Transmit failed (no hardware ack) or invalid arguments
  2 - Connection error`,
	Args: cobra.ExactArgs(2),
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().BoolVar(&sendHex, "hex", false, "Message is hex encoded bytes")
	sendCmd.Flags().DurationVar(&sendWaitAck, "wait-ack", 0, "Wait this long for the destination's ACK message")
}

// parseMessage turns the message argument into payload bytes.
func parseMessage(msg string, isHex bool) ([]byte, error) {
	if !isHex {
		return []byte(msg), nil
	}
	data, err := hex.DecodeString(strings.ReplaceAll(msg, " ", ""))
	if err != nil {
		return nil, fmt.Errorf("invalid hex message: %w", err)
	}
	return data, nil
}

func runSend(cmd *cobra.Command, args []string) error {
	dest, err := nrfnet.ParseNodeAddress(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid destination: %v\n", err)
		os.Exit(1)
	}
	payload, err := parseMessage(args[1], sendHex)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	if len(payload) > nrfnet.MaxPayloadSize {
		fmt.Fprintf(os.Stderr, "Message is %d bytes, at most %d fit in one packet\n", len(payload), nrfnet.MaxPayloadSize)
		os.Exit(1)
	}

	n, err := startNode(nil, logrus.StandardLogger())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer n.Close()

	if dest == n.net.Address() {
		fmt.Fprintf(os.Stderr, "Destination %s is this node\n", dest)
		n.Close()
		os.Exit(1)
	}
	hops, err := nrfnet.Route(n.net.Address(), dest)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		n.Close()
		os.Exit(1)
	}

	fmt.Printf("nrfnet - Send\n")
	fmt.Printf("Connection: %s\n", n.connInfo)
	fmt.Printf("Route: %s\n", nrfnet.FormatRoute(n.net.Address(), hops))
	fmt.Printf("Payload: %d bytes\n\n", len(payload))

	err = n.net.Send(dest, payload, nrfnet.MsgData)
	switch {
	case err == nil:
		fmt.Printf("SUCCESS: next hop %s acknowledged\n", hops[0])
	case errors.Is(err, nrfnet.ErrTransmitFailed):
		fmt.Fprintf(os.Stderr, "FAILED: %v\n", err)
		n.Close()
		os.Exit(1)
	default:
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		n.Close()
		os.Exit(2)
	}

	if sendWaitAck > 0 {
		if !waitForAck(n.net, sendWaitAck) {
			fmt.Fprintf(os.Stderr, "TIMEOUT: no ACK from %s within %v\n", dest, sendWaitAck)
			n.Close()
			os.Exit(1)
		}
		fmt.Printf("ACK received from %s\n", dest)
	}

	return nil
}

// waitForAck polls the network until an ACK message arrives or timeout.
func waitForAck(network *nrfnet.Network, timeout time.Duration) bool {
	before := network.Stats().AcksReceived
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if err := network.Update(); err != nil {
			logrus.WithError(err).Debug("Update failed")
		}
		if network.Stats().AcksReceived > before {
			return true
		}
		time.Sleep(settings.PollInterval)
	}
	return false
}
