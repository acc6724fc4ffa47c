// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Thermoquad/nrfnet/pkg/nrfnet"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var listenStats bool

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Join the network and print delivered messages",
	Long: `Begin as --node and print every DATA payload addressed to this node.

Packets for other nodes are relayed toward their destination as usual, so a
listening node also acts as a router for its subtree. Each delivered message
is acknowledged to its sender.

Supports both serial and WebSocket connections.`,
	RunE: runListen,
}

func init() {
	rootCmd.AddCommand(listenCmd)
	listenCmd.Flags().BoolVar(&listenStats, "stats", false, "Print statistics on exit")
}

func runListen(cmd *cobra.Command, args []string) error {
	n, err := startNode(printDelivery, logrus.StandardLogger())
	if err != nil {
		return err
	}
	defer n.Close()

	fmt.Printf("nrfnet - Listen\n")
	fmt.Printf("Connection: %s\n", n.connInfo)
	fmt.Printf("Node: %s (physical %s, channel %d)\n", n.net.Address(), n.net.PhysicalAddress(), settings.Channel)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = n.net.Run(ctx, settings.PollInterval)
	if listenStats {
		stats := n.net.Stats()
		fmt.Print("\n" + stats.String())
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func printDelivery(from nrfnet.NodeAddress, payload []byte) {
	fmt.Printf("[%s] DATA from %s len=%d\n", time.Now().Format("15:04:05.000"), from, len(payload))
	if len(payload) > 0 {
		fmt.Print(nrfnet.FormatPayload(payload))
	}
}
