// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/Thermoquad/nrfnet/pkg/airsim"
	"github.com/Thermoquad/nrfnet/pkg/bridge"
	"github.com/Thermoquad/nrfnet/pkg/nrfnet"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	simFrom    string
	simTo      string
	simMessage string
	simBridge  bool
	simTimeout time.Duration
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Route a message through an in-memory tree",
	Long: `Build the branch of the tree connecting --from and --to in memory, send
one DATA message and print every transmission on the air.

No hardware is needed. With --bridge the sending node drives its radio
through the dongle protocol, exactly as the other commands do over serial.

Examples:
  nrfnet simulate --from 011 --to 02 --message hello
  nrfnet simulate --from 0 --to 0123 --bridge`,
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().StringVar(&simFrom, "from", "011", "Sending node")
	simulateCmd.Flags().StringVar(&simTo, "to", "02", "Destination node")
	simulateCmd.Flags().StringVar(&simMessage, "message", "hello", "Message text")
	simulateCmd.Flags().BoolVar(&simBridge, "bridge", false, "Drive the sender through the bridge protocol")
	simulateCmd.Flags().DurationVar(&simTimeout, "timeout", 2*time.Second, "Give up after this long")
}

// simulation is a mesh with one message in flight
type simulation struct {
	mesh   *airsim.Mesh
	from   *airsim.Node
	to     *airsim.Node
	cancel context.CancelFunc
	out    io.Writer
	log    logrus.FieldLogger
	hop    int
}

// newSimulation builds the branch of the tree connecting from and to. With
// viaBridge the sending node talks to its transceiver through an emulated
// dongle over an in-memory pipe.
func newSimulation(out io.Writer, from, to nrfnet.NodeAddress, viaBridge bool, log logrus.FieldLogger) (*simulation, error) {
	addrs, err := airsim.Tree(from, to)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	sim := &simulation{cancel: cancel, out: out, log: log}

	sim.mesh, err = airsim.NewMesh(nil, nrfnet.WithLogger(log), nrfnet.WithChannel(settings.Channel))
	if err != nil {
		cancel()
		return nil, err
	}
	sim.mesh.Ether.OnFrame(sim.printFrame)

	for _, addr := range addrs {
		var wrap func(*airsim.Transceiver) nrfnet.Radio
		if viaBridge && addr == from {
			wrap = func(t *airsim.Transceiver) nrfnet.Radio {
				host, dongle := net.Pipe()
				emu := bridge.NewEmulator(t, bridge.WithEmulatorLogger(log))
				go func() {
					defer dongle.Close()
					if err := emu.Serve(ctx, dongle); err != nil && ctx.Err() == nil {
						log.WithError(err).Warn("Emulator stopped")
					}
				}()
				return bridge.NewRadio(host, bridge.WithRadioLogger(log))
			}
		}
		node, err := sim.mesh.AddNode(addr, wrap)
		if err != nil {
			sim.Close()
			return nil, err
		}
		switch addr {
		case from:
			sim.from = node
		case to:
			sim.to = node
		}
	}
	return sim, nil
}

func (s *simulation) printFrame(f airsim.Frame) {
	s.hop++
	status := "no ack"
	if f.Acked {
		status = "acked by " + f.To
	}
	fmt.Fprintf(s.out, "  %2d. %-6s -> [%s] ", s.hop, f.From, f.Address)
	if p, err := nrfnet.DecodePacket(f.Data); err == nil {
		fmt.Fprintf(s.out, "%-8s %s -> %s len=%d  %s\n", p.Type, p.From, p.To, p.Length, status)
	} else {
		fmt.Fprintf(s.out, "undecodable (%v)  %s\n", err, status)
	}
}

// run sends the message and steps the mesh until the destination has it
// and its ACK has reached the sender, or the timeout expires.
func (s *simulation) run(payload []byte, timeout time.Duration) (bool, error) {
	if err := s.from.Net.Send(s.to.Address, payload, nrfnet.MsgData); err != nil {
		return false, err
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if err := s.mesh.Step(); err != nil {
			s.log.WithError(err).Debug("Step failed")
		}
		if len(s.to.Inbox) > 0 && s.from.Net.Stats().AcksReceived > 0 {
			return true, nil
		}
		if !s.mesh.Pending() {
			time.Sleep(time.Millisecond)
		}
	}
	return len(s.to.Inbox) > 0, nil
}

func (s *simulation) Close() {
	s.cancel()
	for _, node := range s.mesh.Nodes {
		if c, ok := node.Radio.(io.Closer); ok {
			c.Close()
		}
	}
}

func runSimulate(cmd *cobra.Command, args []string) error {
	from, err := nrfnet.ParseNodeAddress(simFrom)
	if err != nil {
		return fmt.Errorf("--from: %w", err)
	}
	to, err := nrfnet.ParseNodeAddress(simTo)
	if err != nil {
		return fmt.Errorf("--to: %w", err)
	}
	if from == to {
		return fmt.Errorf("--from and --to are both %s", from)
	}
	payload := []byte(simMessage)
	if len(payload) > nrfnet.MaxPayloadSize {
		return fmt.Errorf("message is %d bytes, at most %d fit in one packet", len(payload), nrfnet.MaxPayloadSize)
	}

	out := cmd.OutOrStdout()
	sim, err := newSimulation(out, from, to, simBridge, logrus.StandardLogger())
	if err != nil {
		return err
	}
	defer sim.Close()

	hops, err := nrfnet.Route(from, to)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "nrfnet - Simulation\n")
	fmt.Fprintf(out, "Nodes: %d\n", len(sim.mesh.Nodes))
	fmt.Fprintf(out, "Route: %s\n\n", nrfnet.FormatRoute(from, hops))

	complete, err := sim.run(payload, simTimeout)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "\n")
	for _, msg := range sim.to.Inbox {
		fmt.Fprintf(out, "Delivered to %s from %s: %q\n", to, msg.From, msg.Payload)
	}
	if !complete {
		return fmt.Errorf("message not acknowledged within %v", simTimeout)
	}
	fmt.Fprintf(out, "ACK returned to %s\n", from)
	return nil
}
