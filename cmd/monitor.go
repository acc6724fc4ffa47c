// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/Thermoquad/nrfnet/pkg/nrfnet"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Interactive node monitor",
	Long: `Begin as --node and show live traffic statistics and an event log.

Delivered messages, forwarded packets, ACKs and transmit failures appear in
the event log as they happen. Type "dest message" and press Enter to send a
DATA packet, e.g. "02 hello".`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}

// tuiHook forwards log entries into the event log of a running TUI
type tuiHook struct {
	mu      sync.Mutex
	program *tea.Program
}

func (h *tuiHook) Levels() []logrus.Level {
	return []logrus.Level{
		logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel,
		logrus.WarnLevel, logrus.InfoLevel,
	}
}

func (h *tuiHook) Fire(entry *logrus.Entry) error {
	h.mu.Lock()
	program := h.program
	h.mu.Unlock()
	if program == nil {
		return nil
	}

	msg := entry.Message
	for _, key := range []string{"from", "to", "next_hop"} {
		if v, ok := entry.Data[key]; ok {
			msg += fmt.Sprintf(" %s=%v", key, v)
		}
	}
	if err, ok := entry.Data[logrus.ErrorKey]; ok {
		msg += fmt.Sprintf(": %v", err)
	}
	program.Send(logMsg{level: entry.Level, message: msg})
	return nil
}

func (h *tuiHook) attach(p *tea.Program) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.program = p
}

func runMonitor(cmd *cobra.Command, args []string) error {
	hook := &tuiHook{}
	log := logrus.New()
	log.SetOutput(io.Discard)
	log.SetLevel(settings.Level())
	log.AddHook(hook)

	var program *tea.Program
	handler := func(from nrfnet.NodeAddress, payload []byte) {
		program.Send(deliveryMsg{from: from, payload: append([]byte(nil), payload...)})
	}

	n, err := startNode(handler, log)
	if err != nil {
		return err
	}
	defer n.Close()

	send := func(dest nrfnet.NodeAddress, payload []byte) error {
		return n.net.Send(dest, payload, nrfnet.MsgData)
	}
	program = tea.NewProgram(initialModel(n.connInfo, n.net.Address(), send, n.net.Stats))
	hook.attach(program)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := n.net.Run(ctx, settings.PollInterval); err != nil && !errors.Is(err, context.Canceled) {
			program.Send(logMsg{level: logrus.ErrorLevel, message: fmt.Sprintf("Network stopped: %v", err)})
		}
	}()

	_, err = program.Run()
	return err
}
