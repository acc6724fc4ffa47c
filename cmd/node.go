// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/Thermoquad/nrfnet/pkg/bridge"
	"github.com/Thermoquad/nrfnet/pkg/nrfnet"
	"github.com/sirupsen/logrus"
)

// node is a started network node on a dongle
type node struct {
	radio    *bridge.Radio
	net      *nrfnet.Network
	connInfo string
}

// openDongle connects to the dongle named by the settings.
func openDongle() (*bridge.Radio, string, error) {
	conn, connInfo, err := OpenConnection(settings.Connection)
	if err != nil {
		return nil, "", err
	}
	radio := bridge.NewRadio(conn, bridge.WithTimeout(bridgeTimeout))
	return radio, connInfo, nil
}

// startNode connects to the dongle and begins the network as the
// configured node.
func startNode(handler nrfnet.EventHandler, log logrus.FieldLogger) (*node, error) {
	addr, err := settings.NodeAddress()
	if err != nil {
		return nil, err
	}

	radio, connInfo, err := openDongle()
	if err != nil {
		return nil, err
	}

	network := nrfnet.New(radio,
		nrfnet.WithChannel(settings.Channel),
		nrfnet.WithLogger(log),
	)
	if err := network.Begin(addr, handler); err != nil {
		radio.Close()
		return nil, fmt.Errorf("begin as %s: %w", addr, err)
	}

	return &node{radio: radio, net: network, connInfo: connInfo}, nil
}

func (n *node) Close() error {
	return n.radio.Close()
}
