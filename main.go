// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// nrfnet - nRF24 tree network tool
//
// Joins, probes and simulates a multi-hop nRF24L01+ network through a USB
// dongle or entirely in memory.

package main

import (
	"os"

	"github.com/Thermoquad/nrfnet/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
