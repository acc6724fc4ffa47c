// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package nrfnet

import (
	"fmt"
	"strings"
	"time"
)

// FormatPacket formats a packet into a human-readable string
func FormatPacket(p *Packet, at time.Time) string {
	timestamp := at.Format("15:04:05.000")

	result := fmt.Sprintf("[%s] %s (0x%02X) %s -> %s len=%d\n",
		timestamp, p.Type, uint8(p.Type), p.From, p.To, p.Length)

	if p.Length > 0 {
		result += FormatPayload(p.Data())
	}

	return result
}

// FormatPayload renders payload bytes as a hex dump followed by the
// printable text, if all bytes are printable ASCII.
func FormatPayload(payload []byte) string {
	var s strings.Builder
	s.WriteString("  Payload: ")
	for i, b := range payload {
		if i > 0 && i%16 == 0 {
			s.WriteString("\n           ")
		}
		fmt.Fprintf(&s, "%02X ", b)
	}
	s.WriteString("\n")

	if IsPrintable(payload) {
		fmt.Fprintf(&s, "  Text:    %q\n", string(payload))
	}
	return s.String()
}

// FormatRoute renders a hop list as "01 -> 0 -> 02".
func FormatRoute(from NodeAddress, hops []NodeAddress) string {
	parts := make([]string, 0, len(hops)+1)
	parts = append(parts, from.String())
	for _, h := range hops {
		parts = append(parts, h.String())
	}
	return strings.Join(parts, " -> ")
}

// IsPrintable reports whether data is non-empty printable ASCII.
func IsPrintable(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	for _, b := range data {
		if b < 0x20 || b > 0x7E {
			return false
		}
	}
	return true
}
