// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package nrfnet

import (
	"fmt"
	"time"
)

// Statistics tracks traffic handled by a Network
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	RxPackets    uint64 // packets read from the radio, malformed ones included
	TxPackets    uint64 // transmit attempts, failed ones included
	Delivered    uint64 // DATA handed to the event handler
	Forwarded    uint64 // packets relayed for other nodes
	AcksSent     uint64
	AcksReceived uint64
	Reserved     uint64 // PING / PING_ACK consumed without handling
	TxFailures   uint64
	DecodeErrors uint64

	// Rates (calculated)
	PacketRate float64 // packets/sec, both directions
	ErrorRate  float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// recordRx counts one packet read from the radio and its outcome.
func (s *Statistics) recordRx(p *Packet, own NodeAddress, decodeErr error) {
	s.RxPackets++
	s.LastUpdateTime = time.Now()

	if decodeErr != nil {
		s.DecodeErrors++
		return
	}
	if p.To != own {
		return // counted as Forwarded once the relay succeeds
	}

	switch p.Type {
	case MsgData:
		s.Delivered++
	case MsgAck:
		s.AcksReceived++
	case MsgPing, MsgPingAck:
		s.Reserved++
	}
}

// recordTx counts one transmit attempt.
func (s *Statistics) recordTx(msgType MessageType, forwarded bool, err error) {
	s.TxPackets++
	s.LastUpdateTime = time.Now()

	if err != nil {
		s.TxFailures++
		return
	}
	if forwarded {
		s.Forwarded++
		return
	}
	if msgType == MsgAck {
		s.AcksSent++
	}
}

// CalculateRates calculates packet and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.PacketRate = float64(s.RxPackets+s.TxPackets) / elapsed
		s.ErrorRate = float64(s.TxFailures+s.DecodeErrors) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	var txFailPercent float64
	if s.TxPackets > 0 {
		txFailPercent = float64(s.TxFailures) * 100.0 / float64(s.TxPackets)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("RX Packets:      %8d\n", s.RxPackets)
	result += fmt.Sprintf("TX Packets:      %8d\n", s.TxPackets)
	result += fmt.Sprintf("Delivered:       %8d\n", s.Delivered)
	result += fmt.Sprintf("Forwarded:       %8d\n", s.Forwarded)
	result += fmt.Sprintf("ACKs Sent:       %8d\n", s.AcksSent)
	result += fmt.Sprintf("ACKs Received:   %8d\n", s.AcksReceived)

	if s.Reserved > 0 {
		result += fmt.Sprintf("Reserved Types:  %8d\n", s.Reserved)
	}
	if s.TxFailures > 0 {
		result += fmt.Sprintf("TX Failures:     %8d (%.1f%%)\n", s.TxFailures, txFailPercent)
	}
	if s.DecodeErrors > 0 {
		result += fmt.Sprintf("Decode Errors:   %8d\n", s.DecodeErrors)
	}

	result += fmt.Sprintf("Packet Rate:     %8.1f pkts/sec\n", s.PacketRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
