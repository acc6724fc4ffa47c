// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	linkCheckDuration int
	linkCheckInterval time.Duration
)

var linkCheckCmd = &cobra.Command{
	Use:   "link_check",
	Short: "Test the connection to the dongle",
	Long: `Ping the dongle repeatedly without touching the radio.

Each PING is answered with the dongle's uptime. Useful for debugging serial
and WebSocket connection stability before joining the network.

Exit codes:
  0 - Every ping was answered
  1 - At least one ping was lost
  2 - Connection error`,
	RunE: runLinkCheck,
}

func init() {
	rootCmd.AddCommand(linkCheckCmd)
	linkCheckCmd.Flags().IntVar(&linkCheckDuration, "duration", 10, "Test duration in seconds")
	linkCheckCmd.Flags().DurationVar(&linkCheckInterval, "interval", time.Second, "Time between pings")
}

// linkResult summarizes a link check
type linkResult struct {
	sent, answered int
	minRTT, maxRTT time.Duration
	totalRTT       time.Duration
}

func (r *linkResult) record(rtt time.Duration) {
	r.answered++
	r.totalRTT += rtt
	if r.minRTT == 0 || rtt < r.minRTT {
		r.minRTT = rtt
	}
	if rtt > r.maxRTT {
		r.maxRTT = rtt
	}
}

func (r *linkResult) String() string {
	s := fmt.Sprintf("Pings sent:     %d\n", r.sent)
	s += fmt.Sprintf("Pings answered: %d\n", r.answered)
	if r.answered > 0 {
		avg := r.totalRTT / time.Duration(r.answered)
		s += fmt.Sprintf("RTT min/avg/max: %v / %v / %v\n", r.minRTT, avg, r.maxRTT)
	}
	return s
}

func runLinkCheck(cmd *cobra.Command, args []string) error {
	radio, connInfo, err := openDongle()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer radio.Close()

	fmt.Printf("nrfnet - Link Check\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Duration: %d seconds\n\n", linkCheckDuration)

	var result linkResult
	endTime := time.Now().Add(time.Duration(linkCheckDuration) * time.Second)

	for time.Now().Before(endTime) {
		result.sent++
		start := time.Now()
		uptime, err := radio.Ping()
		rtt := time.Since(start)

		if err != nil {
			fmt.Printf("[%s] Ping failed: %v\n", time.Now().Format("15:04:05.000"), err)
			if radio.Err() != nil {
				fmt.Printf("\n--- Test Results ---\n%s", result.String())
				fmt.Printf("Result: FAILED (connection lost)\n")
				radio.Close()
				os.Exit(2)
			}
		} else {
			result.record(rtt)
			fmt.Printf("[%s] Pong in %v, dongle uptime %s\n",
				time.Now().Format("15:04:05.000"), rtt.Round(time.Microsecond), formatUptime(uint64(uptime.Milliseconds())))
		}

		time.Sleep(linkCheckInterval)
	}

	fmt.Printf("\n--- Test Results ---\n%s", result.String())
	if result.answered < result.sent {
		fmt.Printf("Result: FAILED (%d pings lost)\n", result.sent-result.answered)
		radio.Close()
		os.Exit(1)
	}
	fmt.Printf("Result: PASSED (link stable)\n")
	return nil
}
