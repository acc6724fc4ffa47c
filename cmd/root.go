// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"os"
	"time"

	"github.com/Thermoquad/nrfnet/pkg/bridge"
	"github.com/Thermoquad/nrfnet/pkg/config"
	"github.com/Thermoquad/nrfnet/pkg/nrfnet"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Node flags
	configPath    string
	nodeFlag      string
	channelFlag   uint8
	logLevelFlag  string
	bridgeTimeout time.Duration

	// settings is the merged configuration, filled in before every command
	settings = config.Default()
)

var rootCmd = &cobra.Command{
	Use:   "nrfnet",
	Short: "nRF24 tree network tool",
	Long: `nrfnet - Run and inspect a multi-hop nRF24L01+ tree network.

Nodes are addressed in octal: 0 is the root, 01..07 are its children, 011 is
the first child of 01, and so on up to five levels. Packets are routed toward
the root or down to a descendant without any routing table.

The radio is reached through a USB dongle speaking the nrfnet bridge protocol.

Connection modes:
  Serial:    --port /dev/ttyACM0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]

For WebSocket authentication, the password is read from the NRFNET_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.

Settings may also come from a YAML file (--config); flags take precedence.`,
	Version:           "1.0.0",
	PersistentPreRunE: loadSettings,
	SilenceUsage:      true,
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", config.DefaultBaud, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Node flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVarP(&nodeFlag, "node", "n", "0", "Octal address of this node")
	rootCmd.PersistentFlags().Uint8Var(&channelFlag, "channel", nrfnet.DefaultChannel, "RF channel (0-125)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", config.DefaultLogLevel, "Log level (panic, fatal, error, warn, info, debug, trace)")
	rootCmd.PersistentFlags().DurationVar(&bridgeTimeout, "timeout", bridge.DefaultTimeout, "Dongle response timeout")
}

// loadSettings merges the config file with explicitly set flags.
func loadSettings(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("node") {
		cfg.Node = nodeFlag
	}
	if flags.Changed("channel") {
		cfg.Channel = channelFlag
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevelFlag
	}
	if flags.Changed("port") {
		cfg.Connection.Port = portName
		cfg.Connection.URL = ""
	}
	if flags.Changed("baud") {
		cfg.Connection.Baud = baudRate
	}
	if flags.Changed("url") {
		cfg.Connection.URL = wsURL
		cfg.Connection.Port = ""
	}
	if flags.Changed("username") {
		cfg.Connection.Username = wsUsername
	}
	if flags.Changed("no-ssl-verify") {
		cfg.Connection.NoSSLVerify = wsNoSSLVerify
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	logrus.SetOutput(os.Stderr)
	logrus.SetLevel(cfg.Level())
	settings = cfg
	return nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
