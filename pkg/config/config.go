// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads node settings from a YAML file.
//
// Example:
//
//	node: "011"
//	channel: 76
//	poll_interval: 5ms
//	log_level: info
//	connection:
//	  port: /dev/ttyACM0
//	  baud: 115200
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/nrfnet/pkg/nrfnet"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Defaults used when a setting is absent
const (
	DefaultBaud         = 115200
	DefaultPollInterval = 5 * time.Millisecond
	DefaultLogLevel     = "info"
	MaxChannel          = 125
)

// Connection selects how the dongle is reached. Port and URL are mutually
// exclusive.
type Connection struct {
	Port        string `yaml:"port,omitempty"`
	Baud        int    `yaml:"baud,omitempty"`
	URL         string `yaml:"url,omitempty"`
	Username    string `yaml:"username,omitempty"`
	NoSSLVerify bool   `yaml:"no_ssl_verify,omitempty"`
}

// Config holds the settings of one node.
type Config struct {
	Node         string        `yaml:"node"`
	Channel      uint8         `yaml:"channel"`
	PollInterval time.Duration `yaml:"poll_interval"`
	LogLevel     string        `yaml:"log_level"`
	Connection   Connection    `yaml:"connection"`
}

// LoadError describes a configuration file that could not be used.
type LoadError struct {
	File    string
	Message string
	Cause   error
}

// Error implements the error interface
func (e *LoadError) Error() string {
	msg := e.Message
	if e.File != "" {
		msg = e.File + ": " + msg
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error
func (e *LoadError) Unwrap() error {
	return e.Cause
}

// Default returns the configuration of a root node on the default channel.
func Default() *Config {
	return &Config{
		Node:         "0",
		Channel:      nrfnet.DefaultChannel,
		PollInterval: DefaultPollInterval,
		LogLevel:     DefaultLogLevel,
		Connection:   Connection{Baud: DefaultBaud},
	}
}

// Parse decodes YAML on top of the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &LoadError{Message: "failed to parse YAML", Cause: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, &LoadError{Message: "invalid configuration", Cause: err}
	}
	return cfg, nil
}

// Load reads and parses a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{File: path, Message: "failed to read file", Cause: err}
	}

	cfg, err := Parse(data)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.File = path
		}
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field.
func (c *Config) Validate() error {
	var errs []error

	if _, err := c.NodeAddress(); err != nil {
		errs = append(errs, err)
	}
	if c.Channel > MaxChannel {
		errs = append(errs, fmt.Errorf("channel %d out of range 0-%d", c.Channel, MaxChannel))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("poll_interval must be positive, got %v", c.PollInterval))
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.Connection.Port != "" && c.Connection.URL != "" {
		errs = append(errs, errors.New("connection: port and url are mutually exclusive"))
	}
	if c.Connection.Baud < 0 {
		errs = append(errs, fmt.Errorf("connection: invalid baud rate %d", c.Connection.Baud))
	}

	return errors.Join(errs...)
}

// NodeAddress parses the node field.
func (c *Config) NodeAddress() (nrfnet.NodeAddress, error) {
	addr, err := nrfnet.ParseNodeAddress(c.Node)
	if err != nil {
		return 0, fmt.Errorf("node: %w", err)
	}
	return addr, nil
}

// Level returns the parsed log level, falling back to info.
func (c *Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}
