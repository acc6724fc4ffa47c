// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/Thermoquad/nrfnet/pkg/config"
	"github.com/gorilla/websocket"
	"go.bug.st/serial"
	"golang.org/x/term"
)

// PasswordEnv names the environment variable holding the WebSocket password
const PasswordEnv = "NRFNET_PASSWORD"

const (
	wsHandshakeTimeout = 10 * time.Second
	wsDialTimeout      = 15 * time.Second
)

// Connection is a byte stream to the dongle.
type Connection = io.ReadWriteCloser

// ErrConnectionClosed is returned by reads after the WebSocket has failed.
var ErrConnectionClosed = errors.New("websocket connection closed")

// WebSocketConnection carries bridge frames in binary WebSocket messages.
// Message boundaries are not significant; the bridge decoder resyncs on
// frame delimiters.
type WebSocketConnection struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	pending []byte // unread rest of the last message
	failed  bool
}

func (w *WebSocketConnection) Read(p []byte) (int, error) {
	for len(w.pending) == 0 {
		if w.failed {
			return 0, ErrConnectionClosed
		}
		kind, data, err := w.conn.ReadMessage()
		if err != nil {
			w.failed = true
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return 0, io.EOF
			}
			return 0, err
		}
		if kind == websocket.BinaryMessage {
			w.pending = data
		}
	}

	n := copy(p, w.pending)
	w.pending = w.pending[n:]
	return n, nil
}

func (w *WebSocketConnection) Write(p []byte) (int, error) {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *WebSocketConnection) Close() error {
	return w.conn.Close()
}

// OpenSerialConnection opens portName at 8N1.
func OpenSerialConnection(portName string, baudRate int) (Connection, error) {
	port, err := serial.Open(portName, &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", portName, err)
	}
	return port, nil
}

// OpenWebSocketConnection dials a ws:// or wss:// bridge. Credentials are
// sent as HTTP Basic auth when both are set.
func OpenWebSocketConnection(wsURL, username, password string, skipSSLVerify bool) (Connection, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	dialer := websocket.Dialer{HandshakeTimeout: wsHandshakeTimeout}
	switch u.Scheme {
	case "ws":
	case "wss":
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: skipSSLVerify}
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	ctx, cancel := context.WithTimeout(context.Background(), wsDialTimeout)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, wsURL, basicAuth(username, password))
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %w", err)
	}
	return &WebSocketConnection{conn: conn}, nil
}

func basicAuth(username, password string) http.Header {
	h := http.Header{}
	if username != "" && password != "" {
		token := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		h.Set("Authorization", "Basic "+token)
	}
	return h
}

// GetPassword returns $NRFNET_PASSWORD, or asks for it on stderr. Input is
// hidden when stdin is a terminal.
func GetPassword() (string, error) {
	if pw := os.Getenv(PasswordEnv); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")
	defer fmt.Fprintln(os.Stderr)

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		pw, err := term.ReadPassword(fd)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(pw), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// OpenConnection connects to the dongle named by c and describes the link
// for status output.
func OpenConnection(c config.Connection) (Connection, string, error) {
	switch {
	case c.URL != "":
		var password string
		if c.Username != "" {
			pw, err := GetPassword()
			if err != nil {
				return nil, "", err
			}
			password = pw
		}
		conn, err := OpenWebSocketConnection(c.URL, c.Username, password, c.NoSSLVerify)
		if err != nil {
			return nil, "", err
		}
		return conn, "WebSocket: " + c.URL, nil

	case c.Port != "":
		conn, err := OpenSerialConnection(c.Port, c.Baud)
		if err != nil {
			return nil, "", err
		}
		return conn, fmt.Sprintf("Serial: %s @ %d baud", c.Port, c.Baud), nil
	}
	return nil, "", errors.New("either --port or --url must be specified")
}
