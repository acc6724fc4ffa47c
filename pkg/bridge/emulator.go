// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/Thermoquad/nrfnet/pkg/nrfnet"
	"github.com/sirupsen/logrus"
)

// DefaultPollInterval is how often the emulator checks the radio for
// received packets.
const DefaultPollInterval = time.Millisecond

// EmulatorOption configures an Emulator.
type EmulatorOption func(*Emulator)

// WithPollInterval sets how often the radio is checked for received packets.
func WithPollInterval(d time.Duration) EmulatorOption {
	return func(e *Emulator) { e.pollInterval = d }
}

// WithEmulatorLogger sets the logger used for protocol diagnostics.
func WithEmulatorLogger(log logrus.FieldLogger) EmulatorOption {
	return func(e *Emulator) { e.log = log }
}

// Emulator plays the dongle side of the bridge protocol on top of any
// nrfnet.Radio. Received packets are pushed to the host as RX_PACKET events.
type Emulator struct {
	radio        nrfnet.Radio
	log          logrus.FieldLogger
	pollInterval time.Duration
	start        time.Time
	rxBuf        [nrfnet.MaxPacketSize]byte
}

// NewEmulator creates an emulator driving radio.
func NewEmulator(radio nrfnet.Radio, opts ...EmulatorOption) *Emulator {
	e := &Emulator{
		radio:        radio,
		log:          logrus.StandardLogger(),
		pollInterval: DefaultPollInterval,
		start:        time.Now(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Serve answers commands read from conn until ctx is done or conn fails.
// All radio access and all writes happen on the calling goroutine.
func (e *Emulator) Serve(ctx context.Context, conn io.ReadWriter) error {
	frames := make(chan *Frame, 8)
	readErr := make(chan error, 1)

	go func() {
		decoder := NewDecoder()
		buf := make([]byte, 128)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				readErr <- err
				return
			}
			for i := 0; i < n; i++ {
				frame, err := decoder.DecodeByte(buf[i])
				if err != nil {
					e.log.WithError(err).Debug("Dropping bad bridge frame")
					continue
				}
				if frame == nil {
					continue
				}
				select {
				case frames <- frame:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				return nil
			}
			return fmt.Errorf("bridge: read failed: %w", err)
		case frame := <-frames:
			resp := e.handle(frame)
			if seq, ok := frame.Seq(); ok {
				resp.SetSeq(seq)
			}
			if err := e.write(conn, resp); err != nil {
				return err
			}
		case <-ticker.C:
			if err := e.pushReceived(conn); err != nil {
				return err
			}
		}
	}
}

func (e *Emulator) write(w io.Writer, f *Frame) error {
	data, err := f.Encode()
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("bridge: write %s: %w", FormatMessageType(f.Type), err)
	}
	return nil
}

// pushReceived forwards every packet waiting in the radio FIFO.
func (e *Emulator) pushReceived(w io.Writer) error {
	for e.radio.Available() {
		clear(e.rxBuf[:])
		n, err := e.radio.Receive(e.rxBuf[:])
		if err != nil {
			e.log.WithError(err).Warn("Radio receive failed")
			return nil
		}
		// nrfnet.Radio does not report the pipe; packets only arrive on
		// the node's own pipe.
		event := NewRxPacketEvent(nrfnet.DefaultRxPipe, append([]byte(nil), e.rxBuf[:n]...))
		if err := e.write(w, event); err != nil {
			return err
		}
	}
	return nil
}

// handle executes one command and returns its response.
func (e *Emulator) handle(cmd *Frame) *Frame {
	log := e.log.WithField("command", FormatMessageType(cmd.Type))
	log.Debug("Bridge command")

	radioErr := func(err error) *Frame {
		if err != nil {
			log.WithError(err).Warn("Radio command failed")
			return NewErrorResponse(ErrorRadioFailure, err.Error())
		}
		return NewOKResponse()
	}

	switch cmd.Type {
	case MsgInit:
		return radioErr(e.radio.Init())

	case MsgSetChannel:
		channel, ok := cmd.Uint(0)
		if !ok || channel > 255 {
			return NewErrorResponse(ErrorBadArgument, "channel")
		}
		return radioErr(e.radio.SetChannel(uint8(channel)))

	case MsgSetRxAddress:
		pipe, ok := cmd.Uint(0)
		if !ok || pipe > 255 {
			return NewErrorResponse(ErrorBadArgument, "pipe")
		}
		addr, ok := cmd.PhysicalAddress(1)
		if !ok {
			return NewErrorResponse(ErrorBadArgument, "address")
		}
		return radioErr(e.radio.SetRxAddress(uint8(pipe), addr))

	case MsgSetTxAddress:
		addr, ok := cmd.PhysicalAddress(0)
		if !ok {
			return NewErrorResponse(ErrorBadArgument, "address")
		}
		return radioErr(e.radio.SetTxAddress(addr))

	case MsgFlushTx:
		return radioErr(e.radio.FlushTx())

	case MsgFlushRx:
		return radioErr(e.radio.FlushRx())

	case MsgSetMode:
		mode, ok := cmd.Uint(0)
		if !ok || mode > uint64(nrfnet.RadioModeTx) {
			return NewErrorResponse(ErrorBadArgument, "mode")
		}
		return radioErr(e.radio.SetMode(nrfnet.RadioMode(mode)))

	case MsgTransmit:
		data, ok := cmd.Bytes(0)
		if !ok || len(data) > nrfnet.MaxPacketSize {
			return NewErrorResponse(ErrorBadArgument, "data")
		}
		if err := e.radio.Transmit(data); err != nil {
			log.WithError(err).Debug("Transmit not acknowledged")
			return NewTxResultResponse(false)
		}
		return NewTxResultResponse(true)

	case MsgPing:
		return NewPongResponse(uint64(time.Since(e.start).Milliseconds()))

	default:
		log.Warn("Unknown bridge command")
		return NewErrorResponse(ErrorUnknownCmd, fmt.Sprintf("command 0x%02X", cmd.Type))
	}
}
