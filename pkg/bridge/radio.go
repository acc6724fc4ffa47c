// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bridge

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Thermoquad/nrfnet/pkg/nrfnet"
	"github.com/sirupsen/logrus"
)

// Host side limits
const (
	DefaultTimeout = 500 * time.Millisecond
	RxQueueDepth   = 3 // matches the transceiver FIFO

	responseQueueDepth = 4
)

// Errors returned by Radio
var (
	ErrTimeout  = errors.New("bridge: no response from dongle")
	ErrNoAck    = errors.New("bridge: no ack from receiver")
	ErrNoPacket = errors.New("bridge: no packet available")
	ErrClosed   = errors.New("bridge: connection closed")
)

// DongleError is an ERROR response sent by the dongle.
type DongleError struct {
	Command uint8
	Code    ErrorCode
	Text    string
}

// Error implements the error interface
func (e *DongleError) Error() string {
	return fmt.Sprintf("bridge: %s rejected: %s (%s)", FormatMessageType(e.Command), e.Code, e.Text)
}

// RadioOption configures a Radio.
type RadioOption func(*Radio)

// WithTimeout sets how long a command waits for its response.
func WithTimeout(d time.Duration) RadioOption {
	return func(r *Radio) { r.timeout = d }
}

// WithRadioLogger sets the logger used for protocol diagnostics.
func WithRadioLogger(log logrus.FieldLogger) RadioOption {
	return func(r *Radio) { r.log = log }
}

// Radio drives a remote transceiver through a dongle. It implements
// nrfnet.Radio. One command is in flight at a time and each carries a
// sequence number; replies to earlier, timed out commands are discarded.
// Received packets arrive as asynchronous events and wait in a small queue
// that mirrors the hardware FIFO.
type Radio struct {
	conn    io.ReadWriteCloser
	timeout time.Duration
	log     logrus.FieldLogger

	reqMu     sync.Mutex // one command in flight
	seq       uint64     // guarded by reqMu
	responses chan *Frame
	done      chan struct{}

	mu      sync.Mutex
	rxQueue [][]byte
	dropped int
	err     error
}

var _ nrfnet.Radio = (*Radio)(nil)

// NewRadio starts reading frames from conn. Close the Radio to stop.
func NewRadio(conn io.ReadWriteCloser, opts ...RadioOption) *Radio {
	r := &Radio{
		conn:      conn,
		timeout:   DefaultTimeout,
		log:       logrus.StandardLogger(),
		responses: make(chan *Frame, responseQueueDepth),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	go r.readLoop()
	return r
}

func (r *Radio) readLoop() {
	defer close(r.done)

	decoder := NewDecoder()
	buf := make([]byte, 128)
	for {
		n, err := r.conn.Read(buf)
		if err != nil {
			r.fail(err)
			return
		}

		for i := 0; i < n; i++ {
			frame, err := decoder.DecodeByte(buf[i])
			if err != nil {
				r.log.WithError(err).Debug("Dropping bad bridge frame")
				continue
			}
			if frame != nil {
				r.dispatch(frame)
			}
		}
	}
}

func (r *Radio) dispatch(frame *Frame) {
	if frame.Type == MsgRxPacket {
		data, ok := frame.Bytes(1)
		if !ok {
			r.log.Warn("RX_PACKET event without data")
			return
		}
		r.mu.Lock()
		if len(r.rxQueue) >= RxQueueDepth {
			r.dropped++
			r.mu.Unlock()
			r.log.Warn("RX queue full, dropping packet")
			return
		}
		r.rxQueue = append(r.rxQueue, data)
		r.mu.Unlock()
		return
	}

	select {
	case r.responses <- frame:
	default:
		r.log.WithField("type", FormatMessageType(frame.Type)).Debug("Dropping unsolicited response")
	}
}

func (r *Radio) fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err == nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
			r.err = ErrClosed
		} else {
			r.err = fmt.Errorf("bridge: read failed: %w", err)
		}
	}
}

// Err returns the error that stopped the reader, if any.
func (r *Radio) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// request sends one command and waits for its response of type expect.
func (r *Radio) request(cmd *Frame, expect uint8) (*Frame, error) {
	r.reqMu.Lock()
	defer r.reqMu.Unlock()

	if err := r.Err(); err != nil {
		return nil, err
	}

	r.seq++
	seq := r.seq
	cmd.SetSeq(seq)

	data, err := cmd.Encode()
	if err != nil {
		return nil, err
	}
	if _, err := r.conn.Write(data); err != nil {
		return nil, fmt.Errorf("bridge: write %s: %w", FormatMessageType(cmd.Type), err)
	}

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	for {
		select {
		case resp := <-r.responses:
			if !r.answers(resp, seq, expect) {
				continue
			}
			if resp.Type == MsgError {
				code, _ := resp.Uint(0)
				text, _ := resp.Text(1)
				return nil, &DongleError{Command: cmd.Type, Code: ErrorCode(code), Text: text}
			}
			return resp, nil
		case <-timer.C:
			return nil, fmt.Errorf("%w (%s after %v)", ErrTimeout, FormatMessageType(cmd.Type), r.timeout)
		case <-r.done:
			return nil, r.Err()
		}
	}
}

// answers reports whether resp is the reply to request seq. Replies
// without a sequence number are matched by type.
func (r *Radio) answers(resp *Frame, seq uint64, expect uint8) bool {
	log := r.log.WithField("type", FormatMessageType(resp.Type))
	if got, ok := resp.Seq(); ok && got != seq {
		log.WithField("seq", got).Debug("Dropping stale response")
		return false
	}
	if resp.Type != expect && resp.Type != MsgError {
		log.WithField("expected", FormatMessageType(expect)).Debug("Dropping unexpected response")
		return false
	}
	return true
}

func (r *Radio) command(cmd *Frame) error {
	_, err := r.request(cmd, MsgOK)
	return err
}

func (r *Radio) clearQueue() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rxQueue = nil
}

// Init resets the dongle's transceiver.
func (r *Radio) Init() error {
	if err := r.command(NewInitCommand()); err != nil {
		return err
	}
	r.clearQueue()
	return nil
}

// SetChannel selects the RF channel.
func (r *Radio) SetChannel(channel uint8) error {
	return r.command(NewSetChannelCommand(channel))
}

// SetRxAddress sets the address of a receive pipe.
func (r *Radio) SetRxAddress(pipe uint8, addr nrfnet.PhysicalAddress) error {
	return r.command(NewSetRxAddressCommand(pipe, addr))
}

// SetTxAddress sets the destination of the next transmission.
func (r *Radio) SetTxAddress(addr nrfnet.PhysicalAddress) error {
	return r.command(NewSetTxAddressCommand(addr))
}

// Transmit sends one packet; ErrNoAck means the receiver never acknowledged.
func (r *Radio) Transmit(data []byte) error {
	resp, err := r.request(NewTransmitCommand(data), MsgTxResult)
	if err != nil {
		return err
	}
	acked, ok := resp.Bool(0)
	if !ok {
		return fmt.Errorf("bridge: TX_RESULT without ack flag")
	}
	if !acked {
		return ErrNoAck
	}
	return nil
}

// Receive copies the oldest queued packet into buf.
func (r *Radio) Receive(buf []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.rxQueue) == 0 {
		return 0, ErrNoPacket
	}
	data := r.rxQueue[0]
	r.rxQueue = r.rxQueue[1:]
	return copy(buf, data), nil
}

// Available reports whether a received packet is queued.
func (r *Radio) Available() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rxQueue) > 0
}

// FlushTx drops pending transmit payloads on the dongle.
func (r *Radio) FlushTx() error {
	return r.command(NewFlushTxCommand())
}

// FlushRx drops received payloads on the dongle and in the host queue.
func (r *Radio) FlushRx() error {
	if err := r.command(NewFlushRxCommand()); err != nil {
		return err
	}
	r.clearQueue()
	return nil
}

// SetMode switches the transceiver between receive and transmit.
func (r *Radio) SetMode(mode nrfnet.RadioMode) error {
	return r.command(NewSetModeCommand(mode))
}

// Ping checks the link and returns the dongle's uptime.
func (r *Radio) Ping() (time.Duration, error) {
	resp, err := r.request(NewPingCommand(), MsgPong)
	if err != nil {
		return 0, err
	}
	uptime, _ := resp.Uint(0)
	return time.Duration(uptime) * time.Millisecond, nil
}

// Dropped returns the number of packets lost to a full host queue.
func (r *Radio) Dropped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Close closes the connection and waits for the reader to stop.
func (r *Radio) Close() error {
	err := r.conn.Close()
	<-r.done
	return err
}
