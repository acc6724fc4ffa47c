// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bridge

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/Thermoquad/nrfnet/pkg/airsim"
	"github.com/Thermoquad/nrfnet/pkg/nrfnet"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

var (
	hostAddr = nrfnet.PhysicalAddress{0xC3, 0xCC, 0xCC, 0xCC, 0xCC}
	peerAddr = nrfnet.PhysicalAddress{0x3C, 0xCC, 0xCC, 0xCC, 0xCC}
)

func quietLogger() logrus.FieldLogger {
	log, _ := logtest.NewNullLogger()
	return log
}

// newDongle serves an airsim transceiver through an Emulator and returns a
// host Radio connected to it over an in-memory pipe.
func newDongle(t *testing.T, ether *airsim.Ether, name string) (*Radio, *airsim.Transceiver) {
	t.Helper()
	host, dev := net.Pipe()
	tr := ether.NewTransceiver(name)

	emu := NewEmulator(tr, WithEmulatorLogger(quietLogger()))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- emu.Serve(ctx, dev) }()

	r := NewRadio(host, WithTimeout(waitFor), WithRadioLogger(quietLogger()))
	t.Cleanup(func() {
		r.Close()
		cancel()
		dev.Close()
		<-done
	})
	return r, tr
}

// peer returns a plain transceiver listening on peerAddr.
func peer(t *testing.T, ether *airsim.Ether) *airsim.Transceiver {
	t.Helper()
	p := ether.NewTransceiver("peer")
	require.NoError(t, p.Init())
	require.NoError(t, p.SetChannel(nrfnet.DefaultChannel))
	require.NoError(t, p.SetRxAddress(nrfnet.DefaultRxPipe, peerAddr))
	return p
}

func TestRadioCommandsReachTransceiver(t *testing.T) {
	r, tr := newDongle(t, airsim.NewEther(), "dongle")

	require.NoError(t, r.Init())
	require.NoError(t, r.SetChannel(76))
	require.NoError(t, r.SetRxAddress(1, hostAddr))
	require.NoError(t, r.SetTxAddress(peerAddr))
	require.NoError(t, r.FlushTx())
	require.NoError(t, r.FlushRx())
	require.NoError(t, r.SetMode(nrfnet.RadioModeTx))

	assert.Equal(t, []string{
		"init",
		"channel 76",
		"rx_address 1 C3 CC CC CC CC",
		"tx_address 3C CC CC CC CC",
		"flush_tx",
		"flush_rx",
		"mode TX",
	}, tr.History())
	assert.Equal(t, nrfnet.RadioModeTx, tr.Mode())
}

func TestRadioTransmit(t *testing.T) {
	ether := airsim.NewEther()
	r, _ := newDongle(t, ether, "dongle")
	p := peer(t, ether)

	require.NoError(t, r.Init())
	require.NoError(t, r.SetChannel(nrfnet.DefaultChannel))
	require.NoError(t, r.SetTxAddress(peerAddr))
	require.NoError(t, r.SetMode(nrfnet.RadioModeTx))

	require.NoError(t, r.Transmit([]byte("hello")))
	require.True(t, p.Available())

	buf := make([]byte, nrfnet.MaxPacketSize)
	n, err := p.Receive(buf)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), buf[:5])
	assert.Equal(t, nrfnet.MaxPacketSize, n)

	// Nobody listens on hostAddr
	require.NoError(t, r.SetTxAddress(hostAddr))
	assert.ErrorIs(t, r.Transmit([]byte("lost")), ErrNoAck)
}

func TestRadioReceive(t *testing.T) {
	ether := airsim.NewEther()
	r, _ := newDongle(t, ether, "dongle")
	require.NoError(t, r.Init())
	require.NoError(t, r.SetChannel(nrfnet.DefaultChannel))
	require.NoError(t, r.SetRxAddress(nrfnet.DefaultRxPipe, hostAddr))
	require.NoError(t, r.SetMode(nrfnet.RadioModeRx))

	assert.False(t, r.Available())
	_, err := r.Receive(make([]byte, nrfnet.MaxPacketSize))
	assert.ErrorIs(t, err, ErrNoPacket)

	tx := ether.NewTransceiver("tx")
	require.NoError(t, tx.Init())
	require.NoError(t, tx.SetChannel(nrfnet.DefaultChannel))
	require.NoError(t, tx.SetTxAddress(hostAddr))
	require.NoError(t, tx.SetMode(nrfnet.RadioModeTx))
	require.NoError(t, tx.Transmit([]byte{0xAB, 0xCD}))

	require.Eventually(t, r.Available, waitFor, time.Millisecond)
	buf := make([]byte, nrfnet.MaxPacketSize)
	n, err := r.Receive(buf)
	require.NoError(t, err)
	assert.Equal(t, nrfnet.MaxPacketSize, n)
	assert.Equal(t, []byte{0xAB, 0xCD, 0x00}, buf[:3])
	assert.False(t, r.Available())
}

func TestRadioQueueOverflow(t *testing.T) {
	r, tr := newDongle(t, airsim.NewEther(), "dongle")
	require.NoError(t, r.Init())

	for i := 0; i < RxQueueDepth+1; i++ {
		require.True(t, tr.Inject([]byte{byte(i)}))
		// Wait for the emulator to forward it before the next one
		require.Eventually(t, func() bool { return !tr.Available() }, waitFor, time.Millisecond)
	}
	require.Eventually(t, func() bool { return r.Dropped() == 1 }, waitFor, time.Millisecond)

	buf := make([]byte, nrfnet.MaxPacketSize)
	for i := 0; i < RxQueueDepth; i++ {
		_, err := r.Receive(buf)
		require.NoError(t, err)
		assert.Equal(t, byte(i), buf[0], "queue order")
	}

	// FlushRx clears whatever the host still holds
	require.True(t, tr.Inject([]byte{9}))
	require.Eventually(t, r.Available, waitFor, time.Millisecond)
	require.NoError(t, r.FlushRx())
	assert.False(t, r.Available())
}

func TestRadioPing(t *testing.T) {
	r, _ := newDongle(t, airsim.NewEther(), "dongle")
	uptime, err := r.Ping()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, uptime, time.Duration(0))
}

func TestRadioDongleErrors(t *testing.T) {
	r, _ := newDongle(t, airsim.NewEther(), "dongle")

	t.Run("radio failure", func(t *testing.T) {
		err := r.SetRxAddress(airsim.PipeCount+3, hostAddr)
		var dongleErr *DongleError
		require.ErrorAs(t, err, &dongleErr)
		assert.Equal(t, ErrorRadioFailure, dongleErr.Code)
		assert.Equal(t, uint8(MsgSetRxAddress), dongleErr.Command)
		assert.Contains(t, err.Error(), "SET_RX_ADDRESS rejected")
	})

	t.Run("bad argument", func(t *testing.T) {
		err := r.SetMode(nrfnet.RadioMode(7))
		var dongleErr *DongleError
		require.ErrorAs(t, err, &dongleErr)
		assert.Equal(t, ErrorBadArgument, dongleErr.Code)
		assert.Equal(t, "mode", dongleErr.Text)
	})

	t.Run("unknown command", func(t *testing.T) {
		_, err := r.request(NewFrame(0x25, nil), MsgOK)
		var dongleErr *DongleError
		require.ErrorAs(t, err, &dongleErr)
		assert.Equal(t, ErrorUnknownCmd, dongleErr.Code)
	})

	// The link keeps working after rejected commands
	_, err := r.Ping()
	assert.NoError(t, err)
}

func TestRadioTimeout(t *testing.T) {
	host, dev := net.Pipe()
	go io.Copy(io.Discard, dev)

	r := NewRadio(host, WithTimeout(20*time.Millisecond), WithRadioLogger(quietLogger()))
	defer r.Close()

	_, err := r.Ping()
	assert.ErrorIs(t, err, ErrTimeout)
}

// slowDongle answers TRANSMIT with an acked TX_RESULT after txDelay and every
// other command with OK. With echoSeq unset it answers like firmware that
// does not echo sequence numbers.
func slowDongle(t *testing.T, txDelay time.Duration, echoSeq bool) net.Conn {
	t.Helper()
	host, dev := net.Pipe()
	t.Cleanup(func() { dev.Close() })

	go func() {
		decoder := NewDecoder()
		buf := make([]byte, 128)
		for {
			n, err := dev.Read(buf)
			if err != nil {
				return
			}
			for i := 0; i < n; i++ {
				cmd, err := decoder.DecodeByte(buf[i])
				if err != nil || cmd == nil {
					continue
				}
				resp := NewOKResponse()
				if cmd.Type == MsgTransmit {
					time.Sleep(txDelay)
					resp = NewTxResultResponse(true)
				}
				if seq, ok := cmd.Seq(); ok && echoSeq {
					resp.SetSeq(seq)
				}
				data, err := resp.Encode()
				if err != nil {
					return
				}
				if _, err := dev.Write(data); err != nil {
					return
				}
			}
		}
	}()
	return host
}

func TestRadioLateResponse(t *testing.T) {
	for _, echoSeq := range []bool{true, false} {
		name := "without seq"
		if echoSeq {
			name = "with seq"
		}
		t.Run(name, func(t *testing.T) {
			r := NewRadio(slowDongle(t, 80*time.Millisecond, echoSeq),
				WithTimeout(50*time.Millisecond), WithRadioLogger(quietLogger()))
			defer r.Close()

			assert.ErrorIs(t, r.Transmit([]byte{0x01}), ErrTimeout)

			// The TX_RESULT that arrives late must not answer FLUSH_TX
			require.NoError(t, r.FlushTx())
			require.NoError(t, r.SetMode(nrfnet.RadioModeRx))
			_, err := r.Ping()
			assert.ErrorIs(t, err, ErrTimeout, "OK does not answer PING")
		})
	}
}

func TestNetworkListensAfterTransmitTimeout(t *testing.T) {
	r := NewRadio(slowDongle(t, 80*time.Millisecond, true),
		WithTimeout(50*time.Millisecond), WithRadioLogger(quietLogger()))
	defer r.Close()

	node := nrfnet.New(r, nrfnet.WithLogger(quietLogger()))
	require.NoError(t, node.Begin(0o1, nil))

	err := node.Send(nrfnet.RootAddress, []byte("up"), nrfnet.MsgData)
	assert.ErrorIs(t, err, nrfnet.ErrTransmitFailed)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, nrfnet.ModeListening, node.Mode())
	assert.Equal(t, uint64(1), node.Stats().TxFailures)
}

func TestRadioClosed(t *testing.T) {
	t.Run("local close", func(t *testing.T) {
		r, _ := newDongle(t, airsim.NewEther(), "dongle")
		require.NoError(t, r.Close())
		assert.ErrorIs(t, r.Err(), ErrClosed)
		assert.ErrorIs(t, r.Init(), ErrClosed)
	})

	t.Run("remote close", func(t *testing.T) {
		host, dev := net.Pipe()
		r := NewRadio(host, WithRadioLogger(quietLogger()))
		defer r.Close()

		require.NoError(t, dev.Close())
		require.Eventually(t, func() bool { return r.Err() != nil }, waitFor, time.Millisecond)
		assert.ErrorIs(t, r.Err(), ErrClosed)
		_, err := r.Ping()
		assert.ErrorIs(t, err, ErrClosed)
	})
}

func TestEmulatorStopsOnContext(t *testing.T) {
	host, dev := net.Pipe()
	defer host.Close()
	defer dev.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	emu := NewEmulator(airsim.NewEther().NewTransceiver("x"), WithPollInterval(time.Millisecond),
		WithEmulatorLogger(quietLogger()))
	go func() { done <- emu.Serve(ctx, dev) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(waitFor):
		t.Fatal("Serve did not return after cancel")
	}
}

// A node driven through the bridge talks to a node on the air directly.
func TestNetworkOverBridge(t *testing.T) {
	ether := airsim.NewEther()
	r, _ := newDongle(t, ether, "01")

	var rootInbox []string
	root := nrfnet.New(ether.NewTransceiver("0"), nrfnet.WithLogger(quietLogger()))
	require.NoError(t, root.Begin(nrfnet.RootAddress, func(from nrfnet.NodeAddress, payload []byte) {
		rootInbox = append(rootInbox, from.String()+":"+string(payload))
	}))

	node := nrfnet.New(r, nrfnet.WithLogger(quietLogger()))
	require.NoError(t, node.Begin(0o1, nil))

	require.NoError(t, node.Send(nrfnet.RootAddress, []byte("up"), nrfnet.MsgData))
	require.NoError(t, root.Update())
	assert.Equal(t, []string{"01:up"}, rootInbox)

	// The ACK from the root reaches the host through an RX_PACKET event
	require.Eventually(t, func() bool {
		assert.NoError(t, node.Update())
		return node.Stats().AcksReceived == 1
	}, waitFor, time.Millisecond)
}
