// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package nrfnet

import (
	"bytes"
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"
)

// getFuzzRounds returns the number of fuzz rounds from FUZZ_ROUNDS env var, default 1000
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 1000
}

// getFuzzSeed returns the seed from FUZZ_SEED env var, or generates one from current time
func getFuzzSeed() int64 {
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if seed, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			return seed
		}
	}
	return time.Now().UnixNano()
}

// newFuzzRng creates a new random number generator and logs the seed for reproducibility
func newFuzzRng(t *testing.T) *rand.Rand {
	seed := getFuzzSeed()
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

// randomValidAddress builds an address with 0..5 levels of digits 1..7
func randomValidAddress(rng *rand.Rand) NodeAddress {
	depth := rng.Intn(MaxDepth + 1)
	var n uint16
	for level := 0; level < depth; level++ {
		n |= uint16(rng.Intn(7)+1) << (DigitBits * level)
	}
	return NodeAddress(n)
}

// TestFuzzDecode_RandomBytes feeds random slots to the decoder and checks
// that accepted packets re-encode to the same prefix
func TestFuzzDecode_RandomBytes(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	for i := 0; i < rounds; i++ {
		data := make([]byte, rng.Intn(MaxPacketSize+1))
		rng.Read(data)

		p, err := DecodePacket(data)
		if err != nil {
			continue
		}

		out, err := p.MarshalBinary()
		if err != nil {
			t.Fatalf("Round %d: re-encode failed: %v", i, err)
		}
		if !bytes.Equal(out, data[:len(out)]) {
			t.Fatalf("Round %d: re-encoded %X differs from input %X", i, out, data)
		}
	}
}

// TestFuzzPacket_RoundTrip encodes random valid packets and decodes them
func TestFuzzPacket_RoundTrip(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	for i := 0; i < rounds; i++ {
		h := Header{
			To:   NodeAddress(rng.Intn(0x10000)),
			From: NodeAddress(rng.Intn(0x10000)),
			Type: MessageType(rng.Intn(4)),
		}
		payload := make([]byte, rng.Intn(MaxPayloadSize+1))
		rng.Read(payload)

		p, err := NewPacket(h, payload)
		if err != nil {
			t.Fatalf("Round %d: NewPacket failed: %v", i, err)
		}

		var slot [MaxPacketSize]byte
		if _, err := p.MarshalTo(slot[:]); err != nil {
			t.Fatalf("Round %d: MarshalTo failed: %v", i, err)
		}

		decoded, err := DecodePacket(slot[:])
		if err != nil {
			t.Fatalf("Round %d: decode failed: %v", i, err)
		}
		if decoded.Header != h || !bytes.Equal(decoded.Data(), payload) {
			t.Fatalf("Round %d: mismatch: got %+v, want header %+v payload %X", i, decoded.Header, h, payload)
		}
	}
}

// TestFuzzRouting_ConvergesOnDestination follows NextHopFor from random
// sources to random destinations and checks every route terminates
func TestFuzzRouting_ConvergesOnDestination(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	for i := 0; i < rounds; i++ {
		from := randomValidAddress(rng)
		to := randomValidAddress(rng)

		hops, err := Route(from, to)
		if err != nil {
			t.Fatalf("Round %d: Route(%s, %s) failed: %v", i, from, to, err)
		}
		if len(hops) > from.Depth()+to.Depth() {
			t.Fatalf("Round %d: route %s longer than through the root", i, FormatRoute(from, hops))
		}

		// Each hop is a direct parent or child of the previous node.
		prev := from
		for _, hop := range hops {
			if hop.Depth() != prev.Depth()+1 && hop.Depth() != prev.Depth()-1 {
				t.Fatalf("Round %d: hop %s -> %s skips a level", i, prev, hop)
			}
			prev = hop
		}
	}
}
