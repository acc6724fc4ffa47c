// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bridge

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// wireBody is the CBOR body of every frame: [msg_type, payload_map|null].
type wireBody struct {
	_       struct{} `cbor:",toarray"`
	Type    uint8
	Payload map[int]interface{}
}

func encodeCBORBody(msgType uint8, payload map[int]interface{}) ([]byte, error) {
	if len(payload) == 0 {
		payload = nil
	}
	return cbor.Marshal(wireBody{Type: msgType, Payload: payload})
}

// ParseCBORMessage parses a frame body. Empty payloads decode as a nil map.
func ParseCBORMessage(data []byte) (msgType uint8, payload map[int]interface{}, err error) {
	if len(data) == 0 {
		return 0, nil, fmt.Errorf("empty CBOR body")
	}
	var body wireBody
	if err := cbor.Unmarshal(data, &body); err != nil {
		return 0, nil, fmt.Errorf("failed to decode CBOR body: %w", err)
	}
	return body.Type, body.Payload, nil
}
