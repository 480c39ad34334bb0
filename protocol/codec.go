package protocol

import (
	"encoding/json"
	"fmt"
)

// Marshal wraps a payload in an Envelope and encodes it for the UI feed.
// A nil payload produces an envelope with no payload field, which is how
// argument-less commands like new_conversation travel.
func Marshal(msgType MessageType, payload interface{}) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("protocol: encode %q payload: %w", msgType, err)
		}
		raw = encoded
	}
	return json.Marshal(Envelope{
		Type:    msgType,
		Payload: raw,
	})
}

// Unmarshal decodes an Envelope from the wire, returning its type and the
// still-encoded payload for the dispatch switch to decode by type.
func Unmarshal(data []byte) (MessageType, json.RawMessage, error) {
	var envelope Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return "", nil, fmt.Errorf("protocol: decode envelope: %w", err)
	}
	if envelope.Type == "" {
		return "", nil, fmt.Errorf("protocol: envelope has no type")
	}
	return envelope.Type, envelope.Payload, nil
}

// UnmarshalPayload decodes a raw payload into its typed form.
func UnmarshalPayload[T any](raw json.RawMessage) (T, error) {
	var payload T
	if err := json.Unmarshal(raw, &payload); err != nil {
		return payload, fmt.Errorf("protocol: decode payload: %w", err)
	}
	return payload, nil
}
