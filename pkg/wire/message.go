// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package wire

import (
	"encoding/json"
	"fmt"
)

// Message type tags carried in the "type" field of every protocol message.
const (
	TypeRequest  = "request"
	TypeResponse = "response"
	TypeEvent    = "event"
)

// Message is implemented by all protocol messages (requests, responses and events).
type Message interface {
	// GetProtocolMessage returns the embedded ProtocolMessage carrying
	// the sequence number and type tag.
	GetProtocolMessage() *ProtocolMessage
}

// ProtocolMessage is the common envelope of every message on the wire.
// Seq is assigned by the sender and is strictly increasing per connection
// direction, starting at 1.
type ProtocolMessage struct {
	Seq  int    `json:"seq"`
	Type string `json:"type"`
}

func (m *ProtocolMessage) GetProtocolMessage() *ProtocolMessage { return m }

// Request is a command sent to the peer. Arguments is the raw JSON payload
// of the command and is omitted from the wire entirely when empty.
type Request struct {
	ProtocolMessage
	Command   string          `json:"command"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// Response answers the request whose seq equals RequestSeq.
type Response struct {
	ProtocolMessage
	RequestSeq int             `json:"request_seq"`
	Command    string          `json:"command"`
	Success    bool            `json:"success"`
	Message    string          `json:"message,omitempty"`
	Body       json.RawMessage `json:"body,omitempty"`
}

// Event is a one-way notification from the peer.
type Event struct {
	ProtocolMessage
	Event string          `json:"event"`
	Body  json.RawMessage `json:"body,omitempty"`
}

// DecodeMessage deserializes one complete message body into its concrete
// message type, classified by the "type" tag.
func DecodeMessage(body []byte) (Message, error) {
	var envelope ProtocolMessage
	if unmarshalErr := json.Unmarshal(body, &envelope); unmarshalErr != nil {
		return nil, fmt.Errorf("failed to decode message envelope: %w", unmarshalErr)
	}

	switch envelope.Type {
	case TypeRequest:
		var req Request
		if unmarshalErr := json.Unmarshal(body, &req); unmarshalErr != nil {
			return nil, fmt.Errorf("failed to decode request: %w", unmarshalErr)
		}
		return &req, nil

	case TypeResponse:
		var resp Response
		if unmarshalErr := json.Unmarshal(body, &resp); unmarshalErr != nil {
			return nil, fmt.Errorf("failed to decode response: %w", unmarshalErr)
		}
		return &resp, nil

	case TypeEvent:
		var evt Event
		if unmarshalErr := json.Unmarshal(body, &evt); unmarshalErr != nil {
			return nil, fmt.Errorf("failed to decode event: %w", unmarshalErr)
		}
		return &evt, nil

	default:
		return nil, fmt.Errorf("unknown message type %q", envelope.Type)
	}
}
