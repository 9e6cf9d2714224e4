// Package remote carries trials to a combat engine in another process, over a
// websocket or plain HTTP, and hosts a local channel for such clients.
package remote

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/combat-sim/combat-sim/sim"
)

// MessageType tags websocket messages.
type MessageType string

const (
	TypeSimulate MessageType = "simulate"
	TypeCancel   MessageType = "cancel"
	TypeResult   MessageType = "result"
	TypeError    MessageType = "error"
)

// Message is the websocket envelope. Simulate carries Request, Result carries
// Response and Error carries Error.
type Message struct {
	Type     MessageType        `json:"type"`
	Request  *sim.TrialRequest  `json:"request,omitempty"`
	Response *sim.TrialResponse `json:"response,omitempty"`
	Error    string             `json:"error,omitempty"`
}

// errorBody is the JSON body of a failed HTTP call.
type errorBody struct {
	Error string `json:"error"`
}

// decodeStrict unmarshals data into v, rejecting unknown fields.
func decodeStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decoding %T: %w", v, err)
	}
	return nil
}
