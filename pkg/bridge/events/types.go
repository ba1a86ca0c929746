// Package events defines the wire protocol spoken over the call
// platform's LLM websocket. Inbound client events are discriminated by
// interaction_type, outbound server events by response_type; both sides
// parse into tagged variant types exactly once at the boundary.
package events

import (
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Utterance is one transcript entry as the platform sends it.
type Utterance struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Utterance roles on the wire.
const (
	UtteranceRoleUser  = "user"
	UtteranceRoleAgent = "agent"
)

// CallInfo describes the call delivered with a call_details event.
type CallInfo struct {
	CallID     string         `json:"call_id"`
	AgentID    string         `json:"agent_id,omitempty"`
	FromNumber string         `json:"from_number,omitempty"`
	ToNumber   string         `json:"to_number,omitempty"`
	Direction  string         `json:"direction,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// SessionConfig is sent to the platform right after connect to opt in
// to reconnects and call detail delivery.
type SessionConfig struct {
	AutoReconnect bool `json:"auto_reconnect"`
	CallDetails   bool `json:"call_details"`
}
