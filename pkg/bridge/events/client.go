package events

import (
	"fmt"
)

// InteractionType represents the type of client event.
type InteractionType string

const (
	InteractionTypeCallDetails      InteractionType = "call_details"
	InteractionTypePingPong         InteractionType = "ping_pong"
	InteractionTypeUpdateOnly       InteractionType = "update_only"
	InteractionTypeResponseRequired InteractionType = "response_required"
	InteractionTypeReminderRequired InteractionType = "reminder_required"
)

// ClientEvent is the interface for all client events.
type ClientEvent interface {
	ClientInteractionType() InteractionType
}

// BaseClientEvent contains the discriminator shared by all client events.
type BaseClientEvent struct {
	Type InteractionType `json:"interaction_type"`
}

func (e BaseClientEvent) ClientInteractionType() InteractionType {
	return e.Type
}

// CallDetailsEvent delivers call metadata once per call.
type CallDetailsEvent struct {
	BaseClientEvent
	Call CallInfo `json:"call"`
}

// PingPongEvent is the platform's keepalive probe.
type PingPongEvent struct {
	BaseClientEvent
	Timestamp int64 `json:"timestamp"`
}

// UpdateOnlyEvent carries a transcript snapshot that requires no reply.
type UpdateOnlyEvent struct {
	BaseClientEvent
	Transcript []Utterance `json:"transcript"`
}

// ResponseRequiredEvent asks for a reply to the transcript, numbered by
// a monotonically increasing response id.
type ResponseRequiredEvent struct {
	BaseClientEvent
	ResponseID int         `json:"response_id"`
	Transcript []Utterance `json:"transcript"`
}

// ReminderRequiredEvent fires when the caller has been silent. It has
// the same shape and the same handling as a required response, so both
// interaction types parse into the one struct; the discriminator keeps
// them apart for logging.
type ReminderRequiredEvent = ResponseRequiredEvent

// ParseClientEvent parses a JSON message into a ClientEvent.
func ParseClientEvent(data []byte) (ClientEvent, error) {
	var base BaseClientEvent
	if err := json.Unmarshal(data, &base); err != nil {
		return nil, fmt.Errorf("failed to parse interaction type: %w", err)
	}

	var event ClientEvent
	var err error

	switch base.Type {
	case InteractionTypeCallDetails:
		var e CallDetailsEvent
		err = json.Unmarshal(data, &e)
		event = &e

	case InteractionTypePingPong:
		var e PingPongEvent
		err = json.Unmarshal(data, &e)
		event = &e

	case InteractionTypeUpdateOnly:
		var e UpdateOnlyEvent
		err = json.Unmarshal(data, &e)
		event = &e

	case InteractionTypeResponseRequired, InteractionTypeReminderRequired:
		var e ResponseRequiredEvent
		err = json.Unmarshal(data, &e)
		event = &e

	default:
		return nil, fmt.Errorf("unknown interaction type: %q", base.Type)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to parse %s event: %w", base.Type, err)
	}

	return event, nil
}
