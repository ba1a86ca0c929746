package events

// ResponseType represents the type of server event.
type ResponseType string

const (
	ResponseTypeConfig   ResponseType = "config"
	ResponseTypePingPong ResponseType = "ping_pong"
	ResponseTypeResponse ResponseType = "response"
)

// ServerEvent is the interface for all server events.
type ServerEvent interface {
	ServerResponseType() ResponseType
}

// BaseServerEvent contains the discriminator shared by all server events.
type BaseServerEvent struct {
	Type ResponseType `json:"response_type"`
}

func (e BaseServerEvent) ServerResponseType() ResponseType {
	return e.Type
}

// ConfigEvent is the first event sent on a new connection.
type ConfigEvent struct {
	BaseServerEvent
	Config     SessionConfig `json:"config"`
	ResponseID int           `json:"response_id"`
}

// NewConfigEvent creates the session opening config event.
func NewConfigEvent() *ConfigEvent {
	return &ConfigEvent{
		BaseServerEvent: BaseServerEvent{Type: ResponseTypeConfig},
		Config: SessionConfig{
			AutoReconnect: true,
			CallDetails:   true,
		},
		ResponseID: 1,
	}
}

// PingPongAckEvent answers a keepalive probe with its own timestamp.
type PingPongAckEvent struct {
	BaseServerEvent
	Timestamp int64 `json:"timestamp"`
}

// NewPingPongAckEvent echoes the given probe timestamp verbatim.
func NewPingPongAckEvent(timestamp int64) *PingPongAckEvent {
	return &PingPongAckEvent{
		BaseServerEvent: BaseServerEvent{Type: ResponseTypePingPong},
		Timestamp:       timestamp,
	}
}

// ResponseEvent carries one fragment of a reply. A turn is a sequence
// of fragments for the same response id ending with ContentComplete.
type ResponseEvent struct {
	BaseServerEvent
	ResponseID      int    `json:"response_id"`
	Content         string `json:"content"`
	ContentComplete bool   `json:"content_complete"`
	EndCall         bool   `json:"end_call,omitempty"`
}

// NewResponseEvent creates a reply fragment for the given response id.
func NewResponseEvent(responseID int, content string, contentComplete bool) *ResponseEvent {
	return &ResponseEvent{
		BaseServerEvent: BaseServerEvent{Type: ResponseTypeResponse},
		ResponseID:      responseID,
		Content:         content,
		ContentComplete: contentComplete,
	}
}

// MarshalServerEvent encodes a server event for the wire.
func MarshalServerEvent(event ServerEvent) ([]byte, error) {
	return json.Marshal(event)
}
