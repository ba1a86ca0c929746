// Package bridge implements the websocket endpoint the call platform
// connects to for reply generation. Each call gets a session holding a
// single write queue, and a coordinator that turns inbound events into
// streamed reply fragments, interrupting stale generations when the
// caller speaks over them.
package bridge

import (
	"sync"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"

	"github.com/estateline/estateline/pkg/bridge/events"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Transport abstracts the connection a session writes events to.
type Transport interface {
	// SendEvent sends a server event to the platform.
	SendEvent(event events.ServerEvent) error

	// Close closes the transport connection.
	Close() error
}

// WebSocketTransport wraps a WebSocket connection for protocol events.
type WebSocketTransport struct {
	conn   *websocket.Conn
	mu     sync.Mutex
	closed bool
}

// NewWebSocketTransport creates a new WebSocket transport.
func NewWebSocketTransport(conn *websocket.Conn) *WebSocketTransport {
	return &WebSocketTransport{
		conn: conn,
	}
}

// SendEvent sends a server event via WebSocket.
func (t *WebSocketTransport) SendEvent(event events.ServerEvent) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return t.conn.WriteMessage(websocket.TextMessage, data)
}

// Close closes the WebSocket connection.
func (t *WebSocketTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true

	return t.conn.Close()
}
