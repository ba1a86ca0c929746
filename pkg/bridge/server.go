package bridge

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/estateline/estateline/pkg/bridge/events"
	"github.com/estateline/estateline/pkg/conversation"
)

// ServerConfig holds the configuration for the bridge server.
type ServerConfig struct {
	// Greeting is spoken as response id 0 when a call connects.
	Greeting string

	// ReadBufferSize is the WebSocket read buffer size.
	ReadBufferSize int

	// WriteBufferSize is the WebSocket write buffer size.
	WriteBufferSize int
}

// DefaultServerConfig returns the default server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Greeting:        "Hi, this is your real estate assistant. How can I help you today?",
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
	}
}

// Server accepts one WebSocket connection per call and runs the
// turn-taking protocol over it. It owns the read side of each
// connection; writes go through the session's queue.
type Server struct {
	config    ServerConfig
	generator Generator
	logger    *zap.Logger

	sessions   map[string]*Session
	sessionsMu sync.RWMutex

	upgrader websocket.Upgrader
}

// NewServer creates a bridge server. The generator produces the reply
// stream for each turn.
func NewServer(config ServerConfig, generator Generator, logger *zap.Logger) *Server {
	return &Server{
		config:    config,
		generator: generator,
		logger:    logger,
		sessions:  make(map[string]*Session),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins; customize for production
			},
		},
	}
}

// HandleConnection upgrades the request and serves the call until the
// peer disconnects. Mount it at a route with a {call_id} path value.
func (s *Server) HandleConnection(w http.ResponseWriter, r *http.Request) {
	callID := r.PathValue("call_id")
	if callID == "" {
		http.Error(w, "missing call id", http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed",
			zap.String("call_id", callID), zap.Error(err))
		return
	}

	transport := NewWebSocketTransport(conn)
	session := NewSession(r.Context(), callID, transport, s.logger)

	s.registerSession(session)
	session.SetOnClose(func(sess *Session) {
		s.unregisterSession(sess)
	})

	convo := conversation.NewState(callID)
	coordinator := NewCoordinator(session, convo, s.generator, s.config.Greeting, s.logger)

	if err := coordinator.Start(); err != nil {
		s.logger.Error("failed to open session",
			zap.String("call_id", callID), zap.Error(err))
		closeWithStatus(conn, websocket.CloseInternalServerErr, "session open failed")
		session.Close()
		return
	}

	s.readLoop(conn, session, coordinator)
}

// readLoop pumps inbound messages into the coordinator. A malformed
// message is logged and skipped; a read error ends the call.
func (s *Server) readLoop(conn *websocket.Conn, session *Session, coordinator *Coordinator) {
	defer func() {
		coordinator.Shutdown()
		session.Close()
	}()

	for {
		select {
		case <-session.Context().Done():
			return
		default:
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Warn("websocket read error",
					zap.String("call_id", session.ID), zap.Error(err))
			}
			return
		}

		event, err := events.ParseClientEvent(data)
		if err != nil {
			s.logger.Warn("skipping malformed event",
				zap.String("call_id", session.ID), zap.Error(err))
			continue
		}

		coordinator.OnEvent(event)
	}
}

// Close shuts down every active session.
func (s *Server) Close() {
	s.sessionsMu.Lock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session)
	}
	s.sessions = make(map[string]*Session)
	s.sessionsMu.Unlock()

	for _, session := range sessions {
		session.Close()
	}
}

// GetSession returns a session by call id.
func (s *Server) GetSession(callID string) *Session {
	s.sessionsMu.RLock()
	defer s.sessionsMu.RUnlock()
	return s.sessions[callID]
}

// SessionCount returns the number of active sessions.
func (s *Server) SessionCount() int {
	s.sessionsMu.RLock()
	defer s.sessionsMu.RUnlock()
	return len(s.sessions)
}

func (s *Server) registerSession(session *Session) {
	s.sessionsMu.Lock()
	s.sessions[session.ID] = session
	s.sessionsMu.Unlock()

	s.logger.Info("session registered", zap.String("call_id", session.ID))
}

func (s *Server) unregisterSession(session *Session) {
	s.sessionsMu.Lock()
	delete(s.sessions, session.ID)
	s.sessionsMu.Unlock()

	s.logger.Info("session unregistered", zap.String("call_id", session.ID))
}

func closeWithStatus(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}
