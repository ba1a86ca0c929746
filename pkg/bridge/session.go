package bridge

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/estateline/estateline/pkg/bridge/events"
)

// Session owns the outbound side of one call's websocket. All events,
// reply fragments and keepalive echoes alike, pass through a single
// buffered channel drained by one writer goroutine, so ordering within
// a turn is preserved and an echo never waits on generation.
type Session struct {
	// ID is the platform call id taken from the websocket path.
	ID string

	transport Transport
	eventChan chan events.ServerEvent

	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger

	mu       sync.RWMutex
	wg       sync.WaitGroup
	closed   bool
	closedCh chan struct{}

	onClose func(session *Session)
}

// NewSession creates a session for the given call and starts its
// writer goroutine.
func NewSession(ctx context.Context, callID string, transport Transport, logger *zap.Logger) *Session {
	sessionCtx, cancel := context.WithCancel(ctx)

	session := &Session{
		ID:        callID,
		transport: transport,
		eventChan: make(chan events.ServerEvent, 100),
		ctx:       sessionCtx,
		cancel:    cancel,
		logger:    logger.With(zap.String("call_id", callID)),
		closedCh:  make(chan struct{}),
	}

	session.wg.Add(1)
	go session.writeLoop()

	return session
}

// SendEvent enqueues a server event for delivery. A full queue drops
// the event rather than blocking the caller.
func (s *Session) SendEvent(event events.ServerEvent) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil
	}
	s.mu.RUnlock()

	select {
	case s.eventChan <- event:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		s.logger.Warn("event channel full, dropping event",
			zap.String("response_type", string(event.ServerResponseType())))
		return nil
	}
}

// Close tears the session down and closes the transport.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.closedCh)
	s.mu.Unlock()

	// Cancelling the context stops the writer and unblocks any
	// sender; the queue itself is never closed so a racing SendEvent
	// cannot panic, it just gets dropped.
	s.cancel()
	s.wg.Wait()

	err := s.transport.Close()

	if s.onClose != nil {
		s.onClose(s)
	}

	s.logger.Info("session closed")
	return err
}

// SetOnClose sets the callback to be called when the session is closed.
func (s *Session) SetOnClose(fn func(session *Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onClose = fn
}

// Context returns the session context, cancelled at teardown.
func (s *Session) Context() context.Context {
	return s.ctx
}

// Done returns a channel closed when the session has been closed.
func (s *Session) Done() <-chan struct{} {
	return s.closedCh
}

// writeLoop drains the event queue onto the transport.
func (s *Session) writeLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case event := <-s.eventChan:
			if err := s.transport.SendEvent(event); err != nil {
				s.logger.Warn("failed to send event", zap.Error(err))
				return
			}
		}
	}
}
