package bridge

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/estateline/estateline/pkg/bridge/events"
	"github.com/estateline/estateline/pkg/bridge/state"
	"github.com/estateline/estateline/pkg/conversation"
	"github.com/estateline/estateline/pkg/trace"
)

// ErrTurnSuperseded aborts a generation whose response id has been
// replaced by a newer turn request.
var ErrTurnSuperseded = errors.New("turn superseded")

// apologyLine is spoken when generation fails outright, so the caller
// is not left in silence.
const apologyLine = "I'm sorry, I'm having trouble answering right now. Could you say that again?"

// Generator produces a streaming reply for a conversation snapshot.
// Implementations call emit once per fragment, in order, and return
// once the turn is finished. When emit returns an error or ctx is
// cancelled the turn is dead and the generator must stop.
type Generator interface {
	StreamTurn(ctx context.Context, convo *conversation.State, emit func(content string) error) error
}

// Coordinator drives the turn-taking protocol for one call: it applies
// transcript updates, answers keepalive probes, launches a generation
// goroutine per turn request, and silences generations whose response
// id has been superseded.
type Coordinator struct {
	session   *Session
	state     *conversation.State
	tracker   *state.TurnTracker
	generator Generator
	greeting  string
	logger    *zap.Logger
}

// NewCoordinator creates a coordinator bound to one session.
func NewCoordinator(session *Session, convo *conversation.State, generator Generator, greeting string, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		session:   session,
		state:     convo,
		tracker:   state.NewTurnTracker(),
		generator: generator,
		greeting:  greeting,
		logger:    logger.With(zap.String("call_id", session.ID)),
	}
}

// Start performs the session opening sequence: the config event first,
// then the greeting as response id 0.
func (c *Coordinator) Start() error {
	if err := c.session.SendEvent(events.NewConfigEvent()); err != nil {
		return err
	}
	return c.session.SendEvent(events.NewResponseEvent(0, c.greeting, true))
}

// State returns the conversation state this coordinator maintains.
func (c *Coordinator) State() *conversation.State {
	return c.state
}

// OnEvent dispatches one decoded client event. Metadata and keepalive
// events are handled inline; turn requests spawn a generation
// goroutine and return immediately so the read loop stays responsive.
func (c *Coordinator) OnEvent(event events.ClientEvent) {
	switch e := event.(type) {
	case *events.CallDetailsEvent:
		c.state.SetCallInfo(e.Call.FromNumber, e.Call.ToNumber)
		c.logger.Info("call details received",
			zap.String("from", e.Call.FromNumber),
			zap.String("to", e.Call.ToNumber),
			zap.String("direction", e.Call.Direction))

	case *events.PingPongEvent:
		// Echoed at dispatch time with the probe's own timestamp;
		// enqueueing never waits on an in-flight generation.
		if err := c.session.SendEvent(events.NewPingPongAckEvent(e.Timestamp)); err != nil {
			c.logger.Warn("failed to echo keepalive", zap.Error(err))
		}

	case *events.UpdateOnlyEvent:
		c.state.SetTranscript(utterancesToMessages(e.Transcript))

	case *events.ResponseRequiredEvent:
		c.state.SetTranscript(utterancesToMessages(e.Transcript))
		c.startTurn(e)

	default:
		c.logger.Warn("unhandled client event",
			zap.String("interaction_type", string(event.ClientInteractionType())))
	}
}

// Shutdown cancels whatever turn is still generating.
func (c *Coordinator) Shutdown() {
	c.tracker.Shutdown()
}

func (c *Coordinator) startTurn(e *events.ResponseRequiredEvent) {
	turnCtx, cancel := context.WithCancel(c.session.Context())

	// Activation supersedes and cancels the previous turn; a request
	// older than the active turn never starts at all.
	if err := c.tracker.Activate(e.ResponseID, cancel); err != nil {
		cancel()
		c.logger.Debug("stale turn request ignored", zap.Int("response_id", e.ResponseID))
		return
	}

	go c.runTurn(turnCtx, e)
}

func (c *Coordinator) runTurn(ctx context.Context, e *events.ResponseRequiredEvent) {
	ctx, span := trace.InstrumentTurn(ctx, c.session.ID, e.ResponseID, string(e.ClientInteractionType()))
	defer span.End()

	fragments := 0
	emit := func(content string) error {
		if content == "" {
			return nil
		}
		if err := c.session.SendEvent(events.NewResponseEvent(e.ResponseID, content, false)); err != nil {
			return err
		}
		fragments++
		// The fragment goes out before the staleness check, so at
		// most one fragment of a superseded turn reaches the wire;
		// the platform discards it by response id.
		if !c.tracker.IsActive(e.ResponseID) {
			return ErrTurnSuperseded
		}
		return nil
	}

	err := c.generator.StreamTurn(ctx, c.state, emit)
	span.SetAttributes(attribute.Int(trace.AttrTurnFragments, fragments))

	switch {
	case err == nil:
		if err := c.tracker.Complete(e.ResponseID); err != nil {
			c.logger.Debug("turn finished after supersession", zap.Int("response_id", e.ResponseID))
			return
		}
		if err := c.session.SendEvent(events.NewResponseEvent(e.ResponseID, "", true)); err != nil {
			c.logger.Warn("failed to send turn completion", zap.Error(err))
		}

	case errors.Is(err, ErrTurnSuperseded), errors.Is(err, context.Canceled):
		c.logger.Debug("turn superseded", zap.Int("response_id", e.ResponseID))

	default:
		trace.RecordError(span, err)
		c.logger.Error("turn generation failed",
			zap.Int("response_id", e.ResponseID), zap.Error(err))
		// Best effort apology; the session itself survives.
		if c.tracker.Fail(e.ResponseID) == nil {
			_ = c.session.SendEvent(events.NewResponseEvent(e.ResponseID, apologyLine, true))
		}
	}
}

func utterancesToMessages(transcript []events.Utterance) []conversation.Message {
	msgs := make([]conversation.Message, 0, len(transcript))
	for _, u := range transcript {
		msgs = append(msgs, conversation.Message{
			Role:    conversation.Role(u.Role),
			Content: u.Content,
		})
	}
	return msgs
}
