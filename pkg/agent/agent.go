// Package agent is the response generation pipeline: it turns a
// conversation snapshot into the next reply by streaming model rounds,
// executing requested tools between rounds, and cutting the stream into
// sentence fragments for speech.
package agent

import (
	"context"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/estateline/estateline/pkg/conversation"
	"github.com/estateline/estateline/pkg/segment"
	"github.com/estateline/estateline/pkg/tools"
	"github.com/estateline/estateline/pkg/trace"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	// MaxToolRounds caps how many tool-call rounds one turn may take.
	MaxToolRounds = 4

	// MaxEmptyRetries caps the nudges after rounds with no output.
	MaxEmptyRetries = 2
)

// retryNudge is injected as a user message when a round produces
// neither content nor tool calls.
const retryNudge = "Respond with a real output."

// fallbackReply is spoken when the model keeps producing nothing.
const fallbackReply = "I'm sorry, I lost my train of thought. Could you say that again?"

// Config controls the generation pipeline.
type Config struct {
	// SystemPrompt overrides the built-in prompt when set.
	SystemPrompt string

	// Segment configures sentence fragmentation for streaming.
	Segment segment.Config

	// MaxToolRounds and MaxEmptyRetries override the package caps when
	// positive.
	MaxToolRounds   int
	MaxEmptyRetries int
}

// DefaultConfig returns the default pipeline configuration.
func DefaultConfig() Config {
	return Config{
		SystemPrompt:    systemPrompt,
		Segment:         segment.Config{EnableSmartPunctuation: true},
		MaxToolRounds:   MaxToolRounds,
		MaxEmptyRetries: MaxEmptyRetries,
	}
}

// Agent generates replies over a model provider and a tool registry.
// It keeps no state of its own; everything it needs lives in the
// conversation state passed to each call.
type Agent struct {
	provider Provider
	registry *tools.Registry
	config   Config
	logger   *zap.Logger
}

// New creates an agent.
func New(provider Provider, registry *tools.Registry, config Config, logger *zap.Logger) *Agent {
	if config.SystemPrompt == "" {
		config.SystemPrompt = systemPrompt
	}
	if config.MaxToolRounds <= 0 {
		config.MaxToolRounds = MaxToolRounds
	}
	if config.MaxEmptyRetries <= 0 {
		config.MaxEmptyRetries = MaxEmptyRetries
	}
	return &Agent{
		provider: provider,
		registry: registry,
		config:   config,
		logger:   logger,
	}
}

// StreamTurn produces the next reply as sentence fragments delivered
// through emit. It satisfies the bridge's generator contract.
func (a *Agent) StreamTurn(ctx context.Context, convo *conversation.State, emit func(content string) error) error {
	seg := segment.New(a.config.Segment)

	onDelta := func(delta string) error {
		for _, sentence := range seg.Feed(delta) {
			if err := emit(sentence + " "); err != nil {
				return err
			}
		}
		return nil
	}

	if _, err := a.run(ctx, convo, onDelta); err != nil {
		return err
	}

	if rest := seg.Flush(); rest != "" {
		return emit(rest)
	}
	return nil
}

// Respond produces the whole reply at once, for the SMS path.
func (a *Agent) Respond(ctx context.Context, convo *conversation.State) (string, error) {
	discard := func(string) error { return nil }
	return a.run(ctx, convo, discard)
}

// run drives the round loop: stream a model round, execute any tool
// calls it produced, feed the results back, and go again. Content
// reaches onDelta as it streams; the return value is the final round's
// accumulated text.
func (a *Agent) run(ctx context.Context, convo *conversation.State, onDelta func(string) error) (string, error) {
	messages := a.buildMessages(convo)

	toolRounds := 0
	emptyRetries := 0
	for invocation := 0; ; invocation++ {
		result, err := a.streamRound(ctx, invocation, ChatRequest{
			Messages: messages,
			Tools:    a.toolSpecs(),
		}, onDelta)
		if err != nil {
			return "", err
		}

		if len(result.ToolCalls) > 0 {
			toolRounds++
			if toolRounds > a.config.MaxToolRounds {
				return "", fmt.Errorf("tool round limit reached after %d rounds", a.config.MaxToolRounds)
			}
			messages = a.executeToolCalls(ctx, convo, messages, result)
			continue
		}

		if strings.TrimSpace(result.Content) == "" {
			emptyRetries++
			if emptyRetries > a.config.MaxEmptyRetries {
				a.logger.Warn("model kept returning empty output, giving up",
					zap.Int("retries", a.config.MaxEmptyRetries))
				if err := onDelta(fallbackReply); err != nil {
					return "", err
				}
				return fallbackReply, nil
			}
			messages = append(messages, ChatMessage{Role: RoleUser, Content: retryNudge})
			continue
		}

		return result.Content, nil
	}
}

func (a *Agent) streamRound(ctx context.Context, invocation int, req ChatRequest, onDelta func(string) error) (*ChatResult, error) {
	roundCtx, span := trace.InstrumentLLMRequest(ctx, a.provider.Name(), a.provider.Model(), invocation)
	defer span.End()

	result, err := a.provider.StreamChat(roundCtx, req, onDelta)
	if err != nil {
		trace.RecordError(span, err)
		return nil, fmt.Errorf("model round %d: %w", invocation, err)
	}
	return result, nil
}

// executeToolCalls runs every requested tool and appends the assistant
// echo plus the tool results to the message history. A criteria patch
// is merged into the conversation and announced to the model the same
// way the extraction step announces it.
func (a *Agent) executeToolCalls(ctx context.Context, convo *conversation.State, messages []ChatMessage, result *ChatResult) []ChatMessage {
	messages = append(messages, ChatMessage{
		Role:      RoleAssistant,
		Content:   result.Content,
		ToolCalls: result.ToolCalls,
	})

	for _, call := range result.ToolCalls {
		a.logger.Info("executing tool",
			zap.String("tool", call.Name), zap.String("tool_call_id", call.ID))

		res := a.registry.Dispatch(ctx, call.Name, decodeArgs(a.logger, call.Arguments))
		messages = append(messages, ChatMessage{
			Role:       RoleTool,
			Content:    res.Content,
			ToolCallID: call.ID,
			ToolName:   call.Name,
		})

		if res.Criteria != nil {
			convo.ApplyCriteria(res.Criteria)
			merged := convo.Criteria()
			messages = append(messages, ChatMessage{
				Role:    RoleUser,
				Content: criteriaNotice(merged.String()),
			})
		}
	}
	return messages
}

// buildMessages renders the conversation for the model: system prompt,
// then what the session already knows about the search, then the
// transcript with platform roles mapped to model roles.
func (a *Agent) buildMessages(convo *conversation.State) []ChatMessage {
	transcript := convo.Transcript()
	messages := make([]ChatMessage, 0, len(transcript)+2)

	messages = append(messages, ChatMessage{Role: RoleSystem, Content: a.config.SystemPrompt})

	if criteria := convo.Criteria(); !criteria.IsZero() {
		messages = append(messages, ChatMessage{Role: RoleUser, Content: criteriaNotice(criteria.String())})
	}

	for _, msg := range transcript {
		role := RoleUser
		if msg.Role == conversation.RoleAgent {
			role = RoleAssistant
		}
		messages = append(messages, ChatMessage{Role: role, Content: msg.Content})
	}
	return messages
}

func (a *Agent) toolSpecs() []ToolSpec {
	all := a.registry.All()
	specs := make([]ToolSpec, 0, len(all))
	for _, tool := range all {
		specs = append(specs, ToolSpec{
			Name:        tool.Name(),
			Description: tool.Description(),
			Parameters:  tool.Parameters(),
		})
	}
	return specs
}

// decodeArgs parses the model's argument JSON. Malformed arguments
// become an empty map so the tool still runs; tools validate their own
// inputs.
func decodeArgs(logger *zap.Logger, raw string) map[string]any {
	args := make(map[string]any)
	if raw == "" {
		return args
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		logger.Warn("malformed tool arguments", zap.String("raw", raw), zap.Error(err))
		return make(map[string]any)
	}
	return args
}
