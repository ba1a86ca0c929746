package agent

import (
	"context"
	"fmt"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// OpenAIConfig holds configuration for the OpenAI provider.
type OpenAIConfig struct {
	APIKey    string
	Model     string // e.g. "gpt-4o-mini", "gpt-4o"
	MaxTokens int    // 0 = API default
}

// OpenAIProvider streams chat completions from the OpenAI API.
type OpenAIProvider struct {
	client *openai.Client
	config OpenAIConfig
}

// NewOpenAIProvider creates a provider. OPENAI_BASE_URL overrides the
// endpoint for proxies and compatible backends.
func NewOpenAIProvider(config OpenAIConfig) (*OpenAIProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if config.Model == "" {
		config.Model = "gpt-4o-mini"
	}

	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)

	return &OpenAIProvider{
		client: &client,
		config: config,
	}, nil
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Model() string { return p.config.Model }

// StreamChat runs one streamed completion round, forwarding content
// deltas to onDelta and accumulating the full message for tool calls.
func (p *OpenAIProvider) StreamChat(ctx context.Context, req ChatRequest, onDelta func(delta string) error) (*ChatResult, error) {
	params := openai.ChatCompletionNewParams{
		Messages: convertMessages(req.Messages),
		Model:    shared.ChatModel(p.config.Model),
	}
	if p.config.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(p.config.MaxTokens))
	}
	if tools := convertTools(req.Tools); len(tools) > 0 {
		params.Tools = tools
	}

	stream := p.client.Chat.Completions.NewStreaming(ctx, params)
	acc := openai.ChatCompletionAccumulator{}

	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)

		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		if err := onDelta(delta); err != nil {
			return nil, err
		}
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("streaming error: %w", err)
	}

	result := &ChatResult{}
	if len(acc.Choices) > 0 {
		message := acc.Choices[0].Message
		result.Content = message.Content
		for _, tc := range message.ToolCalls {
			result.ToolCalls = append(result.ToolCalls, ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			})
		}
	}
	return result, nil
}

func convertMessages(messages []ChatMessage) []openai.ChatCompletionMessageParamUnion {
	converted := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			converted = append(converted, openai.SystemMessage(m.Content))
		case RoleUser:
			converted = append(converted, openai.UserMessage(m.Content))
		case RoleAssistant:
			converted = append(converted, assistantMessage(m))
		case RoleTool:
			converted = append(converted, openai.ToolMessage(m.Content, m.ToolCallID))
		}
	}
	return converted
}

// assistantMessage rebuilds an assistant turn, including the tool calls
// it made, so the follow-up round sees its own requests.
func assistantMessage(m ChatMessage) openai.ChatCompletionMessageParamUnion {
	if len(m.ToolCalls) == 0 {
		return openai.AssistantMessage(m.Content)
	}

	msg := openai.ChatCompletionAssistantMessageParam{}
	if m.Content != "" {
		msg.Content.OfString = openai.String(m.Content)
	}
	for _, tc := range m.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, openai.ChatCompletionMessageToolCallParam{
			ID: tc.ID,
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      tc.Name,
				Arguments: tc.Arguments,
			},
		})
	}
	return openai.ChatCompletionMessageParamUnion{OfAssistant: &msg}
}

func convertTools(specs []ToolSpec) []openai.ChatCompletionToolParam {
	converted := make([]openai.ChatCompletionToolParam, 0, len(specs))
	for _, spec := range specs {
		converted = append(converted, openai.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        spec.Name,
				Description: openai.String(spec.Description),
				Parameters:  shared.FunctionParameters(spec.Parameters),
			},
		})
	}
	return converted
}
