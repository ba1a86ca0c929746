package agent

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiConfig holds configuration for the Gemini provider.
type GeminiConfig struct {
	APIKey string
	Model  string // e.g. "gemini-2.0-flash"
}

// GeminiProvider streams chat completions from the Gemini API.
type GeminiProvider struct {
	client *genai.Client
	config GeminiConfig
}

// NewGeminiProvider creates a provider backed by the Google AI backend.
func NewGeminiProvider(ctx context.Context, config GeminiConfig) (*GeminiProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if config.Model == "" {
		config.Model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGoogleAI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiProvider{
		client: client,
		config: config,
	}, nil
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) Model() string { return p.config.Model }

// StreamChat runs one streamed generation round, forwarding text parts
// to onDelta and collecting any function calls.
func (p *GeminiProvider) StreamChat(ctx context.Context, req ChatRequest, onDelta func(delta string) error) (*ChatResult, error) {
	contents, systemInstruction := convertGeminiMessages(req.Messages)

	config := &genai.GenerateContentConfig{
		SystemInstruction: systemInstruction,
	}
	if tools := convertGeminiTools(req.Tools); len(tools) > 0 {
		config.Tools = tools
	}

	stream := p.client.Models.GenerateContentStream(ctx, p.config.Model, contents, config)

	result := &ChatResult{}
	var content strings.Builder

	for resp, err := range stream {
		if err != nil {
			return nil, fmt.Errorf("streaming error: %w", err)
		}

		for _, candidate := range resp.Candidates {
			if candidate == nil || candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part == nil {
					continue
				}
				if part.Text != "" {
					content.WriteString(part.Text)
					if err := onDelta(part.Text); err != nil {
						return nil, err
					}
				}
				if part.FunctionCall != nil {
					args, err := json.Marshal(part.FunctionCall.Args)
					if err != nil {
						return nil, fmt.Errorf("failed to encode function call args: %w", err)
					}
					// Gemini does not assign call ids; results link
					// back by function name.
					result.ToolCalls = append(result.ToolCalls, ToolCall{
						Name:      part.FunctionCall.Name,
						Arguments: string(args),
					})
				}
			}
		}
	}

	result.Content = content.String()
	return result, nil
}

// convertGeminiMessages maps provider-agnostic messages to GenAI
// contents. The system prompt travels separately as SystemInstruction;
// assistant turns become role "model"; tool results come back as
// function responses on the user side.
func convertGeminiMessages(messages []ChatMessage) ([]*genai.Content, *genai.Content) {
	var contents []*genai.Content
	var systemInstruction *genai.Content

	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			if systemInstruction == nil && m.Content != "" {
				systemInstruction = &genai.Content{
					Parts: []*genai.Part{{Text: m.Content}},
				}
			}

		case RoleTool:
			contents = append(contents, &genai.Content{
				Role: "user",
				Parts: []*genai.Part{{
					FunctionResponse: &genai.FunctionResponse{
						Name:     m.ToolName,
						Response: map[string]any{"result": m.Content},
					},
				}},
			})

		case RoleAssistant:
			var parts []*genai.Part
			if m.Content != "" {
				parts = append(parts, &genai.Part{Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				args := make(map[string]any)
				_ = json.Unmarshal([]byte(tc.Arguments), &args)
				parts = append(parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{
						Name: tc.Name,
						Args: args,
					},
				})
			}
			if len(parts) > 0 {
				contents = append(contents, &genai.Content{Role: "model", Parts: parts})
			}

		default:
			if m.Content != "" {
				contents = append(contents, &genai.Content{
					Role:  "user",
					Parts: []*genai.Part{{Text: m.Content}},
				})
			}
		}
	}

	return contents, systemInstruction
}

// convertGeminiTools renders tool specs as function declarations. The
// JSON schema round-trips through encoding into genai's Schema type.
func convertGeminiTools(specs []ToolSpec) []*genai.Tool {
	if len(specs) == 0 {
		return nil
	}

	declarations := make([]*genai.FunctionDeclaration, 0, len(specs))
	for _, spec := range specs {
		fd := &genai.FunctionDeclaration{
			Name:        spec.Name,
			Description: spec.Description,
		}
		if spec.Parameters != nil {
			if raw, err := json.Marshal(spec.Parameters); err == nil {
				var schema genai.Schema
				if json.Unmarshal(raw, &schema) == nil {
					fd.Parameters = &schema
				}
			}
		}
		declarations = append(declarations, fd)
	}

	return []*genai.Tool{{FunctionDeclarations: declarations}}
}
