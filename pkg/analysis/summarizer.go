package analysis

import (
	"context"
	"fmt"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/estateline/estateline/pkg/conversation"
)

// Summarizer condenses a finished call transcript into a short text.
type Summarizer interface {
	Summarize(ctx context.Context, transcript []conversation.Message) (string, error)
}

const defaultSummaryModel = "gpt-4o-mini"

const summarySystemPrompt = "You summarize phone calls between a real estate assistant and a caller. " +
	"Write two to three sentences covering what the caller was looking for, " +
	"any search criteria they gave, and how the call ended."

// SummarizerConfig holds the configuration for the OpenAI summarizer.
type SummarizerConfig struct {
	APIKey  string // Required: OpenAI API key
	Model   string // Optional: completion model (default: gpt-4o-mini)
	BaseURL string // Optional: API base override (default: OPENAI_BASE_URL env, then the public API)
}

// OpenAISummarizer produces call summaries with one chat completion.
type OpenAISummarizer struct {
	client *openai.Client
	model  string
}

// NewOpenAISummarizer creates an OpenAI-backed summarizer.
func NewOpenAISummarizer(config SummarizerConfig) (*OpenAISummarizer, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = os.Getenv("OPENAI_BASE_URL")
	}
	if baseURL != "" {
		clientConfig.BaseURL = baseURL
	}

	model := config.Model
	if model == "" {
		model = defaultSummaryModel
	}

	return &OpenAISummarizer{
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
	}, nil
}

// Summarize runs one completion over the formatted transcript.
func (s *OpenAISummarizer) Summarize(ctx context.Context, transcript []conversation.Message) (string, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     s.model,
		MaxTokens: 200,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: summarySystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: FormatTranscript(transcript)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("summary completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("summary completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// FormatTranscript renders a transcript one utterance per line, the
// way the summary model sees it.
func FormatTranscript(transcript []conversation.Message) string {
	var b strings.Builder
	for _, m := range transcript {
		b.WriteString(string(m.Role))
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return b.String()
}

var _ Summarizer = (*OpenAISummarizer)(nil)
