// Retell REST client
//
// Minimal client for the call platform's REST API: registering calls
// before handing the audio stream over, plus the webhook signature
// scheme in webhook.go.
//
// Reference: https://docs.retellai.com/api-references/register-call

package retell

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const defaultBaseURL = "https://api.retellai.com"

// Audio parameters for calls bridged from Twilio. Twilio media streams
// are 8kHz mulaw, so registration always uses these.
const (
	ProtocolTwilio        = "twilio"
	EncodingMulaw         = "mulaw"
	TwilioSampleRate      = 8000
	MetadataTwilioCallSID = "twilio_call_sid"
)

// Config holds the client configuration.
type Config struct {
	APIKey  string // Required: platform API key
	BaseURL string // Optional: override for tests (default: https://api.retellai.com)
}

// Client calls the platform REST API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a platform API client.
func NewClient(config Config) (*Client, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("retell API key is required")
	}

	baseURL := strings.TrimSuffix(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Client{
		apiKey:     config.APIKey,
		baseURL:    baseURL,
		httpClient: &http.Client{},
	}, nil
}

// RegisterCallParams describes the call being handed to the platform.
type RegisterCallParams struct {
	AgentID                string            `json:"agent_id"`
	AudioWebsocketProtocol string            `json:"audio_websocket_protocol"`
	AudioEncoding          string            `json:"audio_encoding"`
	SampleRate             int               `json:"sample_rate"`
	FromNumber             string            `json:"from_number,omitempty"`
	ToNumber               string            `json:"to_number,omitempty"`
	Metadata               map[string]string `json:"metadata,omitempty"`
}

// RegisteredCall is the platform's record of a registered call.
type RegisteredCall struct {
	CallID                 string `json:"call_id"`
	AgentID                string `json:"agent_id"`
	CallStatus             string `json:"call_status,omitempty"`
	AudioWebsocketProtocol string `json:"audio_websocket_protocol,omitempty"`
	AudioEncoding          string `json:"audio_encoding,omitempty"`
	SampleRate             int    `json:"sample_rate,omitempty"`
}

// RegisterCall registers a call with the platform and returns its
// record. The returned call id becomes the path parameter of both the
// platform's audio websocket and our LLM websocket.
func (c *Client) RegisterCall(ctx context.Context, params RegisterCallParams) (*RegisteredCall, error) {
	if params.AgentID == "" {
		return nil, fmt.Errorf("agent id is required")
	}

	bodyBytes, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal register-call params: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/register-call", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create register-call request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("register-call request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("register-call failed with status %d: %s", resp.StatusCode, string(body))
	}

	var call RegisteredCall
	if err := json.NewDecoder(resp.Body).Decode(&call); err != nil {
		return nil, fmt.Errorf("failed to decode register-call response: %w", err)
	}
	if call.CallID == "" {
		return nil, fmt.Errorf("register-call response carries no call_id")
	}
	return &call, nil
}

// AudioWebSocketURL returns the platform endpoint the telephony leg
// streams call audio to once the call is registered.
func (c *Client) AudioWebSocketURL(callID string) string {
	base := c.baseURL
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/audio-websocket/" + callID
}
