package retell

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// SignatureHeader carries the webhook signature on every delivery.
const SignatureHeader = "X-Retell-Signature"

// Webhook event names.
const (
	EventCallStarted  = "call_started"
	EventCallEnded    = "call_ended"
	EventCallAnalyzed = "call_analyzed"
)

// WebhookEvent is one lifecycle delivery from the platform.
type WebhookEvent struct {
	Event string      `json:"event"`
	Call  CallPayload `json:"data"`
}

// CallPayload is the call record attached to a webhook event. The
// transcript is present on call_ended and call_analyzed deliveries.
type CallPayload struct {
	CallID              string           `json:"call_id"`
	AgentID             string           `json:"agent_id,omitempty"`
	CallStatus          string           `json:"call_status,omitempty"`
	FromNumber          string           `json:"from_number,omitempty"`
	ToNumber            string           `json:"to_number,omitempty"`
	Direction           string           `json:"direction,omitempty"`
	StartTimestamp      int64            `json:"start_timestamp,omitempty"`
	EndTimestamp        int64            `json:"end_timestamp,omitempty"`
	DisconnectionReason string           `json:"disconnection_reason,omitempty"`
	Transcript          string           `json:"transcript,omitempty"`
	TranscriptObject    []TranscriptTurn `json:"transcript_object,omitempty"`
}

// TranscriptTurn is one utterance of the final call transcript.
type TranscriptTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ParseWebhook decodes a webhook delivery body. Verify the signature
// first; parsing does not.
func ParseWebhook(body []byte) (*WebhookEvent, error) {
	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("failed to parse webhook body: %w", err)
	}
	if event.Event == "" {
		return nil, fmt.Errorf("webhook body carries no event")
	}
	return &event, nil
}

// Sign computes the hex HMAC-SHA256 the platform sends for body.
func Sign(body []byte, apiKey string) string {
	mac := hmac.New(sha256.New, []byte(apiKey))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether signature matches the raw request
// body under the account API key. Comparison is constant time.
func VerifySignature(body []byte, apiKey, signature string) bool {
	if apiKey == "" || signature == "" {
		return false
	}
	return hmac.Equal([]byte(Sign(body, apiKey)), []byte(signature))
}
