package trace

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys used throughout the application
const (
	// Call attributes
	AttrCallID     = "call.id"
	AttrCallAgent  = "call.agent_id"
	AttrCallFrom   = "call.from_number"
	AttrCallTo     = "call.to_number"
	AttrCallStatus = "call.status"

	// Turn attributes
	AttrTurnResponseID  = "turn.response_id"
	AttrTurnInteraction = "turn.interaction_type"
	AttrTurnFragments   = "turn.fragments"

	// AI/LLM attributes
	AttrLLMProvider = "llm.provider"
	AttrLLMModel    = "llm.model"
	AttrLLMRound    = "llm.round"

	// Tool attributes
	AttrToolName  = "tool.name"
	AttrToolError = "tool.is_error"

	// Webhook attributes
	AttrWebhookEvent = "webhook.event"

	// Error attributes
	AttrErrorType    = "error.type"
	AttrErrorMessage = "error.message"
)

// Helper functions to create common attributes

// CallAttrs creates attributes for call information
func CallAttrs(callID string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrCallID, callID),
	}
}

// TurnAttrs creates attributes for one generation turn
func TurnAttrs(callID string, responseID int, interactionType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrCallID, callID),
		attribute.Int(AttrTurnResponseID, responseID),
		attribute.String(AttrTurnInteraction, interactionType),
	}
}

// LLMAttrs creates attributes for LLM operations
func LLMAttrs(provider, model string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrLLMProvider, provider),
		attribute.String(AttrLLMModel, model),
	}
}

// ToolAttrs creates attributes for tool executions
func ToolAttrs(name string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrToolName, name),
	}
}

// WebhookAttrs creates attributes for platform webhook events
func WebhookAttrs(event, callID string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrWebhookEvent, event),
		attribute.String(AttrCallID, callID),
	}
}

// ErrorAttrs creates attributes for errors
func ErrorAttrs(errType, errMsg string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrErrorType, errType),
		attribute.String(AttrErrorMessage, errMsg),
	}
}
