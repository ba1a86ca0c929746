package trace

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentTurn creates a span covering one generation turn.
func InstrumentTurn(ctx context.Context, callID string, responseID int, interactionType string) (context.Context, trace.Span) {
	return StartSpan(ctx, "turn.generate",
		trace.WithAttributes(
			TurnAttrs(callID, responseID, interactionType)...,
		),
	)
}

// InstrumentLLMRequest creates a span for one model round trip.
func InstrumentLLMRequest(ctx context.Context, provider, model string, round int) (context.Context, trace.Span) {
	attrs := LLMAttrs(provider, model)
	attrs = append(attrs, attribute.Int(AttrLLMRound, round))

	return StartSpan(ctx, "llm.request",
		trace.WithAttributes(attrs...),
	)
}

// InstrumentToolExecution creates a span for a tool call.
func InstrumentToolExecution(ctx context.Context, name string) (context.Context, trace.Span) {
	return StartSpan(ctx, "tool.execute",
		trace.WithAttributes(
			ToolAttrs(name)...,
		),
	)
}

// InstrumentWebhook creates a span for a platform webhook delivery.
func InstrumentWebhook(ctx context.Context, event, callID string) (context.Context, trace.Span) {
	return StartSpan(ctx, "webhook.handle",
		trace.WithAttributes(
			WebhookAttrs(event, callID)...,
		),
	)
}
