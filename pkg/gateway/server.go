// Package gateway is the HTTP surface of the assistant: the telephony
// voice webhook, the platform lifecycle webhook, the SMS endpoint,
// outbound dialing, and the LLM websocket mount.
//
// The gateway owns no protocol logic of its own. It verifies and
// decodes what arrives at the edge, then hands off to the bridge, the
// response pipeline, or the platform clients.
package gateway

import (
	"context"
	"fmt"
	"net/http"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/estateline/estateline/pkg/analysis"
	"github.com/estateline/estateline/pkg/bridge"
	"github.com/estateline/estateline/pkg/conversation"
	"github.com/estateline/estateline/pkg/retell"
	"github.com/estateline/estateline/pkg/twilio"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// rootBanner is served on GET / as a liveness hello.
const rootBanner = "Hello World! I'm a Real Estate Assistant"

// CallRegistrar registers calls with the hosted call platform.
type CallRegistrar interface {
	RegisterCall(ctx context.Context, params retell.RegisterCallParams) (*retell.RegisteredCall, error)
	AudioWebSocketURL(callID string) string
}

// Telephony dials and ends phone calls.
type Telephony interface {
	CreateCall(ctx context.Context, params twilio.CallParams) (*twilio.Call, error)
	EndCall(ctx context.Context, callSID string) error
}

// Responder produces one-shot replies, used by the SMS path.
type Responder interface {
	Respond(ctx context.Context, convo *conversation.State) (string, error)
}

// SummaryQueue accepts post-call summary jobs.
type SummaryQueue interface {
	Enqueue(job analysis.Job) bool
}

// Config holds the gateway configuration.
type Config struct {
	// PublicBaseURL is the externally reachable base of this server,
	// used to build the voice webhook URL for outbound calls.
	PublicBaseURL string

	// WebhookKey is the platform API key; lifecycle webhook signatures
	// are verified against it.
	WebhookKey string

	// DefaultAgentID answers outbound calls that name no agent.
	DefaultAgentID string
}

// Dependencies are the collaborators behind the HTTP surface.
type Dependencies struct {
	Bridge    *bridge.Server
	Registrar CallRegistrar
	Telephony Telephony
	Responder Responder
	Summaries SummaryQueue // optional; call_ended deliveries are only logged without it
	Logger    *zap.Logger
}

// Server routes HTTP traffic to the assistant's collaborators.
type Server struct {
	config    Config
	bridge    *bridge.Server
	registrar CallRegistrar
	telephony Telephony
	responder Responder
	summaries SummaryQueue
	logger    *zap.Logger
}

// NewServer creates the gateway.
func NewServer(config Config, deps Dependencies) (*Server, error) {
	if deps.Bridge == nil {
		return nil, fmt.Errorf("bridge server is required")
	}
	if deps.Registrar == nil {
		return nil, fmt.Errorf("call registrar is required")
	}
	if deps.Telephony == nil {
		return nil, fmt.Errorf("telephony client is required")
	}
	if deps.Responder == nil {
		return nil, fmt.Errorf("responder is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Server{
		config:    config,
		bridge:    deps.Bridge,
		registrar: deps.Registrar,
		telephony: deps.Telephony,
		responder: deps.Responder,
		summaries: deps.Summaries,
		logger:    logger,
	}, nil
}

// Routes returns the handler with all endpoints mounted. The caller
// owns the http.Server wrapping it.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /webhook", s.handleWebhook)
	mux.HandleFunc("POST /twilio-voice-webhook/{agent_id}", s.handleVoiceWebhook)
	mux.HandleFunc("GET /llm-websocket/{call_id}", s.bridge.HandleConnection)
	mux.HandleFunc("POST /sms", s.handleSMS)
	mux.HandleFunc("POST /calls", s.handleCreateCall)

	return mux
}

// writeJSON writes an application/json response.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
