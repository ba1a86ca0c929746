package gateway

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/estateline/estateline/pkg/analysis"
	"github.com/estateline/estateline/pkg/conversation"
	"github.com/estateline/estateline/pkg/retell"
	"github.com/estateline/estateline/pkg/trace"
	"github.com/estateline/estateline/pkg/twilio"
)

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprint(w, rootBanner)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status":"ok","sessions":%d}`, s.bridge.SessionCount())
}

// handleWebhook receives platform lifecycle events. Deliveries are
// accepted only with a valid body signature; a call_ended delivery
// with a transcript feeds the summary queue.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.logger.Error("failed to read webhook body", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{"message": "Internal Server Error"})
		return
	}

	if !retell.VerifySignature(body, s.config.WebhookKey, r.Header.Get(retell.SignatureHeader)) {
		s.logger.Warn("webhook signature mismatch", zap.String("remote", r.RemoteAddr))
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Unauthorized"})
		return
	}

	event, err := retell.ParseWebhook(body)
	if err != nil {
		s.logger.Error("failed to parse webhook", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{"message": "Internal Server Error"})
		return
	}

	_, span := trace.InstrumentWebhook(r.Context(), event.Event, event.Call.CallID)
	defer span.End()

	switch event.Event {
	case retell.EventCallStarted:
		s.logger.Info("call started", zap.String("call_id", event.Call.CallID))

	case retell.EventCallEnded:
		s.logger.Info("call ended",
			zap.String("call_id", event.Call.CallID),
			zap.String("reason", event.Call.DisconnectionReason),
		)
		s.enqueueSummary(event.Call)

	case retell.EventCallAnalyzed:
		s.logger.Info("call analyzed", zap.String("call_id", event.Call.CallID))

	default:
		s.logger.Warn("unknown webhook event", zap.String("event", event.Event))
	}

	writeJSON(w, http.StatusOK, map[string]any{"received": true})
}

func (s *Server) enqueueSummary(call retell.CallPayload) {
	if s.summaries == nil || len(call.TranscriptObject) == 0 {
		return
	}

	transcript := make([]conversation.Message, 0, len(call.TranscriptObject))
	for _, turn := range call.TranscriptObject {
		transcript = append(transcript, conversation.Message{
			Role:    conversation.Role(turn.Role),
			Content: turn.Content,
		})
	}

	s.summaries.Enqueue(analysis.Job{
		CallID:     call.CallID,
		Transcript: transcript,
	})
}

// handleVoiceWebhook answers the telephony voice webhook. Machine
// pickups end the call; everything else is registered with the
// platform and connected to its audio websocket via TwiML.
func (s *Server) handleVoiceWebhook(w http.ResponseWriter, r *http.Request) {
	agentID := r.PathValue("agent_id")

	if err := r.ParseForm(); err != nil {
		s.logger.Error("failed to parse voice webhook form", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{"message": "Internal Server Error"})
		return
	}

	callSID := r.PostFormValue("CallSid")

	// Answering machine detection reports asynchronously; those
	// callbacks carry AnsweredBy and never produce TwiML.
	if answeredBy := r.PostFormValue("AnsweredBy"); answeredBy != "" {
		if answeredBy == twilio.AnsweredByMachineStart {
			s.logger.Info("machine answered, ending call", zap.String("call_sid", callSID))
			if err := s.telephony.EndCall(r.Context(), callSID); err != nil {
				s.logger.Error("failed to end call", zap.String("call_sid", callSID), zap.Error(err))
			}
		}
		w.Header().Set("Content-Type", "text/plain")
		return
	}

	call, err := s.registrar.RegisterCall(r.Context(), retell.RegisterCallParams{
		AgentID:                agentID,
		AudioWebsocketProtocol: retell.ProtocolTwilio,
		AudioEncoding:          retell.EncodingMulaw,
		SampleRate:             retell.TwilioSampleRate,
		FromNumber:             r.PostFormValue("From"),
		ToNumber:               r.PostFormValue("To"),
		Metadata:               map[string]string{retell.MetadataTwilioCallSID: callSID},
	})
	if err != nil {
		s.logger.Error("failed to register call",
			zap.String("agent_id", agentID),
			zap.String("call_sid", callSID),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"message": "Internal Server Error"})
		return
	}

	s.logger.Info("call registered",
		zap.String("call_id", call.CallID),
		zap.String("agent_id", agentID),
		zap.String("call_sid", callSID),
	)

	twiml, err := twilio.StreamTwiML(s.registrar.AudioWebSocketURL(call.CallID))
	if err != nil {
		s.logger.Error("failed to render TwiML", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{"message": "Internal Server Error"})
		return
	}

	w.Header().Set("Content-Type", "text/xml")
	fmt.Fprint(w, twiml)
}

// handleSMS answers one inbound text with one pipeline invocation over
// a fresh conversation.
func (s *Server) handleSMS(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.smsError(w, err)
		return
	}

	body := strings.TrimSpace(r.PostFormValue("Body"))
	if body == "" {
		s.smsError(w, fmt.Errorf("empty message body"))
		return
	}

	convo := conversation.NewState("sms_" + uuid.NewString())
	convo.Append(conversation.Message{Role: conversation.RoleUser, Content: body})

	reply, err := s.responder.Respond(r.Context(), convo)
	if err != nil {
		s.smsError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprint(w, reply)
}

func (s *Server) smsError(w http.ResponseWriter, err error) {
	s.logger.Error("failed to process SMS", zap.Error(err))
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusInternalServerError)
	fmt.Fprint(w, "An error occurred")
}

// handleCreateCall dials an outbound call pointed at our voice
// webhook for the chosen agent.
func (s *Server) handleCreateCall(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ToNumber   string `json:"to_number"`
		FromNumber string `json:"from_number"`
		AgentID    string `json:"agent_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "invalid request body"})
		return
	}
	if req.ToNumber == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "to_number is required"})
		return
	}

	agentID := req.AgentID
	if agentID == "" {
		agentID = s.config.DefaultAgentID
	}
	if agentID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "agent_id is required"})
		return
	}

	webhookURL := strings.TrimSuffix(s.config.PublicBaseURL, "/") + "/twilio-voice-webhook/" + agentID

	call, err := s.telephony.CreateCall(r.Context(), twilio.CallParams{
		To:         req.ToNumber,
		From:       req.FromNumber,
		WebhookURL: webhookURL,
	})
	if err != nil {
		s.logger.Error("failed to create outbound call",
			zap.String("to_number", req.ToNumber),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"message": "Internal Server Error"})
		return
	}

	s.logger.Info("outbound call created",
		zap.String("call_sid", call.SID),
		zap.String("to_number", req.ToNumber),
		zap.String("agent_id", agentID),
	)

	writeJSON(w, http.StatusCreated, map[string]any{
		"call_sid": call.SID,
		"status":   call.Status,
	})
}
