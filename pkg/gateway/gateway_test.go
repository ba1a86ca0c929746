package gateway

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/estateline/estateline/pkg/analysis"
	"github.com/estateline/estateline/pkg/bridge"
	"github.com/estateline/estateline/pkg/conversation"
	"github.com/estateline/estateline/pkg/retell"
	"github.com/estateline/estateline/pkg/twilio"
)

type stubRegistrar struct {
	mu     sync.Mutex
	params []retell.RegisterCallParams
	err    error
}

func (s *stubRegistrar) RegisterCall(ctx context.Context, params retell.RegisterCallParams) (*retell.RegisteredCall, error) {
	s.mu.Lock()
	s.params = append(s.params, params)
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return &retell.RegisteredCall{CallID: "call_reg_1", AgentID: params.AgentID, CallStatus: "registered"}, nil
}

func (s *stubRegistrar) AudioWebSocketURL(callID string) string {
	return "wss://platform.test/audio-websocket/" + callID
}

type stubTelephony struct {
	mu      sync.Mutex
	created []twilio.CallParams
	ended   []string
	err     error
}

func (s *stubTelephony) CreateCall(ctx context.Context, params twilio.CallParams) (*twilio.Call, error) {
	s.mu.Lock()
	s.created = append(s.created, params)
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return &twilio.Call{SID: "CA_out_1", Status: "queued", To: params.To}, nil
}

func (s *stubTelephony) EndCall(ctx context.Context, callSID string) error {
	s.mu.Lock()
	s.ended = append(s.ended, callSID)
	s.mu.Unlock()
	return s.err
}

type stubResponder struct {
	mu    sync.Mutex
	seen  []string
	reply string
	err   error
}

func (s *stubResponder) Respond(ctx context.Context, convo *conversation.State) (string, error) {
	s.mu.Lock()
	s.seen = append(s.seen, convo.LastUserMessage())
	s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

type stubQueue struct {
	mu   sync.Mutex
	jobs []analysis.Job
}

func (s *stubQueue) Enqueue(job analysis.Job) bool {
	s.mu.Lock()
	s.jobs = append(s.jobs, job)
	s.mu.Unlock()
	return true
}

type nopGenerator struct{}

func (nopGenerator) StreamTurn(ctx context.Context, convo *conversation.State, emit func(content string) error) error {
	return nil
}

var _ = Describe("Gateway", func() {
	var (
		registrar    *stubRegistrar
		telephony    *stubTelephony
		responder    *stubResponder
		queue        *stubQueue
		bridgeServer *bridge.Server
		ts           *httptest.Server
	)

	BeforeEach(func() {
		registrar = &stubRegistrar{}
		telephony = &stubTelephony{}
		responder = &stubResponder{reply: "Happy to help over text."}
		queue = &stubQueue{}
		bridgeServer = bridge.NewServer(bridge.DefaultServerConfig(), nopGenerator{}, zap.NewNop())

		gw, err := NewServer(Config{
			PublicBaseURL:  "https://assistant.example.com",
			WebhookKey:     "key_test",
			DefaultAgentID: "agent_default",
		}, Dependencies{
			Bridge:    bridgeServer,
			Registrar: registrar,
			Telephony: telephony,
			Responder: responder,
			Summaries: queue,
			Logger:    zap.NewNop(),
		})
		Expect(err).NotTo(HaveOccurred())

		ts = httptest.NewServer(gw.Routes())
	})

	AfterEach(func() {
		ts.Close()
		bridgeServer.Close()
	})

	readBody := func(resp *http.Response) string {
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		return string(body)
	}

	Describe("GET /", func() {
		It("serves the banner", func() {
			resp, err := http.Get(ts.URL + "/")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(readBody(resp)).To(Equal("Hello World! I'm a Real Estate Assistant"))
		})
	})

	Describe("GET /health", func() {
		It("reports status and session count", func() {
			resp, err := http.Get(ts.URL + "/health")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(readBody(resp)).To(Equal(`{"status":"ok","sessions":0}`))
		})
	})

	Describe("POST /webhook", func() {
		postWebhook := func(body []byte, signature string) *http.Response {
			req, err := http.NewRequest("POST", ts.URL+"/webhook", bytes.NewReader(body))
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set("Content-Type", "application/json")
			if signature != "" {
				req.Header.Set(retell.SignatureHeader, signature)
			}
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			return resp
		}

		It("accepts a signed delivery", func() {
			body := []byte(`{"event":"call_started","data":{"call_id":"call_1"}}`)
			resp := postWebhook(body, retell.Sign(body, "key_test"))

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(readBody(resp)).To(MatchJSON(`{"received":true}`))
		})

		It("rejects a bad signature without processing", func() {
			body := []byte(`{"event":"call_ended","data":{"call_id":"call_1","transcript_object":[{"role":"user","content":"hi"}]}}`)
			resp := postWebhook(body, "deadbeef")

			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			Expect(readBody(resp)).To(MatchJSON(`{"message":"Unauthorized"}`))
			Expect(queue.jobs).To(BeEmpty())
		})

		It("rejects an unsigned delivery", func() {
			body := []byte(`{"event":"call_started","data":{"call_id":"call_1"}}`)
			resp := postWebhook(body, "")
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		})

		It("enqueues a summary when a call ends with a transcript", func() {
			body := []byte(`{
				"event": "call_ended",
				"data": {
					"call_id": "call_1",
					"transcript_object": [
						{"role": "agent", "content": "Hi, how can I help?"},
						{"role": "user", "content": "I want a 3 bedroom in New York."}
					]
				}
			}`)
			resp := postWebhook(body, retell.Sign(body, "key_test"))

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(queue.jobs).To(HaveLen(1))
			Expect(queue.jobs[0].CallID).To(Equal("call_1"))
			Expect(queue.jobs[0].Transcript).To(HaveLen(2))
			Expect(queue.jobs[0].Transcript[1].Role).To(Equal(conversation.RoleUser))
		})

		It("returns 500 for a signed but unparseable body", func() {
			body := []byte(`{not json`)
			resp := postWebhook(body, retell.Sign(body, "key_test"))

			Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
			Expect(readBody(resp)).To(MatchJSON(`{"message":"Internal Server Error"}`))
		})
	})

	Describe("POST /twilio-voice-webhook/{agent_id}", func() {
		It("registers the call and answers TwiML", func() {
			resp, err := http.PostForm(ts.URL+"/twilio-voice-webhook/agent_007", url.Values{
				"From":    {"+14155550100"},
				"To":      {"+14155550199"},
				"CallSid": {"CA0123"},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("text/xml"))

			body := readBody(resp)
			Expect(body).To(ContainSubstring("<Connect>"))
			Expect(body).To(ContainSubstring(`<Stream url="wss://platform.test/audio-websocket/call_reg_1" />`))

			Expect(registrar.params).To(HaveLen(1))
			params := registrar.params[0]
			Expect(params.AgentID).To(Equal("agent_007"))
			Expect(params.AudioWebsocketProtocol).To(Equal("twilio"))
			Expect(params.AudioEncoding).To(Equal("mulaw"))
			Expect(params.SampleRate).To(Equal(8000))
			Expect(params.FromNumber).To(Equal("+14155550100"))
			Expect(params.Metadata["twilio_call_sid"]).To(Equal("CA0123"))
		})

		It("ends the call when a machine answers", func() {
			resp, err := http.PostForm(ts.URL+"/twilio-voice-webhook/agent_007", url.Values{
				"AnsweredBy": {"machine_start"},
				"CallSid":    {"CA0123"},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(readBody(resp)).To(BeEmpty())

			Expect(telephony.ended).To(Equal([]string{"CA0123"}))
			Expect(registrar.params).To(BeEmpty())
		})

		It("ignores other detection results", func() {
			resp, err := http.PostForm(ts.URL+"/twilio-voice-webhook/agent_007", url.Values{
				"AnsweredBy": {"human"},
				"CallSid":    {"CA0123"},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(readBody(resp)).To(BeEmpty())

			Expect(telephony.ended).To(BeEmpty())
			Expect(registrar.params).To(BeEmpty())
		})

		It("returns 500 when registration fails", func() {
			registrar.err = errors.New("platform down")

			resp, err := http.PostForm(ts.URL+"/twilio-voice-webhook/agent_007", url.Values{
				"From": {"+14155550100"}, "To": {"+14155550199"}, "CallSid": {"CA0123"},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
			Expect(readBody(resp)).To(MatchJSON(`{"message":"Internal Server Error"}`))
		})
	})

	Describe("POST /sms", func() {
		It("answers one text with one reply", func() {
			resp, err := http.PostForm(ts.URL+"/sms", url.Values{
				"Body": {"Do you have condos in Brooklyn?"},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(readBody(resp)).To(Equal("Happy to help over text."))

			Expect(responder.seen).To(Equal([]string{"Do you have condos in Brooklyn?"}))
		})

		It("returns 500 when the pipeline fails", func() {
			responder.err = errors.New("model unavailable")

			resp, err := http.PostForm(ts.URL+"/sms", url.Values{"Body": {"hello"}})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
			Expect(readBody(resp)).To(Equal("An error occurred"))
		})

		It("returns 500 for a missing body", func() {
			resp, err := http.PostForm(ts.URL+"/sms", url.Values{})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
			Expect(readBody(resp)).To(Equal("An error occurred"))
		})
	})

	Describe("POST /calls", func() {
		It("dials out through the default agent", func() {
			resp, err := http.Post(ts.URL+"/calls", "application/json",
				strings.NewReader(`{"to_number":"+14155550123"}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))

			body := readBody(resp)
			Expect(body).To(ContainSubstring(`"call_sid":"CA_out_1"`))

			Expect(telephony.created).To(HaveLen(1))
			Expect(telephony.created[0].To).To(Equal("+14155550123"))
			Expect(telephony.created[0].WebhookURL).To(Equal(
				"https://assistant.example.com/twilio-voice-webhook/agent_default"))
		})

		It("honors an explicit agent id", func() {
			resp, err := http.Post(ts.URL+"/calls", "application/json",
				strings.NewReader(`{"to_number":"+14155550123","agent_id":"agent_vip"}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))

			Expect(telephony.created[0].WebhookURL).To(HaveSuffix("/twilio-voice-webhook/agent_vip"))
		})

		It("rejects a dial without a destination", func() {
			resp, err := http.Post(ts.URL+"/calls", "application/json", strings.NewReader(`{}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("GET /llm-websocket/{call_id}", func() {
		It("upgrades into the bridge and opens the session", func() {
			wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/llm-websocket/call_ws_1"
			conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
			Expect(err).NotTo(HaveOccurred())
			if resp != nil {
				resp.Body.Close()
			}
			defer conn.Close()

			// First frame is the session config, second the greeting.
			_, first, err := conn.ReadMessage()
			Expect(err).NotTo(HaveOccurred())
			Expect(string(first)).To(ContainSubstring(`"response_type":"config"`))

			_, second, err := conn.ReadMessage()
			Expect(err).NotTo(HaveOccurred())
			Expect(string(second)).To(ContainSubstring(`"response_id":0`))

			Expect(bridgeServer.SessionCount()).To(Equal(1))
		})
	})
})
