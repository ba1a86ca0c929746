// Twilio REST client
//
// Small client for the telephony provider's call resource: outbound
// dialing with answering machine detection and call teardown. TwiML
// rendering for inbound calls lives in twiml.go.
//
// Reference: https://www.twilio.com/docs/voice/api/call-resource

package twilio

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	defaultBaseURL = "https://api.twilio.com"
	apiVersion     = "2010-04-01"
)

// AnsweredBy values reported by answering machine detection on the
// voice webhook. machine_start means a machine picked up and started
// its greeting.
const (
	AnsweredByHuman        = "human"
	AnsweredByMachineStart = "machine_start"
)

// StatusCompleted ends an in-progress call when posted as its status.
const StatusCompleted = "completed"

// Config holds the client configuration.
type Config struct {
	AccountSID string // Required: account SID
	AuthToken  string // Required: auth token
	FromNumber string // Optional: default caller id for outbound calls
	BaseURL    string // Optional: override for tests (default: https://api.twilio.com)
}

// Client calls the telephony REST API.
type Client struct {
	accountSID string
	authToken  string
	fromNumber string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a telephony API client.
func NewClient(config Config) (*Client, error) {
	if config.AccountSID == "" {
		return nil, fmt.Errorf("twilio account SID is required")
	}
	if config.AuthToken == "" {
		return nil, fmt.Errorf("twilio auth token is required")
	}

	baseURL := strings.TrimSuffix(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Client{
		accountSID: config.AccountSID,
		authToken:  config.AuthToken,
		fromNumber: config.FromNumber,
		baseURL:    baseURL,
		httpClient: &http.Client{},
	}, nil
}

// CallParams describes an outbound call.
type CallParams struct {
	To         string // Required: number to dial
	From       string // Optional: caller id (default: configured FromNumber)
	WebhookURL string // Required: voice webhook invoked when the call connects
}

// Call is the provider's record of a call.
type Call struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
	To     string `json:"to"`
	From   string `json:"from"`
}

// CreateCall dials an outbound call. Answering machine detection is
// enabled and reports asynchronously to the same webhook, so a machine
// pickup reaches the handler as AnsweredBy=machine_start while the
// call is already up.
func (c *Client) CreateCall(ctx context.Context, params CallParams) (*Call, error) {
	if params.To == "" {
		return nil, fmt.Errorf("destination number is required")
	}
	if params.WebhookURL == "" {
		return nil, fmt.Errorf("webhook URL is required")
	}

	from := params.From
	if from == "" {
		from = c.fromNumber
	}
	if from == "" {
		return nil, fmt.Errorf("no caller id: set CallParams.From or Config.FromNumber")
	}

	form := url.Values{}
	form.Set("To", params.To)
	form.Set("From", from)
	form.Set("Url", params.WebhookURL)
	form.Set("MachineDetection", "Enable")
	form.Set("MachineDetectionTimeout", "8")
	form.Set("AsyncAmd", "true")
	form.Set("AsyncAmdStatusCallback", params.WebhookURL)

	return c.postCall(ctx, "/Calls.json", form)
}

// EndCall hangs up an in-progress call.
func (c *Client) EndCall(ctx context.Context, callSID string) error {
	if callSID == "" {
		return fmt.Errorf("call SID is required")
	}

	form := url.Values{}
	form.Set("Status", StatusCompleted)

	_, err := c.postCall(ctx, "/Calls/"+callSID+".json", form)
	return err
}

// postCall posts a form to the account's call resource and decodes the
// returned call record.
func (c *Client) postCall(ctx context.Context, path string, form url.Values) (*Call, error) {
	endpoint := fmt.Sprintf("%s/%s/Accounts/%s%s", c.baseURL, apiVersion, c.accountSID, path)

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("twilio request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("twilio API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var call Call
	if err := json.NewDecoder(resp.Body).Decode(&call); err != nil {
		return nil, fmt.Errorf("failed to decode call response: %w", err)
	}
	return &call, nil
}
