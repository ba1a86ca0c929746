// Package config assembles the runtime configuration from defaults,
// an optional .env file, and environment variables.
//
// Precedence (highest to lowest):
//  1. Environment variables (ESTATELINE_SERVER_ADDR, OPENAI_API_KEY, ...)
//  2. .env file values loaded via godotenv
//  3. Defaults from NewDefaultConfig()
package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultAddr     = ":8080"
	defaultProvider = "openai"
)

// Config is the assembled runtime configuration.
type Config struct {
	Server   ServerConfig
	LLM      LLMConfig
	Retell   RetellConfig
	Twilio   TwilioConfig
	Analysis AnalysisConfig
}

// ServerConfig configures the HTTP gateway.
type ServerConfig struct {
	// Addr is the listen address.
	Addr string

	// PublicBaseURL is the externally reachable base URL, used to build
	// the voice webhook URLs handed to Twilio.
	PublicBaseURL string
}

// LLMConfig selects and configures the chat model backing the agent.
type LLMConfig struct {
	// Provider is "openai" or "gemini".
	Provider string

	// Model overrides the provider's default model when non-empty.
	Model string

	// MaxTokens caps each completion round. 0 means API default.
	MaxTokens int

	OpenAIAPIKey string
	GeminiAPIKey string
}

// RetellConfig configures the Retell REST client and webhook handling.
type RetellConfig struct {
	// APIKey authenticates register-call requests and verifies webhook
	// signatures.
	APIKey string

	// AgentID is the agent used for outbound calls when the request
	// does not name one.
	AgentID string

	// BaseURL overrides the API endpoint when non-empty.
	BaseURL string
}

// TwilioConfig configures the Twilio REST client.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string

	// FromNumber is the default caller id for outbound calls.
	FromNumber string

	// BaseURL overrides the API endpoint when non-empty.
	BaseURL string
}

// AnalysisConfig configures the post-call summary pool.
type AnalysisConfig struct {
	// Workers and QueueSize size the pool. 0 means package default.
	Workers   int
	QueueSize int

	// Model overrides the summarizer's default model when non-empty.
	Model string
}

// NewDefaultConfig returns the configuration used when nothing else is
// set. Credentials have no defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: defaultAddr,
		},
		LLM: LLMConfig{
			Provider: defaultProvider,
		},
	}
}

// Load builds the configuration. envFile, when non-empty, must exist
// and is loaded into the process environment first; with an empty
// envFile a .env in the working directory is loaded when present.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("loading env file %s: %w", envFile, err)
		}
	} else {
		// Best effort, the environment may already be populated.
		_ = godotenv.Load()
	}

	v := viper.New()
	setViperDefaults(v)

	// ESTATELINE_SERVER_ADDR, ESTATELINE_LLM_PROVIDER, etc.
	v.SetEnvPrefix("ESTATELINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := bindVendorEnv(v); err != nil {
		return nil, err
	}

	return &Config{
		Server: ServerConfig{
			Addr:          v.GetString("server.addr"),
			PublicBaseURL: v.GetString("server.public_base_url"),
		},
		LLM: LLMConfig{
			Provider:     strings.ToLower(v.GetString("llm.provider")),
			Model:        v.GetString("llm.model"),
			MaxTokens:    v.GetInt("llm.max_tokens"),
			OpenAIAPIKey: v.GetString("llm.openai_api_key"),
			GeminiAPIKey: v.GetString("llm.gemini_api_key"),
		},
		Retell: RetellConfig{
			APIKey:  v.GetString("retell.api_key"),
			AgentID: v.GetString("retell.agent_id"),
			BaseURL: v.GetString("retell.base_url"),
		},
		Twilio: TwilioConfig{
			AccountSID: v.GetString("twilio.account_sid"),
			AuthToken:  v.GetString("twilio.auth_token"),
			FromNumber: v.GetString("twilio.from_number"),
			BaseURL:    v.GetString("twilio.base_url"),
		},
		Analysis: AnalysisConfig{
			Workers:   v.GetInt("analysis.workers"),
			QueueSize: v.GetInt("analysis.queue_size"),
			Model:     v.GetString("analysis.model"),
		},
	}, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() using
// dotted-key notation, keeping the struct as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.public_base_url", d.Server.PublicBaseURL)

	v.SetDefault("llm.provider", d.LLM.Provider)
	v.SetDefault("llm.model", d.LLM.Model)
	v.SetDefault("llm.max_tokens", d.LLM.MaxTokens)

	v.SetDefault("retell.agent_id", d.Retell.AgentID)
	v.SetDefault("retell.base_url", d.Retell.BaseURL)

	v.SetDefault("twilio.from_number", d.Twilio.FromNumber)
	v.SetDefault("twilio.base_url", d.Twilio.BaseURL)

	v.SetDefault("analysis.workers", d.Analysis.Workers)
	v.SetDefault("analysis.queue_size", d.Analysis.QueueSize)
	v.SetDefault("analysis.model", d.Analysis.Model)
}

// bindVendorEnv maps keys onto the variable names the vendors document,
// so a standard .env works without the ESTATELINE_ prefix.
func bindVendorEnv(v *viper.Viper) error {
	bindings := map[string]string{
		"llm.openai_api_key":     "OPENAI_API_KEY",
		"llm.gemini_api_key":     "GEMINI_API_KEY",
		"retell.api_key":         "RETELL_API_KEY",
		"retell.agent_id":        "RETELL_AGENT_ID",
		"twilio.account_sid":     "TWILIO_ACCOUNT_SID",
		"twilio.auth_token":      "TWILIO_AUTH_TOKEN",
		"twilio.from_number":     "TWILIO_FROM_NUMBER",
		"server.public_base_url": "PUBLIC_BASE_URL",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("binding %s: %w", env, err)
		}
	}
	return nil
}

// Validate reports configuration the server cannot start with.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "openai":
		if c.LLM.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required with the openai provider")
		}
	case "gemini":
		if c.LLM.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required with the gemini provider")
		}
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}
	if c.Retell.APIKey == "" {
		return fmt.Errorf("RETELL_API_KEY is required")
	}
	if c.Twilio.AccountSID == "" || c.Twilio.AuthToken == "" {
		return fmt.Errorf("TWILIO_ACCOUNT_SID and TWILIO_AUTH_TOKEN are required")
	}
	return nil
}
