package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/estateline/estateline/pkg/config"
)

// setenv sets an environment variable for the current spec and restores
// the previous value afterwards.
func setenv(key, value string) {
	prev, had := os.LookupEnv(key)
	Expect(os.Setenv(key, value)).To(Succeed())
	DeferCleanup(func() {
		if had {
			os.Setenv(key, prev)
		} else {
			os.Unsetenv(key)
		}
	})
}

// ensureUnset removes an environment variable for the current spec and
// restores the previous value afterwards.
func ensureUnset(key string) {
	prev, had := os.LookupEnv(key)
	Expect(os.Unsetenv(key)).To(Succeed())
	DeferCleanup(func() {
		if had {
			os.Setenv(key, prev)
		}
	})
}

var _ = Describe("Load", func() {
	It("applies defaults when nothing is set", func() {
		ensureUnset("ESTATELINE_SERVER_ADDR")
		ensureUnset("ESTATELINE_LLM_PROVIDER")

		cfg, err := config.Load("")
		Expect(err).NotTo(HaveOccurred())

		defaults := config.NewDefaultConfig()
		Expect(cfg.Server.Addr).To(Equal(defaults.Server.Addr))
		Expect(cfg.LLM.Provider).To(Equal(defaults.LLM.Provider))
		Expect(cfg.LLM.MaxTokens).To(BeZero())
		Expect(cfg.Analysis.Workers).To(BeZero())
	})

	It("reads prefixed environment variables", func() {
		setenv("ESTATELINE_SERVER_ADDR", ":9090")
		setenv("ESTATELINE_LLM_PROVIDER", "GEMINI")
		setenv("ESTATELINE_LLM_MODEL", "gemini-2.0-flash")
		setenv("ESTATELINE_ANALYSIS_WORKERS", "4")

		cfg, err := config.Load("")
		Expect(err).NotTo(HaveOccurred())

		Expect(cfg.Server.Addr).To(Equal(":9090"))
		Expect(cfg.LLM.Provider).To(Equal("gemini"))
		Expect(cfg.LLM.Model).To(Equal("gemini-2.0-flash"))
		Expect(cfg.Analysis.Workers).To(Equal(4))
	})

	It("binds the vendor variable names", func() {
		setenv("OPENAI_API_KEY", "sk-test")
		setenv("GEMINI_API_KEY", "gm-test")
		setenv("RETELL_API_KEY", "rk-test")
		setenv("RETELL_AGENT_ID", "agent_env")
		setenv("TWILIO_ACCOUNT_SID", "AC_env")
		setenv("TWILIO_AUTH_TOKEN", "token_env")
		setenv("TWILIO_FROM_NUMBER", "+14155550100")
		setenv("PUBLIC_BASE_URL", "https://assistant.example.com")

		cfg, err := config.Load("")
		Expect(err).NotTo(HaveOccurred())

		Expect(cfg.LLM.OpenAIAPIKey).To(Equal("sk-test"))
		Expect(cfg.LLM.GeminiAPIKey).To(Equal("gm-test"))
		Expect(cfg.Retell.APIKey).To(Equal("rk-test"))
		Expect(cfg.Retell.AgentID).To(Equal("agent_env"))
		Expect(cfg.Twilio.AccountSID).To(Equal("AC_env"))
		Expect(cfg.Twilio.AuthToken).To(Equal("token_env"))
		Expect(cfg.Twilio.FromNumber).To(Equal("+14155550100"))
		Expect(cfg.Server.PublicBaseURL).To(Equal("https://assistant.example.com"))
	})

	It("loads a named env file before reading the environment", func() {
		ensureUnset("RETELL_API_KEY")
		ensureUnset("ESTATELINE_SERVER_ADDR")

		dir := GinkgoT().TempDir()
		envFile := filepath.Join(dir, ".env")
		data := "RETELL_API_KEY=rk-from-file\nESTATELINE_SERVER_ADDR=:7070\n"
		Expect(os.WriteFile(envFile, []byte(data), 0o600)).To(Succeed())

		// godotenv writes into the process environment.
		DeferCleanup(func() {
			os.Unsetenv("RETELL_API_KEY")
			os.Unsetenv("ESTATELINE_SERVER_ADDR")
		})

		cfg, err := config.Load(envFile)
		Expect(err).NotTo(HaveOccurred())

		Expect(cfg.Retell.APIKey).To(Equal("rk-from-file"))
		Expect(cfg.Server.Addr).To(Equal(":7070"))
	})

	It("errors when the named env file is missing", func() {
		dir := GinkgoT().TempDir()
		_, err := config.Load(filepath.Join(dir, "nope.env"))
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("nope.env"))
	})
})

var _ = Describe("Validate", func() {
	valid := func() *config.Config {
		return &config.Config{
			LLM: config.LLMConfig{
				Provider:     "openai",
				OpenAIAPIKey: "sk-test",
			},
			Retell: config.RetellConfig{APIKey: "rk-test"},
			Twilio: config.TwilioConfig{
				AccountSID: "AC123",
				AuthToken:  "token",
			},
		}
	}

	It("accepts a complete configuration", func() {
		Expect(valid().Validate()).To(Succeed())
	})

	It("requires the key for the selected provider", func() {
		cfg := valid()
		cfg.LLM.OpenAIAPIKey = ""
		Expect(cfg.Validate()).To(MatchError(ContainSubstring("OPENAI_API_KEY")))

		cfg = valid()
		cfg.LLM.Provider = "gemini"
		Expect(cfg.Validate()).To(MatchError(ContainSubstring("GEMINI_API_KEY")))

		cfg.LLM.GeminiAPIKey = "gm-test"
		Expect(cfg.Validate()).To(Succeed())
	})

	It("rejects unknown providers", func() {
		cfg := valid()
		cfg.LLM.Provider = "mistral"
		Expect(cfg.Validate()).To(MatchError(ContainSubstring("unknown llm provider")))
	})

	It("requires the telephony credentials", func() {
		cfg := valid()
		cfg.Retell.APIKey = ""
		Expect(cfg.Validate()).To(MatchError(ContainSubstring("RETELL_API_KEY")))

		cfg = valid()
		cfg.Twilio.AuthToken = ""
		Expect(cfg.Validate()).To(MatchError(ContainSubstring("TWILIO_AUTH_TOKEN")))
	})
})
