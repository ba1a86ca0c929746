package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/estateline/estateline/pkg/agent"
	"github.com/estateline/estateline/pkg/analysis"
	"github.com/estateline/estateline/pkg/bridge"
	"github.com/estateline/estateline/pkg/config"
	"github.com/estateline/estateline/pkg/gateway"
	"github.com/estateline/estateline/pkg/logger"
	"github.com/estateline/estateline/pkg/retell"
	"github.com/estateline/estateline/pkg/tools"
	"github.com/estateline/estateline/pkg/trace"
	"github.com/estateline/estateline/pkg/twilio"
)

const serveLongDesc = `Run the assistant server.

The server exposes the Retell event webhook, the Twilio voice webhook,
the LLM websocket, the SMS endpoint, and the outbound call endpoint on
a single address.`

type serveCommander struct {
	addr    string
	envFile string
	debug   bool
	logger  *zap.Logger
}

func newServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the assistant server",
		Long:  serveLongDesc,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}
			return cmder.run()
		},
	}

	cmd.Flags().StringVarP(&cmder.addr, "addr", "a", "", "Listen address (overrides config)")
	cmd.Flags().StringVarP(&cmder.envFile, "env-file", "e", "", "Env file to load before reading the environment")

	return cmd
}

func (c *serveCommander) run() error {
	c.logger = logger.NewLogger(c.debug)
	defer c.logger.Sync()

	cfg, err := config.Load(c.envFile)
	if err != nil {
		return err
	}
	if c.addr != "" {
		cfg.Server.Addr = c.addr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := trace.Initialize(context.Background(), trace.DefaultConfig()); err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		trace.Shutdown(ctx)
	}()

	provider, err := c.buildProvider(cfg)
	if err != nil {
		return err
	}

	registry := tools.NewRegistry(c.logger.Named("tools"))
	registry.Register(tools.NewExtractCriteriaTool())
	registry.Register(tools.NewSearchTool())

	assistant := agent.New(provider, registry, agent.DefaultConfig(), c.logger.Named("agent"))

	bridgeServer := bridge.NewServer(bridge.DefaultServerConfig(), assistant, c.logger.Named("bridge"))
	defer bridgeServer.Close()

	retellClient, err := retell.NewClient(retell.Config{
		APIKey:  cfg.Retell.APIKey,
		BaseURL: cfg.Retell.BaseURL,
	})
	if err != nil {
		return fmt.Errorf("creating retell client: %w", err)
	}

	twilioClient, err := twilio.NewClient(twilio.Config{
		AccountSID: cfg.Twilio.AccountSID,
		AuthToken:  cfg.Twilio.AuthToken,
		FromNumber: cfg.Twilio.FromNumber,
		BaseURL:    cfg.Twilio.BaseURL,
	})
	if err != nil {
		return fmt.Errorf("creating twilio client: %w", err)
	}

	deps := gateway.Dependencies{
		Bridge:    bridgeServer,
		Registrar: retellClient,
		Telephony: twilioClient,
		Responder: assistant,
		Logger:    c.logger.Named("gateway"),
	}

	// Post-call summaries run on OpenAI regardless of the chat provider.
	if cfg.LLM.OpenAIAPIKey != "" {
		summarizer, err := analysis.NewOpenAISummarizer(analysis.SummarizerConfig{
			APIKey: cfg.LLM.OpenAIAPIKey,
			Model:  cfg.Analysis.Model,
		})
		if err != nil {
			return fmt.Errorf("creating summarizer: %w", err)
		}
		pool, err := analysis.NewPool(analysis.Config{
			Summarizer: summarizer,
			NumWorkers: cfg.Analysis.Workers,
			QueueSize:  cfg.Analysis.QueueSize,
			Logger:     c.logger.Named("analysis"),
		})
		if err != nil {
			return fmt.Errorf("creating analysis pool: %w", err)
		}
		defer pool.Close()
		deps.Summaries = pool
	} else {
		c.logger.Info("post-call analysis disabled, no OpenAI key")
	}

	gw, err := gateway.NewServer(gateway.Config{
		PublicBaseURL:  cfg.Server.PublicBaseURL,
		WebhookKey:     cfg.Retell.APIKey,
		DefaultAgentID: cfg.Retell.AgentID,
	}, deps)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: gw.Routes(),
	}

	errChan := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	c.logger.Info("server started",
		zap.String("addr", cfg.Server.Addr),
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.Bool("analysis", deps.Summaries != nil),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}

// buildProvider selects the chat backend from the configuration.
func (c *serveCommander) buildProvider(cfg *config.Config) (agent.Provider, error) {
	switch cfg.LLM.Provider {
	case "openai":
		return agent.NewOpenAIProvider(agent.OpenAIConfig{
			APIKey:    cfg.LLM.OpenAIAPIKey,
			Model:     cfg.LLM.Model,
			MaxTokens: cfg.LLM.MaxTokens,
		})
	case "gemini":
		return agent.NewGeminiProvider(context.Background(), agent.GeminiConfig{
			APIKey: cfg.LLM.GeminiAPIKey,
			Model:  cfg.LLM.Model,
		})
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
}
