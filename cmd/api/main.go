// Command relay runs the chat-completion relay: it accepts chat requests on
// POST /api/openai, forwards them to the OpenAI chat-completions API with the
// server's credential and returns the first choice's text.
//
// Usage:
//
//	# Start with .env / environment configuration
//	relay
//
//	# Start with a TOML config file and a port override
//	relay --config relay.toml --port 8080
//
//	# Show recent audit-log entries
//	relay logs --limit 20
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mandalnilabja/chatrelay/internal/app"
	"github.com/mandalnilabja/chatrelay/internal/config"
	"github.com/mandalnilabja/chatrelay/internal/metrics"
	"github.com/mandalnilabja/chatrelay/internal/provider/openai"
	"github.com/mandalnilabja/chatrelay/internal/storage"
	"github.com/mandalnilabja/chatrelay/internal/tokenizer"
	"github.com/mandalnilabja/chatrelay/internal/transport/http/handler"
)

const shutdownTimeout = 10 * time.Second

var rootFlags struct {
	configFile string
	envFile    string
	port       string
	logLevel   string
}

var rootCmd = &cobra.Command{
	Use:   "relay",
	Short: "Relay chat-completion requests to OpenAI with a server-held key",
	Long: `relay is a small backend that accepts chat-completion requests from a
client, forwards them to the OpenAI chat-completions API with the server's
credential, and returns the first choice's text.

Configuration comes from the environment, an optional .env file and an
optional TOML file (--config or RELAY_CONFIG).`,
	SilenceUsage: true,
	RunE:         runServer,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&rootFlags.configFile, "config", "c", "", "TOML config file path")
	rootCmd.PersistentFlags().StringVar(&rootFlags.envFile, "env-file", config.DefaultEnvFile, "dotenv file path")
	rootCmd.Flags().StringVarP(&rootFlags.port, "port", "p", "", "override listen port")
	rootCmd.Flags().StringVar(&rootFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig loads configuration and applies flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(config.Options{
		ConfigFile: rootFlags.configFile,
		EnvFile:    rootFlags.envFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if rootFlags.port != "" {
		cfg.Port = rootFlags.port
	}
	if rootFlags.logLevel != "" {
		cfg.LogLevel = rootFlags.logLevel
	}
	return cfg, nil
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := setupLogger(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)
	for _, w := range cfg.Warnings {
		logger.Warn("invalid configuration value, using default", "detail", w)
	}

	store, err := storage.New(cfg.RequestLogPath)
	if err != nil {
		return fmt.Errorf("failed to open request log: %w", err)
	}
	defer store.Close()

	var collector *metrics.Collector
	var metricsHandler http.Handler
	if cfg.EnableMetrics {
		collector = metrics.New()
		metricsHandler = collector.Handler()
	}

	prov := openai.New(openai.Options{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.BaseURL,
		Timeout: cfg.UpstreamTimeout,
	})

	tok := tokenizer.New()
	go func() {
		if err := tok.Preload(cfg.Model); err != nil {
			logger.Warn("token estimates unavailable", "model", cfg.Model, "error", err)
		}
	}()

	repo := handler.NewRepo(handler.Options{
		Provider:  prov,
		Model:     cfg.Model,
		Tokenizer: tok,
		Metrics:   collector,
		Storage:   store,
		Logger:    logger,
	})

	router := app.NewRouter(repo, app.RouterOptions{
		Logger:       logger,
		MaxBodyBytes: cfg.MaxBodyBytes,
		Metrics:      metricsHandler,
	})
	srv := app.NewServer(cfg, router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := srv.Listen()
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	logger.Info("Server running", "port", cfg.Port, "addr", ln.Addr().String())
	logger.Info("OpenAI API Key configured: "+yesNo(cfg.HasAPIKey()),
		"model", cfg.Model,
		"metrics", cfg.EnableMetrics,
		"request_log", cfg.RequestLogPath != "",
	)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutting down gracefully")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
	repo.Wait()

	logger.Info("server stopped")
	return nil
}
