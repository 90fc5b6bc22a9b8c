// Package config loads the relay configuration once at startup.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Defaults
const (
	DefaultPort            = "3001"
	DefaultModel           = "gpt-4o"
	DefaultBaseURL         = "https://api.openai.com/v1/chat/completions"
	DefaultUpstreamTimeout = 120 * time.Second
	DefaultMaxBodyBytes    = 50 << 20
	DefaultLogLevel        = "info"
	DefaultEnvFile         = ".env"
)

// Config holds application configuration loaded from environment and file.
// Priority: CLI flags → Env vars (including .env) → config file → defaults
type Config struct {
	// Port is the TCP port the server listens on.
	Port string

	// OpenAIAPIKey is the upstream bearer credential. Empty means the relay
	// answers every completion request with a configuration error.
	OpenAIAPIKey string

	// Model is the fixed upstream model identifier.
	Model string

	// BaseURL is the upstream chat-completions endpoint.
	BaseURL string

	// UpstreamTimeout bounds a single upstream call. Zero disables it.
	UpstreamTimeout time.Duration

	// MaxBodyBytes limits the size of incoming JSON bodies.
	MaxBodyBytes int64

	// LogLevel is one of debug, info, warn, error.
	LogLevel string

	// RequestLogPath is the SQLite file for the request audit log.
	// Empty disables the audit log.
	RequestLogPath string

	// EnableMetrics exposes Prometheus metrics at /metrics.
	EnableMetrics bool

	// Warnings collects invalid values that were replaced by defaults.
	Warnings []string
}

// Options selects the files Load reads.
type Options struct {
	// ConfigFile is an optional TOML file. A missing file is an error
	// only when set explicitly.
	ConfigFile string

	// EnvFile is the dotenv file. Defaults to ".env"; a missing file is ignored.
	EnvFile string
}

// Load reads configuration from the dotenv file, the TOML file and the
// environment. Environment variables override file config values.
func Load(opts Options) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = DefaultEnvFile
	}
	// godotenv never overrides variables already present in the environment.
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	fileConfig := &FileConfig{}
	if path := firstNonEmpty(opts.ConfigFile, os.Getenv("RELAY_CONFIG")); path != "" {
		fc, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		fileConfig = fc
	}

	cfg := &Config{
		Port:           getEnvOrFile("PORT", fileConfig.Port, DefaultPort),
		OpenAIAPIKey:   getEnvOrFile("OPENAI_API_KEY", fileConfig.OpenAIAPIKey, ""),
		Model:          getEnvOrFile("OPENAI_MODEL", fileConfig.Model, DefaultModel),
		BaseURL:        getEnvOrFile("OPENAI_BASE_URL", fileConfig.BaseURL, DefaultBaseURL),
		LogLevel:       strings.ToLower(getEnvOrFile("LOG_LEVEL", fileConfig.LogLevel, DefaultLogLevel)),
		RequestLogPath: getEnvOrFile("REQUEST_LOG_PATH", fileConfig.RequestLogPath, ""),
		EnableMetrics:  getEnvBoolOrFile("ENABLE_METRICS", fileConfig.EnableMetrics, true),
	}

	cfg.UpstreamTimeout = cfg.parseDuration("UPSTREAM_TIMEOUT",
		getEnvOrFile("UPSTREAM_TIMEOUT", fileConfig.UpstreamTimeout, ""), DefaultUpstreamTimeout)
	cfg.MaxBodyBytes = cfg.parseInt64("MAX_BODY_BYTES",
		getEnvOrFile("MAX_BODY_BYTES", int64String(fileConfig.MaxBodyBytes), ""), DefaultMaxBodyBytes)

	return cfg, nil
}

// Addr returns the listen address for http.Server.
func (c *Config) Addr() string {
	return ":" + strings.TrimPrefix(c.Port, ":")
}

// HasAPIKey reports whether the upstream credential is configured.
func (c *Config) HasAPIKey() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) parseDuration(key, value string, defaultValue time.Duration) time.Duration {
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		c.Warnings = append(c.Warnings, fmt.Sprintf("invalid %s %q, using %s", key, value, defaultValue))
		return defaultValue
	}
	return d
}

func (c *Config) parseInt64(key, value string, defaultValue int64) int64 {
	if value == "" {
		return defaultValue
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil || n <= 0 {
		c.Warnings = append(c.Warnings, fmt.Sprintf("invalid %s %q, using %d", key, value, defaultValue))
		return defaultValue
	}
	return n
}

// getEnvOrFile returns env value, file value, or default (in priority order)
func getEnvOrFile(key, fileValue, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	if fileValue != "" {
		return fileValue
	}
	return defaultValue
}

// getEnvBoolOrFile returns env bool, file bool, or default (in priority order)
func getEnvBoolOrFile(key string, fileValue *bool, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	if fileValue != nil {
		return *fileValue
	}
	return defaultValue
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func int64String(n int64) string {
	if n == 0 {
		return ""
	}
	return strconv.FormatInt(n, 10)
}
