package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file structure.
// Every field is optional; environment variables take precedence.
type FileConfig struct {
	Port            string `toml:"port"`
	OpenAIAPIKey    string `toml:"openai_api_key"`
	Model           string `toml:"model"`
	BaseURL         string `toml:"base_url"`
	UpstreamTimeout string `toml:"upstream_timeout"`
	MaxBodyBytes    int64  `toml:"max_body_bytes"`
	LogLevel        string `toml:"log_level"`
	RequestLogPath  string `toml:"request_log_path"`
	EnableMetrics   *bool  `toml:"enable_metrics"`
}

// LoadFile decodes the TOML file at path. Unknown keys are rejected so
// typos do not silently fall back to defaults.
func LoadFile(path string) (*FileConfig, error) {
	cfg := &FileConfig{}

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown keys in config file %s: %v", path, undecoded)
	}

	return cfg, nil
}

// ExampleFile is the commented configuration file printed by `relay config example`.
const ExampleFile = `# Chat relay configuration
# Environment variables (PORT, OPENAI_API_KEY, ...) override these values.

# port = "3001"
# openai_api_key = "sk-..."
# model = "gpt-4o"
# base_url = "https://api.openai.com/v1/chat/completions"
# upstream_timeout = "120s"      # "0s" disables the timeout
# max_body_bytes = 52428800      # 50 MB
# log_level = "info"             # debug, info, warn, error
# request_log_path = ""          # SQLite audit log, empty disables
# enable_metrics = true
`
