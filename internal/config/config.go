// Package config provides process configuration for aidev.
//
// Configuration is loaded once at startup from environment variables
// (AIDEV_ prefix) over hardcoded defaults, and the resulting Config
// struct is passed by injection to every component that needs it.
// No other package reads ambient environment state.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Supported LLM providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

// LLM holds the provider selection for language-model calls.
type LLM struct {
	Provider string `koanf:"llm_provider"`
	Model    string `koanf:"llm_model"`
	APIKey   string `koanf:"api_key"`
	// OllamaHost is only consulted when Provider is "ollama".
	OllamaHost string `koanf:"ollama_host"`
}

// Config is the root configuration struct, built once by Load.
type Config struct {
	LLM LLM `koanf:",squash"`

	// ServerURL is the base URL of the tool server, used by the agent
	// when it talks to a remote dispatcher over HTTP.
	ServerURL string `koanf:"server_url"`

	// HTTP server bind address.
	HTTPHost string `koanf:"http_host"`
	HTTPPort int    `koanf:"http_port"`

	// HTTPTimeout bounds every outbound HTTP call made by the agent.
	HTTPTimeout time.Duration `koanf:"http_timeout"`

	// DatabasePath is the SQLite file location.
	DatabasePath string `koanf:"database_path"`

	// MaxPhases is the planning target: the workflow runs exactly this
	// many plan/execute/review cycles barring a fatal error.
	MaxPhases int `koanf:"max_phases"`

	// ProjectBasePath is where the implementer materializes phase files.
	// Empty means the current working directory.
	ProjectBasePath string `koanf:"project_base_path"`

	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`
}

// Defaults returns a Config populated with default values.
func Defaults() Config {
	return Config{
		LLM: LLM{
			Provider:   ProviderOpenAI,
			OllamaHost: "http://localhost:11434",
		},
		ServerURL:    "http://localhost:8000",
		HTTPHost:     "0.0.0.0",
		HTTPPort:     8000,
		HTTPTimeout:  60 * time.Second,
		DatabasePath: "data/aidev.db",
		MaxPhases:    3,
		LogLevel:     "info",
		LogFormat:    "console",
	}
}

// Load builds the configuration from defaults overridden by AIDEV_*
// environment variables (AIDEV_LLM_PROVIDER, AIDEV_MAX_PHASES, ...).
func Load() (Config, error) {
	cfg := Defaults()

	k := koanf.New(".")
	if err := k.Load(env.Provider("AIDEV_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "AIDEV_"))
	}), nil); err != nil {
		return Config{}, fmt.Errorf("loading environment: %w", err)
	}
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Default model depends on the provider, so resolve it after the
	// environment override pass.
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = defaultModel(cfg.LLM.Provider)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func defaultModel(provider string) string {
	switch provider {
	case ProviderAnthropic:
		return "claude-sonnet-4-20250514"
	case ProviderOllama:
		return "llama3.1"
	default:
		return "gpt-4o-mini"
	}
}

// Validate checks invariants that would otherwise surface as confusing
// failures deep inside a workflow run.
func (c Config) Validate() error {
	switch c.LLM.Provider {
	case ProviderOpenAI, ProviderAnthropic, ProviderOllama:
	default:
		return fmt.Errorf("invalid llm provider %q: must be one of: openai, anthropic, ollama", c.LLM.Provider)
	}
	if c.MaxPhases < 1 {
		return fmt.Errorf("max_phases must be at least 1, got %d", c.MaxPhases)
	}
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid http port %d", c.HTTPPort)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http_timeout must be positive, got %s", c.HTTPTimeout)
	}
	return nil
}
