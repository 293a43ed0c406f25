package config

import (
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.LLM.Provider != ProviderOpenAI {
		t.Errorf("Provider = %s, want openai", cfg.LLM.Provider)
	}
	if cfg.MaxPhases != 3 {
		t.Errorf("MaxPhases = %d, want 3", cfg.MaxPhases)
	}
	if cfg.HTTPPort != 8000 {
		t.Errorf("HTTPPort = %d, want 8000", cfg.HTTPPort)
	}
	if cfg.HTTPTimeout != 60*time.Second {
		t.Errorf("HTTPTimeout = %s, want 60s", cfg.HTTPTimeout)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("AIDEV_LLM_PROVIDER", "ollama")
	t.Setenv("AIDEV_MAX_PHASES", "5")
	t.Setenv("AIDEV_DATABASE_PATH", "/tmp/test.db")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.Provider != ProviderOllama {
		t.Errorf("Provider = %s, want ollama", cfg.LLM.Provider)
	}
	if cfg.MaxPhases != 5 {
		t.Errorf("MaxPhases = %d, want 5", cfg.MaxPhases)
	}
	if cfg.DatabasePath != "/tmp/test.db" {
		t.Errorf("DatabasePath = %s, want /tmp/test.db", cfg.DatabasePath)
	}
}

func TestLoad_DefaultModelPerProvider(t *testing.T) {
	tests := []struct {
		provider string
		want     string
	}{
		{"openai", "gpt-4o-mini"},
		{"anthropic", "claude-sonnet-4-20250514"},
		{"ollama", "llama3.1"},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			t.Setenv("AIDEV_LLM_PROVIDER", tt.provider)

			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if cfg.LLM.Model != tt.want {
				t.Errorf("Model = %s, want %s", cfg.LLM.Model, tt.want)
			}
		})
	}
}

func TestLoad_ExplicitModelWins(t *testing.T) {
	t.Setenv("AIDEV_LLM_PROVIDER", "anthropic")
	t.Setenv("AIDEV_LLM_MODEL", "claude-opus-4-20250514")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.Model != "claude-opus-4-20250514" {
		t.Errorf("Model = %s, want explicit override", cfg.LLM.Model)
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad provider", func(c *Config) { c.LLM.Provider = "groq" }},
		{"zero phases", func(c *Config) { c.MaxPhases = 0 }},
		{"bad port", func(c *Config) { c.HTTPPort = 0 }},
		{"zero timeout", func(c *Config) { c.HTTPTimeout = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}
