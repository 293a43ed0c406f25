// Package llm wraps langchaingo chat models behind a single-prompt
// completion interface. It supports OpenAI, Anthropic and Ollama
// backends, selected by configuration.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/HendryAvila/aidev/internal/config"
)

// Completion temperatures. Planning steps want variety, code
// generation wants determinism.
const (
	TempPlanning = 0.7
	TempCodegen  = 0.3
)

// ErrUnsupportedProvider indicates an unknown provider name.
var ErrUnsupportedProvider = errors.New("unsupported llm provider")

// Client produces a completion for a single prompt.
type Client interface {
	Complete(ctx context.Context, prompt string, temperature float64) (string, error)
}

type client struct {
	model llms.Model
}

// New builds a Client for the configured provider.
func New(cfg config.LLM) (Client, error) {
	model, err := newModel(cfg)
	if err != nil {
		return nil, err
	}
	return &client{model: model}, nil
}

func newModel(cfg config.LLM) (llms.Model, error) {
	switch cfg.Provider {
	case "openai":
		return openai.New(
			openai.WithToken(cfg.APIKey),
			openai.WithModel(cfg.Model),
		)
	case "anthropic":
		return anthropic.New(
			anthropic.WithToken(cfg.APIKey),
			anthropic.WithModel(cfg.Model),
		)
	case "ollama":
		opts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.OllamaHost != "" {
			opts = append(opts, ollama.WithServerURL(cfg.OllamaHost))
		}
		return ollama.New(opts...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, cfg.Provider)
	}
}

func (c *client) Complete(ctx context.Context, prompt string, temperature float64) (string, error) {
	out, err := llms.GenerateFromSinglePrompt(ctx, c.model, prompt,
		llms.WithTemperature(temperature),
	)
	if err != nil {
		return "", fmt.Errorf("generating completion: %w", err)
	}
	return out, nil
}
