// Package generation talks to the external text-generation service. Every
// failure is reported as a GenerationServiceError and nothing is retried.
package generation

import (
	"context"
	"fmt"
	"time"

	"prompt-dispatcher/internal/common/config"
)

// Generator sends one composed prompt and returns the model's reply.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Name() string
}

// Options are the call parameters shared by every provider.
type Options struct {
	BaseURL     string
	APIKey      string
	Model       string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
}

func OptionsFrom(cfg config.GenerationConfig) Options {
	return Options{
		BaseURL:     cfg.BaseURL,
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		Timeout:     config.GetDuration(cfg.Timeout),
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
	}
}

// New builds the generator named by cfg.Provider.
func New(ctx context.Context, cfg config.GenerationConfig) (Generator, error) {
	opts := OptionsFrom(cfg)
	switch cfg.Provider {
	case config.ProviderHTTP, "":
		return NewHTTPGenerator(opts), nil
	case config.ProviderGemini:
		return NewGeminiGenerator(ctx, opts)
	default:
		return nil, fmt.Errorf("unsupported generation provider %q", cfg.Provider)
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
