package generation

import (
	"context"
	"fmt"
	"strings"

	"prompt-dispatcher/internal/common/errors"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.0-flash"

// GeminiGenerator calls the Gemini API through the GenAI SDK.
type GeminiGenerator struct {
	opts   Options
	client *genai.Client
}

func NewGeminiGenerator(ctx context.Context, opts Options) (*GeminiGenerator, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if opts.Model == "" {
		opts.Model = defaultGeminiModel
	}

	cc := &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if opts.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiGenerator{opts: opts, client: client}, nil
}

func (g *GeminiGenerator) Name() string { return "gemini" }

func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := withTimeout(ctx, g.opts.Timeout)
	defer cancel()

	gc := &genai.GenerateContentConfig{}
	if g.opts.MaxTokens > 0 {
		gc.MaxOutputTokens = int32(g.opts.MaxTokens)
	}
	temp := float32(g.opts.Temperature)
	gc.Temperature = &temp

	resp, err := g.client.Models.GenerateContent(ctx, g.opts.Model, genai.Text(prompt), gc)
	if err != nil {
		return "", errors.NewGenerationServiceError(g.Name(), err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", errors.NewGenerationServiceError(g.Name(), fmt.Errorf("empty response text"))
	}
	return text, nil
}
