package generation

import (
	"context"
	"fmt"
	"strings"

	"prompt-dispatcher/internal/common/errors"
	commonhttp "prompt-dispatcher/internal/common/http"
)

const generatePath = "/api/ai/generate"

// HTTPGenerator posts prompts to a JSON text-generation endpoint.
type HTTPGenerator struct {
	opts   Options
	client *commonhttp.Client
}

type generateRequest struct {
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

type generateResponse struct {
	Text string `json:"text"`
}

func NewHTTPGenerator(opts Options) *HTTPGenerator {
	return &HTTPGenerator{
		opts:   opts,
		client: commonhttp.NewClient(opts.Timeout),
	}
}

func (g *HTTPGenerator) Name() string { return "http" }

func (g *HTTPGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := withTimeout(ctx, g.opts.Timeout)
	defer cancel()

	headers := map[string]string{}
	if g.opts.APIKey != "" {
		headers["Authorization"] = "Bearer " + g.opts.APIKey
	}

	var resp generateResponse
	err := g.client.PostJSON(ctx, strings.TrimRight(g.opts.BaseURL, "/")+generatePath, headers, generateRequest{
		Prompt:      prompt,
		MaxTokens:   g.opts.MaxTokens,
		Temperature: g.opts.Temperature,
	}, &resp)
	if err != nil {
		return "", errors.NewGenerationServiceError(g.Name(), err)
	}

	if strings.TrimSpace(resp.Text) == "" {
		return "", errors.NewGenerationServiceError(g.Name(), fmt.Errorf("empty response text"))
	}

	return resp.Text, nil
}
