package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"mnemo/internal/models"

	olla "github.com/ollama/ollama/api"
)

// Ollama is a Provider backed by a local Ollama server.
type Ollama struct {
	client       *olla.Client
	defaultModel string
}

// NewOllama creates an Ollama provider. An empty baseURL defaults to
// "http://localhost:11434".
func NewOllama(model, baseURL string) (*Ollama, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	hc := &http.Client{
		Timeout: 120 * time.Second,
	}

	return &Ollama{client: olla.NewClient(parsedURL, hc), defaultModel: model}, nil
}

// Name implements Provider.
func (o *Ollama) Name() string { return "ollama" }

// Generate implements Provider with a non-streaming generation call.
func (o *Ollama) Generate(ctx context.Context, req *models.GenerateRequest) (*models.GenerateResponse, error) {
	modelName := req.Model
	if modelName == "" {
		modelName = o.defaultModel
	}

	options := map[string]interface{}{
		"temperature": req.Temperature(0.0),
	}
	if max := req.MaxOutputTokens(0); max > 0 {
		options["num_predict"] = max
	}

	var result *olla.GenerateResponse
	stream := false
	err := o.client.Generate(ctx, &olla.GenerateRequest{
		Model:   modelName,
		Prompt:  req.Prompt,
		Stream:  &stream,
		Options: options,
	}, func(resp olla.GenerateResponse) error {
		result = &resp
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate content with ollama: %w", err)
	}
	if result == nil {
		return nil, fmt.Errorf("ollama returned no response")
	}

	return &models.GenerateResponse{
		Text:     result.Response,
		Provider: o.Name(),
		Model:    result.Model,
		Usage: &models.Usage{
			PromptTokens:   result.PromptEvalCount,
			ResponseTokens: result.EvalCount,
			TotalTokens:    result.PromptEvalCount + result.EvalCount,
		},
	}, nil
}
