package llm

import (
	"context"
	"fmt"

	"mnemo/internal/models"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Gemini is a Provider backed by the Google Generative AI API.
type Gemini struct {
	client       *genai.Client
	defaultModel string
}

// NewGemini creates a Gemini provider. The model name is the default used
// when a request does not specify one.
func NewGemini(ctx context.Context, model, apiKey string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &Gemini{client: client, defaultModel: model}, nil
}

// Name implements Provider.
func (g *Gemini) Name() string { return "gemini" }

// Generate implements Provider using a single-shot content generation call.
func (g *Gemini) Generate(ctx context.Context, req *models.GenerateRequest) (*models.GenerateResponse, error) {
	modelName := req.Model
	if modelName == "" {
		modelName = g.defaultModel
	}

	model := g.client.GenerativeModel(modelName)
	model.SetTemperature(float32(req.Temperature(0.0)))
	if max := req.MaxOutputTokens(0); max > 0 {
		model.SetMaxOutputTokens(int32(max))
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return nil, fmt.Errorf("gemini generate failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("gemini returned no candidates")
	}

	var text string
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text += string(t)
		}
	}

	out := &models.GenerateResponse{
		Text:     text,
		Provider: g.Name(),
		Model:    modelName,
	}
	if resp.UsageMetadata != nil {
		out.Usage = &models.Usage{
			PromptTokens:   int(resp.UsageMetadata.PromptTokenCount),
			ResponseTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:    int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return out, nil
}

// Close releases the underlying API client.
func (g *Gemini) Close() error {
	return g.client.Close()
}
