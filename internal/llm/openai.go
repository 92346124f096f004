package llm

import (
	"context"
	"fmt"

	"mnemo/internal/models"

	openai "github.com/meguminnnnnnnnn/go-openai"
)

// OpenAI is a Provider backed by the OpenAI chat completion API.
type OpenAI struct {
	client       *openai.Client
	defaultModel string
}

// NewOpenAI creates an OpenAI provider.
func NewOpenAI(model, apiKey string) (*OpenAI, error) {
	config := openai.DefaultConfig(apiKey)
	client := openai.NewClientWithConfig(config)
	return &OpenAI{client: client, defaultModel: model}, nil
}

// Name implements Provider.
func (o *OpenAI) Name() string { return "openai" }

// Generate implements Provider.
func (o *OpenAI) Generate(ctx context.Context, req *models.GenerateRequest) (*models.GenerateResponse, error) {
	modelName := req.Model
	if modelName == "" {
		modelName = o.defaultModel
	}

	temperature := float32(req.Temperature(0.0))
	openaiReq := openai.ChatCompletionRequest{
		Model: modelName,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		Temperature: &temperature,
	}
	if max := req.MaxOutputTokens(0); max > 0 {
		openaiReq.MaxTokens = max
	}

	resp, err := o.client.CreateChatCompletion(ctx, openaiReq)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai returned no choices")
	}

	return &models.GenerateResponse{
		Text:     resp.Choices[0].Message.Content,
		Provider: o.Name(),
		Model:    resp.Model,
		Usage: &models.Usage{
			PromptTokens:   resp.Usage.PromptTokens,
			ResponseTokens: resp.Usage.CompletionTokens,
			TotalTokens:    resp.Usage.TotalTokens,
		},
	}, nil
}
