package models

import "time"

// GenerateRequest is a single text-generation request routed through the LLM
// client's provider fallback chain.
type GenerateRequest struct {
	Prompt string `json:"prompt"`
	// Model overrides the provider's default model when set.
	Model string `json:"model,omitempty"`
	// ProviderPriority names the provider to try first.
	ProviderPriority string `json:"provider_priority,omitempty"`
	// Timeout bounds each provider attempt, not the whole chain.
	Timeout time.Duration `json:"-"`
	// Params carries provider-specific knobs such as temperature or
	// max_output_tokens.
	Params map[string]interface{} `json:"params,omitempty"`
}

// Usage reports token accounting for a generation, when the provider
// surfaces it.
type Usage struct {
	PromptTokens   int `json:"prompt_tokens,omitempty"`
	ResponseTokens int `json:"response_tokens,omitempty"`
	TotalTokens    int `json:"total_tokens,omitempty"`
}

// GenerateResponse is the result of the first successful provider attempt.
type GenerateResponse struct {
	Text     string                 `json:"text"`
	Provider string                 `json:"provider"`
	Model    string                 `json:"model,omitempty"`
	Usage    *Usage                 `json:"usage,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Temperature reads a float temperature from the request params, falling
// back to def when unset or of an unexpected type.
func (r *GenerateRequest) Temperature(def float64) float64 {
	if r.Params == nil {
		return def
	}
	switch v := r.Params["temperature"].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	}
	return def
}

// MaxOutputTokens reads the max_output_tokens param, falling back to def.
func (r *GenerateRequest) MaxOutputTokens(def int) int {
	if r.Params == nil {
		return def
	}
	switch v := r.Params["max_output_tokens"].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return def
}
