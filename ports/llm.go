package ports

import (
	"context"

	"abstkit/domain/batch"
)

// UsageData represents raw usage data from LLM provider APIs
type UsageData struct {
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TotalTokens      int    `json:"total_tokens"`
	Model            string `json:"model"`
	Provider         string `json:"provider"`
}

// LLMResponse represents an LLM response with usage data
type LLMResponse struct {
	Content string
	Usage   *UsageData
}

// ChatRequest is a chat completion with explicit messages
type ChatRequest struct {
	Model       string
	Messages    []batch.Message
	Temperature *float64
	MaxTokens   int
}

// LLMClient interface for LLM providers
type LLMClient interface {
	// Single user prompt behind a generic system message
	ChatCompletion(ctx context.Context, model string, prompt string, maxTokens int) (string, error)

	ChatCompletionWithUsage(ctx context.Context, model string, prompt string, maxTokens int) (*LLMResponse, error)

	Chat(ctx context.Context, req ChatRequest) (*LLMResponse, error)
}

// Embedder turns texts into vectors
type Embedder interface {
	Embed(ctx context.Context, model string, inputs []string) ([][]float32, error)
}
