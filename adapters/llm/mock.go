package llm

import (
	"context"
	"sync"

	"abstkit/domain/batch"
	"abstkit/ports"
)

// MockLLMClient is a mock LLM client for testing
type MockLLMClient struct {
	Response string // Set this for testing
	Error    error  // Set this to simulate errors

	// Respond takes precedence over Response and Error
	Respond func(req ports.ChatRequest) (string, error)

	mu    sync.Mutex
	Calls []ports.ChatRequest
}

func (m *MockLLMClient) ChatCompletion(ctx context.Context, model string, prompt string, maxTokens int) (string, error) {
	resp, err := m.ChatCompletionWithUsage(ctx, model, prompt, maxTokens)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func (m *MockLLMClient) ChatCompletionWithUsage(ctx context.Context, model string, prompt string, maxTokens int) (*ports.LLMResponse, error) {
	return m.Chat(ctx, ports.ChatRequest{
		Model:     model,
		Messages:  userOnly(prompt),
		MaxTokens: maxTokens,
	})
}

func (m *MockLLMClient) Chat(ctx context.Context, req ports.ChatRequest) (*ports.LLMResponse, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, req)
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.Respond != nil {
		content, err := m.Respond(req)
		if err != nil {
			return nil, err
		}
		return &ports.LLMResponse{Content: content}, nil
	}
	if m.Error != nil {
		return nil, m.Error
	}
	return &ports.LLMResponse{
		Content: m.Response,
		Usage: &ports.UsageData{
			PromptTokens:     10,
			CompletionTokens: 5,
			TotalTokens:      15,
			Model:            req.Model,
			Provider:         "mock",
		},
	}, nil
}

// CallCount returns the number of recorded calls
func (m *MockLLMClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

func userOnly(prompt string) []batch.Message {
	return []batch.Message{{Role: "user", Content: prompt}}
}
