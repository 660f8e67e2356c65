package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"abstkit/domain/batch"
	"abstkit/internal"
	"abstkit/internal/config"
	"abstkit/internal/errors"
	"abstkit/ports"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Config holds the OpenAI connection settings
type Config struct {
	APIKey            string
	BaseURL           string
	Timeout           time.Duration
	Temperature       float64
	RequestsPerSecond float64
}

// ConfigFromAI maps application config onto client config
func ConfigFromAI(ai config.AIConfig) Config {
	return Config{
		APIKey:            ai.OpenAIKey,
		BaseURL:           ai.BaseURL,
		Timeout:           ai.Timeout,
		Temperature:       ai.Temperature,
		RequestsPerSecond: ai.RequestsPerSecond,
	}
}

// OpenAIClient talks to the OpenAI REST API: chat, embeddings, files and batches
type OpenAIClient struct {
	APIKey      string
	BaseURL     string
	Timeout     time.Duration
	Temperature float64

	http    *http.Client
	limiter *RateLimiter
	logger  *internal.Logger
}

// NewOpenAIClient creates a client from config
func NewOpenAIClient(cfg Config) (*OpenAIClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.ConfigInvalid("missing OpenAI API key")
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &OpenAIClient{
		APIKey:      cfg.APIKey,
		BaseURL:     strings.TrimRight(baseURL, "/"),
		Timeout:     cfg.Timeout,
		Temperature: cfg.Temperature,
		http:        &http.Client{Timeout: cfg.Timeout},
		limiter:     NewRateLimiter(cfg.RequestsPerSecond, 1),
		logger:      internal.DefaultLogger,
	}, nil
}

// WithLogger replaces the client logger
func (c *OpenAIClient) WithLogger(logger *internal.Logger) *OpenAIClient {
	c.logger = logger
	return c
}

type chatChoice struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
}

type chatResponse struct {
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// ChatCompletion sends one user prompt behind a generic system message
func (c *OpenAIClient) ChatCompletion(ctx context.Context, model string, prompt string, maxTokens int) (string, error) {
	resp, err := c.ChatCompletionWithUsage(ctx, model, prompt, maxTokens)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func (c *OpenAIClient) ChatCompletionWithUsage(ctx context.Context, model string, prompt string, maxTokens int) (*ports.LLMResponse, error) {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	temp := c.Temperature
	return c.Chat(ctx, ports.ChatRequest{
		Model: model,
		Messages: []batch.Message{
			{Role: "system", Content: "You are a careful assistant. Output exactly what the user asks for."},
			{Role: "user", Content: prompt},
		},
		Temperature: &temp,
		MaxTokens:   maxTokens,
	})
}

// Chat sends an explicit message list
func (c *OpenAIClient) Chat(ctx context.Context, req ports.ChatRequest) (*ports.LLMResponse, error) {
	if strings.TrimSpace(req.Model) == "" {
		return nil, errors.InvalidInput("missing model")
	}

	body := batch.ChatBody{
		Model:       req.Model,
		Messages:    req.Messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "marshal request")
	}

	respRaw, err := c.do(ctx, http.MethodPost, "/chat/completions", "application/json", raw)
	if err != nil {
		return nil, err
	}

	var decoded chatResponse
	if err := json.Unmarshal(respRaw, &decoded); err != nil {
		return nil, errors.Wrap(err, "unmarshal response")
	}
	if len(decoded.Choices) == 0 {
		return nil, errors.ExternalServiceError("openai", fmt.Errorf("openai response missing choices"))
	}

	out := &ports.LLMResponse{Content: decoded.Choices[0].Message.Content}
	if decoded.Usage != nil {
		model := decoded.Model
		if model == "" {
			model = req.Model
		}
		out.Usage = &ports.UsageData{
			PromptTokens:     decoded.Usage.PromptTokens,
			CompletionTokens: decoded.Usage.CompletionTokens,
			TotalTokens:      decoded.Usage.TotalTokens,
			Model:            model,
			Provider:         "openai",
		}
	}
	return out, nil
}

// do sends one request and returns the body of a 2xx response
func (c *OpenAIClient) do(ctx context.Context, method, path, contentType string, payload []byte) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, errors.ExternalServiceError("openai", err)
	}
	defer resp.Body.Close()

	respRaw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
		c.limiter.RecordRateLimitError(retryAfter)
		c.logger.Warn("[OpenAIClient] rate limited on %s %s, backing off %s", method, path, c.limiter.Backoff().Round(time.Second))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.ExternalServiceError("openai", fmt.Errorf("openai http %d: %s", resp.StatusCode, strings.TrimSpace(string(respRaw))))
	}
	return respRaw, nil
}
