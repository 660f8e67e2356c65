package models

import (
	"time"

	"github.com/google/uuid"
)

// LLMUsage represents a single LLM API call's token usage
type LLMUsage struct {
	ID               uuid.UUID `json:"id" db:"id"`
	RunID            uuid.UUID `json:"run_id" db:"run_id"`
	Provider         string    `json:"provider" db:"provider"`             // 'openai'
	Model            string    `json:"model" db:"model"`                   // 'gpt-4.1-mini', 'text-embedding-3-small'
	OperationType    string    `json:"operation_type" db:"operation_type"` // 'rewrite', 'classification', ...
	PromptTokens     int       `json:"prompt_tokens" db:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens" db:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens" db:"total_tokens"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

// UsageSummary provides aggregated usage statistics for a period
type UsageSummary struct {
	PeriodStart           time.Time             `json:"period_start"`
	PeriodEnd             time.Time             `json:"period_end"`
	TotalTokens           int                   `json:"total_tokens" db:"total_tokens"`
	TotalPromptTokens     int                   `json:"total_prompt_tokens" db:"total_prompt_tokens"`
	TotalCompletionTokens int                   `json:"total_completion_tokens" db:"total_completion_tokens"`
	RequestCount          int                   `json:"request_count" db:"request_count"`
	ByModel               map[string]ModelUsage `json:"by_model"`
}

// ModelUsage represents usage aggregated by model
type ModelUsage struct {
	Model        string `json:"model" db:"model"`
	Provider     string `json:"provider" db:"provider"`
	TotalTokens  int    `json:"total_tokens" db:"total_tokens"`
	RequestCount int    `json:"request_count" db:"request_count"`
}

// Operation types for categorization
const (
	OpRewrite        = "rewrite"
	OpClassification = "classification"
	OpEmbedding      = "embedding"
	OpChat           = "chat"
)
