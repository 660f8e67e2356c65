package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"abstkit/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	AI       AIConfig
	Batch    BatchConfig
	Database DatabaseConfig
	Morph    MorphConfig
	Server   ServerConfig
	Output   OutputConfig
}

// AIConfig holds OpenAI related settings
type AIConfig struct {
	OpenAIKey         string
	BaseURL           string
	Model             string
	EmbeddingModel    string
	MaxTokens         int
	Temperature       float64
	Timeout           time.Duration
	RequestsPerSecond float64
	PromptsDir        string // empty means the embedded prompts
}

// BatchConfig holds Batch API submission limits
type BatchConfig struct {
	PollInterval     time.Duration
	MaxRetries       int
	MaxInputTokens   int
	MaxOutputTokens  int
	TokenBudget      int
	CompletionWindow string
	WorkDir          string
	LedgerPath       string
}

// DatabaseConfig holds the job/usage store location
type DatabaseConfig struct {
	URL string
}

// MorphConfig selects the morphological dictionary
type MorphConfig struct {
	Dictionary string // "uni" or "ipa"
}

// ServerConfig holds HTTP API settings
type ServerConfig struct {
	Port string
}

// OutputConfig holds output locations
type OutputConfig struct {
	Dir        string
	ChartFont  string
	ReportHTML bool // render Markdown reports as HTML too
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	cfg := &Config{}

	aiConfig, err := loadAIConfig()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load AI configuration")
	}
	cfg.AI = *aiConfig

	batchConfig, err := loadBatchConfig()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load batch configuration")
	}
	cfg.Batch = *batchConfig

	cfg.Database = *loadDatabaseConfig()

	morphConfig, err := loadMorphConfig()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load morphology configuration")
	}
	cfg.Morph = *morphConfig

	cfg.Server = *loadServerConfig()
	cfg.Output = *loadOutputConfig()

	return cfg, nil
}

func loadAIConfig() (*AIConfig, error) {
	temperature := getEnvFloatOrDefault("LLM_TEMPERATURE", 0.5)
	if temperature < 0 || temperature > 2 {
		return nil, errors.ConfigInvalid("LLM_TEMPERATURE must be between 0 and 2")
	}

	return &AIConfig{
		OpenAIKey:         os.Getenv("OPENAI_API_KEY"),
		BaseURL:           getEnvOrDefault("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		Model:             getEnvOrDefault("LLM_MODEL", "gpt-4.1-mini"),
		EmbeddingModel:    getEnvOrDefault("EMBEDDING_MODEL", "text-embedding-3-small"),
		MaxTokens:         getEnvIntOrDefault("LLM_MAX_TOKENS", 2000),
		Temperature:       temperature,
		Timeout:           getEnvDurationOrDefault("LLM_TIMEOUT", 120*time.Second),
		RequestsPerSecond: getEnvFloatOrDefault("LLM_REQUESTS_PER_SECOND", 2),
		PromptsDir:        os.Getenv("PROMPTS_DIR"),
	}, nil
}

// Validate checks the settings only LLM-backed commands need
func (c AIConfig) Validate() error {
	if strings.TrimSpace(c.OpenAIKey) == "" {
		return errors.ConfigInvalid("OPENAI_API_KEY is required")
	}
	if c.Model == "" {
		return errors.ConfigInvalid("LLM_MODEL is required")
	}
	return nil
}

func loadBatchConfig() (*BatchConfig, error) {
	cfg := &BatchConfig{
		PollInterval:     getEnvDurationOrDefault("BATCH_POLL_INTERVAL", 60*time.Second),
		MaxRetries:       getEnvIntOrDefault("BATCH_MAX_RETRIES", 5),
		MaxInputTokens:   getEnvIntOrDefault("BATCH_MAX_INPUT_TOKENS", 8000),
		MaxOutputTokens:  getEnvIntOrDefault("BATCH_MAX_OUTPUT_TOKENS", 2000),
		TokenBudget:      getEnvIntOrDefault("BATCH_TOKEN_BUDGET", 1_500_000),
		CompletionWindow: getEnvOrDefault("BATCH_COMPLETION_WINDOW", "24h"),
		WorkDir:          getEnvOrDefault("BATCH_WORK_DIR", "data"),
		LedgerPath:       getEnvOrDefault("BATCH_LEDGER", "request_input_id.csv"),
	}
	if cfg.MaxInputTokens <= 0 || cfg.MaxOutputTokens <= 0 {
		return nil, errors.ConfigInvalid("batch token limits must be positive")
	}
	if cfg.TokenBudget < cfg.MaxInputTokens+cfg.MaxOutputTokens {
		return nil, errors.ConfigInvalid("BATCH_TOKEN_BUDGET must fit at least one request")
	}
	if cfg.MaxRetries < 0 {
		return nil, errors.ConfigInvalid("BATCH_MAX_RETRIES must not be negative")
	}
	return cfg, nil
}

func loadDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		URL: getEnvOrDefault("DATABASE_URL", "abstkit.db"),
	}
}

func loadMorphConfig() (*MorphConfig, error) {
	dict := strings.ToLower(getEnvOrDefault("MORPH_DICT", "uni"))
	if dict != "uni" && dict != "ipa" {
		return nil, errors.ConfigInvalid("MORPH_DICT must be uni or ipa")
	}
	return &MorphConfig{Dictionary: dict}, nil
}

func loadServerConfig() *ServerConfig {
	return &ServerConfig{
		Port: getEnvOrDefault("PORT", "8080"),
	}
}

func loadOutputConfig() *OutputConfig {
	return &OutputConfig{
		Dir:        getEnvOrDefault("OUTPUT_DIR", "."),
		ChartFont:  os.Getenv("CHART_FONT"),
		ReportHTML: getEnvBoolOrDefault("REPORT_HTML", false),
	}
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(strings.ReplaceAll(value, "_", "")); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
