package main

import (
	"context"
	"path/filepath"
	"strings"

	"abstkit/adapters/chart"
	"abstkit/adapters/llm"
	"abstkit/adapters/morph"
	"abstkit/adapters/store"
	"abstkit/adapters/tokens"
	"abstkit/ai"
	"abstkit/app"
	"abstkit/internal"
	"abstkit/internal/config"
	"abstkit/internal/usage"
	"abstkit/ports"

	"github.com/jmoiron/sqlx"
)

var (
	logger = internal.DefaultLogger
	cfg    *config.Config
	db     *sqlx.DB
)

func setupEnv(outDir, font string) error {
	loaded, err := config.Load()
	if err != nil {
		return err
	}
	cfg = loaded
	if outDir != "" {
		cfg.Output.Dir = outDir
	}
	if font != "" {
		cfg.Output.ChartFont = font
	}
	return nil
}

func closeEnv() {
	if db != nil {
		db.Close()
		db = nil
	}
}

// outPath places name under the output directory
func outPath(name string) string {
	return filepath.Join(cfg.Output.Dir, name)
}

func baseName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

func prompts() *ai.PromptManager {
	return ai.NewPromptManager(cfg.AI.PromptsDir)
}

// newLLM builds the chat client for rewrite and classify
var newLLM = func() (ports.LLMClient, error) {
	return openAI()
}

func openAI() (*llm.OpenAIClient, error) {
	if err := cfg.AI.Validate(); err != nil {
		return nil, err
	}
	return llm.NewOpenAIClient(llm.ConfigFromAI(cfg.AI))
}

func tokenCounter() (ports.TokenCounter, error) {
	return tokens.NewCounter(tokens.DefaultEncoding)
}

func analyzer() (*morph.Analyzer, error) {
	return morph.New(cfg.Morph.Dictionary)
}

// openStore opens the job/usage database once. A database that cannot be opened
// is logged and the command carries on without it.
func openStore(ctx context.Context) *sqlx.DB {
	if db != nil {
		return db
	}
	conn, err := store.OpenAndMigrate(ctx, cfg.Database.URL)
	if err != nil {
		logger.Warn("[CLI] job store unavailable: %v", err)
		return nil
	}
	db = conn
	return db
}

func usageService(ctx context.Context) *usage.Service {
	conn := openStore(ctx)
	if conn == nil {
		return nil
	}
	return usage.NewService(store.NewLLMUsageRepository(conn))
}

func batchRunner(ctx context.Context, api ports.BatchAPI) *app.BatchRunner {
	var jobs ports.JobRepository
	if conn := openStore(ctx); conn != nil {
		jobs = store.NewJobRepository(conn)
	}
	return app.NewBatchRunner(api, jobs, cfg.Batch)
}

// chartFont registers the configured font once per command
func chartFont() {
	if cfg.Output.ChartFont == "" {
		return
	}
	if err := chart.RegisterFont(cfg.Output.ChartFont); err != nil {
		logger.Warn("[CLI] font %s not registered: %v", cfg.Output.ChartFont, err)
	}
}
