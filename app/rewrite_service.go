package app

import (
	"context"
	"fmt"
	"strings"

	"abstkit/adapters/excel"
	"abstkit/ai"
	"abstkit/domain/batch"
	"abstkit/internal"
	"abstkit/internal/usage"
	"abstkit/models"
	"abstkit/ports"

	"github.com/google/uuid"
)

// RewriteErrorPrefix marks a cell whose rewrite call failed
const RewriteErrorPrefix = "エラー発生: "

// RewriteOptions selects what gets rewritten and how the output is laid out
type RewriteOptions struct {
	KeyColumns []string // written first, as-is
	Targets    []string // columns to rewrite
	Stages     []string // prompt names applied in order
	Exclude    []string // dropped from the trailing columns
	Model      string
	Limit      int // rows; 0 means all
}

// RewriteService rewrites text columns through a chain of system prompts
type RewriteService struct {
	llm         ports.LLMClient
	prompts     *ai.PromptManager
	usage       *usage.Service
	temperature float64
	maxTokens   int
	logger      *internal.Logger
}

// NewRewriteService creates a rewrite service; usage may be nil
func NewRewriteService(llm ports.LLMClient, prompts *ai.PromptManager, usageSvc *usage.Service, temperature float64, maxTokens int) *RewriteService {
	return &RewriteService{
		llm:         llm,
		prompts:     prompts,
		usage:       usageSvc,
		temperature: temperature,
		maxTokens:   maxTokens,
		logger:      internal.DefaultLogger,
	}
}

// displayName drops the （日本語） qualifier used by some exports
func displayName(col string) string {
	return strings.TrimSuffix(col, "（日本語）")
}

// RewriteHeaders lays out key columns, then before/after pairs per target,
// then every remaining column of t
func RewriteHeaders(t *excel.Table, opts RewriteOptions) []string {
	headers := append([]string(nil), opts.KeyColumns...)
	for _, col := range opts.Targets {
		name := displayName(col)
		headers = append(headers, "書き換え前："+name)
		if len(opts.Stages) == 1 {
			headers = append(headers, "書き換え後："+name)
			continue
		}
		for _, stage := range opts.Stages {
			headers = append(headers, fmt.Sprintf("書き換え後（%s）：%s", stage, name))
		}
	}

	skip := make(map[string]bool)
	for _, group := range [][]string{opts.KeyColumns, opts.Targets, opts.Exclude} {
		for _, c := range group {
			skip[c] = true
		}
	}
	for _, h := range t.Headers {
		if !skip[h] {
			headers = append(headers, h)
		}
	}
	return headers
}

// Chain runs text through each stage's system prompt. The first failure is
// returned as an error marker for that stage and later stages stay empty.
func (s *RewriteService) Chain(ctx context.Context, runID uuid.UUID, model string, systems []string, text string) []string {
	out := make([]string, len(systems))
	current := text
	for i, system := range systems {
		resp, err := s.llm.Chat(ctx, ports.ChatRequest{
			Model:       model,
			Messages:    []batch.Message{{Role: "system", Content: system}, {Role: "user", Content: current}},
			Temperature: &s.temperature,
			MaxTokens:   s.maxTokens,
		})
		if err != nil {
			s.logger.Warn("[RewriteService] stage %d failed: %v", i+1, err)
			out[i] = RewriteErrorPrefix + err.Error()
			return out
		}
		s.usage.RecordUsage(ctx, runID, models.OpRewrite, resp.Usage)
		current = strings.TrimSpace(resp.Content)
		out[i] = current
	}
	return out
}

// Run rewrites every row of t and appends each finished row to w. It returns
// the number of rows written.
func (s *RewriteService) Run(ctx context.Context, t *excel.Table, opts RewriteOptions, w *excel.CSVAppender) (int, error) {
	if err := t.RequireColumns(opts.Targets...); err != nil {
		return 0, err
	}
	systems := make([]string, len(opts.Stages))
	for i, stage := range opts.Stages {
		p, err := s.prompts.LoadPrompt(stage)
		if err != nil {
			return 0, err
		}
		systems[i] = p
	}

	headers := RewriteHeaders(t, opts)
	runID := uuid.New()
	rows := t.Rows
	if opts.Limit > 0 && opts.Limit < len(rows) {
		rows = rows[:opts.Limit]
	}
	s.logger.Info("[RewriteService] run %s: %d rows, %d targets, %d stages", runID, len(rows), len(opts.Targets), len(opts.Stages))

	written := 0
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		out := make(excel.Row, len(headers))
		for k, v := range row {
			out[k] = v
		}
		for _, col := range opts.Targets {
			name := displayName(col)
			before := row[col]
			out["書き換え前："+name] = before

			var results []string
			if strings.TrimSpace(before) == "" {
				results = make([]string, len(systems))
			} else {
				results = s.Chain(ctx, runID, opts.Model, systems, before)
			}
			if len(opts.Stages) == 1 {
				out["書き換え後："+name] = results[0]
				continue
			}
			for j, stage := range opts.Stages {
				out[fmt.Sprintf("書き換え後（%s）：%s", stage, name)] = results[j]
			}
		}

		record := make([]string, len(headers))
		for j, h := range headers {
			record[j] = out[h]
		}
		if err := w.Append(record); err != nil {
			return written, err
		}
		written++
		s.logger.Debug("[RewriteService] row %d/%d written", i+1, len(rows))
	}
	return written, nil
}
