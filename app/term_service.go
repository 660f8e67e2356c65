package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"abstkit/adapters/excel"
	"abstkit/ai"
	"abstkit/domain/batch"
	"abstkit/internal"
	"abstkit/internal/chunk"
	"abstkit/internal/config"
	"abstkit/internal/errors"
	"abstkit/ports"
)

// TermBatch is one Batch API submission worth of extraction requests
type TermBatch struct {
	Index    int
	Requests []batch.Request
	Tokens   int
}

// TermService extracts technical terms from table columns via the Batch API
type TermService struct {
	runner  *BatchRunner
	counter ports.TokenCounter
	prompts *ai.PromptManager
	model   string
	cfg     config.BatchConfig
	logger  *internal.Logger
}

// NewTermService creates a term extraction service
func NewTermService(runner *BatchRunner, counter ports.TokenCounter, prompts *ai.PromptManager, model string, cfg config.BatchConfig) *TermService {
	return &TermService{
		runner:  runner,
		counter: counter,
		prompts: prompts,
		model:   model,
		cfg:     cfg,
		logger:  internal.DefaultLogger,
	}
}

// Plan builds the request batches for the given columns. Missing columns are
// skipped with a warning. Batches are cut so the estimated input plus output
// tokens stay within the batch token budget.
func (s *TermService) Plan(t *excel.Table, columns []string) ([]TermBatch, error) {
	system, err := s.prompts.LoadPrompt(ai.PromptTermExtraction)
	if err != nil {
		return nil, err
	}

	type columnChunk struct {
		text   string
		column string
	}
	var all []columnChunk
	for _, col := range columns {
		if strings.TrimSpace(col) == "" {
			continue
		}
		if !t.HasColumn(col) {
			s.logger.Warn("[TermService] column %q not found in %s, skipping", col, t.Source)
			continue
		}
		values := chunk.UniqueNonBlank(t.Column(col))
		for _, c := range chunk.Pack(values, s.counter, s.cfg.MaxInputTokens) {
			all = append(all, columnChunk{text: c.Text(), column: col})
		}
	}

	var batches []TermBatch
	current := TermBatch{}
	for i, c := range all {
		estimate := s.counter.Count(c.text) + s.cfg.MaxOutputTokens
		if len(current.Requests) > 0 && current.Tokens+estimate > s.cfg.TokenBudget {
			batches = append(batches, current)
			current = TermBatch{Index: current.Index + 1}
		}
		req := batch.NewChatRequest(
			fmt.Sprintf("request-%d-%d-%s", current.Index, i, c.column),
			s.model,
			[]batch.Message{
				{Role: "system", Content: system},
				{Role: "user", Content: c.text},
			},
			s.cfg.MaxOutputTokens,
		)
		current.Requests = append(current.Requests, req)
		current.Tokens += estimate
	}
	if len(current.Requests) > 0 {
		batches = append(batches, current)
	}
	return batches, nil
}

// Submit writes each planned batch to WorkDir, submits it and waits for it
// before moving on. A batch that ends unsuccessfully is logged and the
// remaining batches still run.
func (s *TermService) Submit(ctx context.Context, batches []TermBatch) ([]*Job, error) {
	var jobs []*Job
	for _, b := range batches {
		path := filepath.Join(s.cfg.WorkDir, fmt.Sprintf("batch_%d.jsonl", b.Index))
		job, _, err := s.runner.Run(ctx, path, fmt.Sprintf("batch-%d", b.Index), b.Requests)
		if err != nil {
			if errors.Is(err, errors.CodeBatchFailed) {
				s.logger.Error("[TermService] batch %d not processed: %v", b.Index, err)
				jobs = append(jobs, job)
				continue
			}
			return jobs, err
		}
		s.logger.Info("[TermService] batch %d processed (%d requests)", b.Index, len(b.Requests))
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// CollectTerms gathers the outputs of every ledger batch and splits them on
// whitespace. Duplicates are kept.
func (s *TermService) CollectTerms(ctx context.Context) ([]string, error) {
	outputs, err := s.runner.CollectLedger(ctx)
	if err != nil {
		return nil, err
	}
	var terms []string
	for _, o := range outputs {
		if !o.OK() {
			s.logger.Warn("[TermService] %s: %s", o.CustomID, o.Error)
			continue
		}
		terms = append(terms, strings.Fields(o.Content)...)
	}
	return terms, nil
}

// WriteTerms writes terms as a single comma-joined line
func WriteTerms(path string, terms []string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "failed to create %s", dir)
		}
	}
	if err := os.WriteFile(path, []byte(strings.Join(terms, ",")), 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return nil
}

// TermsFileName is {stamp}_{base}_terms_only.csv
func TermsFileName(stamp, inputPath string) string {
	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	return fmt.Sprintf("%s_%s_terms_only.csv", stamp, base)
}
