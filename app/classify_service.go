package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"abstkit/adapters/excel"
	"abstkit/ai"
	"abstkit/domain/batch"
	"abstkit/internal"
	"abstkit/internal/errors"
	"abstkit/internal/usage"
	"abstkit/models"
	"abstkit/ports"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// ClassifyErrorLabel replaces the labels of cells whose call failed
const ClassifyErrorLabel = "エラー"

// ClassifyHeaders is the header row of a classification result
var ClassifyHeaders = []string{"セルの内容", "分類ラベル"}

// DefaultRelationshipLabels are the labels of the built-in task
var DefaultRelationshipLabels = []string{"パートナー", "家族", "ペット", "友人", "同僚", "それ以外の人物", "AI"}

// ClassifyTask describes a labelling job
type ClassifyTask struct {
	Name         string   `yaml:"name"`
	SystemPrompt string   `yaml:"system_prompt,omitempty"`
	Labels       []string `yaml:"labels"`
	NoneLabel    string   `yaml:"none_label,omitempty"`
	ChunkSize    int      `yaml:"chunk_size,omitempty"`
}

// DefaultClassifyTask is relationship labelling with the built-in prompt
func DefaultClassifyTask(prompts *ai.PromptManager) (*ClassifyTask, error) {
	task := &ClassifyTask{
		Name:      "relationship",
		Labels:    DefaultRelationshipLabels,
		NoneLabel: "登場なし",
		ChunkSize: 100,
	}
	return task, task.resolvePrompt(prompts)
}

// LoadClassifyTask reads a YAML task. A task without its own system prompt
// gets the built-in labelling prompt filled with its labels.
func LoadClassifyTask(path string, prompts *ai.PromptManager) (*ClassifyTask, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read task %s", path)
	}
	var task ClassifyTask
	if err := yaml.Unmarshal(data, &task); err != nil {
		return nil, errors.WithCode(errors.CodeInvalidInput, errors.Wrapf(err, "invalid task %s", path))
	}
	if task.SystemPrompt == "" && len(task.Labels) == 0 {
		return nil, errors.InvalidInput(fmt.Sprintf("task %s needs labels or a system prompt", path))
	}
	if task.NoneLabel == "" {
		task.NoneLabel = "登場なし"
	}
	if task.ChunkSize <= 0 {
		task.ChunkSize = 100
	}
	return &task, task.resolvePrompt(prompts)
}

func (t *ClassifyTask) resolvePrompt(prompts *ai.PromptManager) error {
	if t.SystemPrompt != "" {
		return nil
	}
	all := append(append([]string(nil), t.Labels...), t.NoneLabel)
	p, err := prompts.RenderPrompt(ai.PromptRelationshipLabels, map[string]string{
		"LABELS":     strings.Join(all, "／"),
		"NONE_LABEL": t.NoneLabel,
	})
	if err != nil {
		return err
	}
	t.SystemPrompt = p
	return nil
}

// NormalizeLabels folds full-width forms, treats commas as separators and
// joins the labels with ","
func NormalizeLabels(s string) string {
	s = norm.NFKC.String(s)
	return strings.Join(strings.Fields(strings.ReplaceAll(s, ",", " ")), ",")
}

// ClassifyOptions controls a classification run
type ClassifyOptions struct {
	Model    string
	Chunked  bool
	Interval time.Duration // pause after each chunk
	Limit    int           // cells per column; 0 means all
	Workers  int
}

// LabelledCell is one classified cell
type LabelledCell struct {
	Content string
	Labels  string
}

// ClassifyService labels spreadsheet cells with an LLM
type ClassifyService struct {
	llm    ports.LLMClient
	usage  *usage.Service
	task   *ClassifyTask
	logger *internal.Logger
}

// NewClassifyService creates a classification service; usage may be nil
func NewClassifyService(llm ports.LLMClient, usageSvc *usage.Service, task *ClassifyTask) *ClassifyService {
	return &ClassifyService{llm: llm, usage: usageSvc, task: task, logger: internal.DefaultLogger}
}

func (s *ClassifyService) call(ctx context.Context, runID uuid.UUID, model, content string) (string, error) {
	resp, err := s.llm.Chat(ctx, ports.ChatRequest{
		Model:    model,
		Messages: []batch.Message{{Role: "system", Content: s.task.SystemPrompt}, {Role: "user", Content: content}},
	})
	if err != nil {
		return "", err
	}
	s.usage.RecordUsage(ctx, runID, models.OpClassification, resp.Usage)
	return strings.TrimSpace(resp.Content), nil
}

// ClassifyCell labels a single cell; failures yield the error label
func (s *ClassifyService) ClassifyCell(ctx context.Context, runID uuid.UUID, model, cell string) string {
	out, err := s.call(ctx, runID, model, cell)
	if err != nil {
		s.logger.Warn("[ClassifyService] cell failed: %v", err)
		return ClassifyErrorLabel
	}
	return NormalizeLabels(out)
}

// ClassifyChunk sends cells one per line and maps reply line i to cell i.
// Missing reply lines and failed calls yield the error label.
func (s *ClassifyService) ClassifyChunk(ctx context.Context, runID uuid.UUID, model string, cells []string) []string {
	labels := make([]string, len(cells))
	for i := range labels {
		labels[i] = ClassifyErrorLabel
	}

	flat := make([]string, len(cells))
	for i, c := range cells {
		flat[i] = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(c)
	}
	out, err := s.call(ctx, runID, model, strings.Join(flat, "\n"))
	if err != nil {
		s.logger.Warn("[ClassifyService] chunk of %d failed: %v", len(cells), err)
		return labels
	}
	lines := strings.Split(out, "\n")
	for i := 0; i < len(cells) && i < len(lines); i++ {
		labels[i] = NormalizeLabels(lines[i])
	}
	if len(lines) < len(cells) {
		s.logger.Warn("[ClassifyService] %d replies for %d cells", len(lines), len(cells))
	}
	return labels
}

// ClassifyColumn labels the non-blank cells of one column in order
func (s *ClassifyService) ClassifyColumn(ctx context.Context, runID uuid.UUID, cells []string, opts ClassifyOptions) ([]LabelledCell, error) {
	if opts.Limit > 0 && opts.Limit < len(cells) {
		cells = cells[:opts.Limit]
	}
	out := make([]LabelledCell, 0, len(cells))
	if !opts.Chunked {
		for _, c := range cells {
			if err := ctx.Err(); err != nil {
				return out, err
			}
			out = append(out, LabelledCell{Content: c, Labels: s.ClassifyCell(ctx, runID, opts.Model, c)})
		}
		return out, nil
	}

	size := s.task.ChunkSize
	if size <= 0 {
		size = 100
	}
	for start := 0; start < len(cells); start += size {
		end := start + size
		if end > len(cells) {
			end = len(cells)
		}
		chunk := cells[start:end]
		labels := s.ClassifyChunk(ctx, runID, opts.Model, chunk)
		for i, c := range chunk {
			out = append(out, LabelledCell{Content: c, Labels: labels[i]})
		}
		if err := sleep(ctx, opts.Interval); err != nil {
			return out, err
		}
	}
	return out, nil
}

// ClassifyFileName is {file}-{col}.csv
func ClassifyFileName(inputPath, column string) string {
	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	return fmt.Sprintf("%s-%s.csv", base, SafeColumnName(column))
}

// SafeColumnName keeps a column name usable as part of a file name
func SafeColumnName(col string) string {
	return strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(col)
}

// ClassifyTable labels every column with at least one non-blank cell, up to
// opts.Workers columns at a time, and writes one CSV per column into outDir.
// Returns the written paths in column order.
func (s *ClassifyService) ClassifyTable(ctx context.Context, t *excel.Table, outDir string, opts ClassifyOptions) ([]string, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = 3
	}
	runID := uuid.New()

	var columns []string
	for _, col := range t.Headers {
		if len(t.NonEmpty(col)) > 0 {
			columns = append(columns, col)
		}
	}
	s.logger.Info("[ClassifyService] %s: %d columns, %d workers", t.Source, len(columns), workers)

	paths := make([]string, len(columns))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, col := range columns {
		i, col := i, col
		g.Go(func() error {
			cells := t.NonEmpty(col)
			labelled, err := s.ClassifyColumn(gctx, runID, cells, opts)
			if err != nil {
				return errors.Wrapf(err, "column %s", col)
			}
			rows := make([][]string, len(labelled))
			for j, l := range labelled {
				rows[j] = []string{l.Content, l.Labels}
			}
			path := filepath.Join(outDir, ClassifyFileName(t.Source, col))
			if err := excel.WriteCSV(path, ClassifyHeaders, rows); err != nil {
				return err
			}
			paths[i] = path
			s.logger.Info("[ClassifyService] wrote %s (%d cells)", path, len(rows))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}
