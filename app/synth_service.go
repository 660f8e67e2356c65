package app

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"abstkit/adapters/excel"
	"abstkit/ai"
	"abstkit/domain/batch"
	"abstkit/internal"
	"abstkit/internal/errors"
	"abstkit/internal/similarity"
	"abstkit/ports"
)

// SynthCompareHeaders is the header row of each comparison CSV
var SynthCompareHeaders = []string{"リクエストID", "生成された成果概要", "最も類似した成果概要", "課題管理番号", "類似度", "差分", "参考件数"}

// SynthOptions selects the example pool and shapes the requests
type SynthOptions struct {
	FilterColumn  string
	Keyword       string
	TextColumn    string
	IDColumn      string
	Requests      int
	Seed          int64
	MaxTextTokens int // longer examples are left out of the pool; also the embedding cut
	ContextBudget int // example tokens per request
	Model         string
	MaxTokens     int
}

// DefaultSynthOptions mirrors the neoplasm abstract run
func DefaultSynthOptions() SynthOptions {
	return SynthOptions{
		FilterColumn:  "対象疾患",
		Keyword:       "新生物",
		TextColumn:    "成果概要（日本語）",
		IDColumn:      "課題管理番号",
		Requests:      10,
		Seed:          1,
		MaxTextTokens: 8192,
		ContextBudget: 125000,
		Model:         "gpt-4.1-mini",
		MaxTokens:     2000,
	}
}

// SynthExample is one real abstract offered as an example
type SynthExample struct {
	ID   string
	Text string
}

// SynthRequest is a planned request and the examples it carries
type SynthRequest struct {
	CustomID string
	Examples []SynthExample
	Request  batch.Request
}

// SynthResult compares one generated abstract with its closest example
type SynthResult struct {
	CustomID   string
	Generated  string
	Nearest    SynthExample
	Similarity float64
	Diff       string
	Examples   int
}

// Record renders the comparison CSV row
func (r SynthResult) Record() []string {
	return []string{
		r.CustomID,
		r.Generated,
		r.Nearest.Text,
		r.Nearest.ID,
		strconv.FormatFloat(r.Similarity, 'f', -1, 64),
		r.Diff,
		strconv.Itoa(r.Examples),
	}
}

// SynthService generates fictitious abstracts from random example sets and
// measures how close each one stays to its sources
type SynthService struct {
	runner     *BatchRunner
	counter    ports.TokenCounter
	embedder   ports.Embedder
	prompts    *ai.PromptManager
	embedModel string
	workDir    string
	logger     *internal.Logger
}

// NewSynthService creates the service
func NewSynthService(runner *BatchRunner, counter ports.TokenCounter, embedder ports.Embedder, prompts *ai.PromptManager, embedModel, workDir string) *SynthService {
	return &SynthService{
		runner:     runner,
		counter:    counter,
		embedder:   embedder,
		prompts:    prompts,
		embedModel: embedModel,
		workDir:    workDir,
		logger:     internal.DefaultLogger,
	}
}

// Pool keeps rows whose filter column contains the keyword, with a non-blank
// text and ID, and whose text fits MaxTextTokens
func (s *SynthService) Pool(t *excel.Table, opts SynthOptions) ([]SynthExample, error) {
	if err := t.RequireColumns(opts.FilterColumn, opts.TextColumn, opts.IDColumn); err != nil {
		return nil, err
	}
	var pool []SynthExample
	for _, r := range t.Rows {
		if !strings.Contains(r[opts.FilterColumn], opts.Keyword) {
			continue
		}
		text := strings.TrimSpace(r[opts.TextColumn])
		id := strings.TrimSpace(r[opts.IDColumn])
		if text == "" || id == "" {
			continue
		}
		if s.counter.Count(text) > opts.MaxTextTokens {
			continue
		}
		pool = append(pool, SynthExample{ID: id, Text: text})
	}
	if len(pool) == 0 {
		return nil, errors.NotFound(fmt.Sprintf("rows matching %q in %s", opts.Keyword, opts.FilterColumn))
	}
	return pool, nil
}

// Plan shuffles the pool before each request and fills it with "- text"
// lines until the next one would pass the context budget
func (s *SynthService) Plan(pool []SynthExample, opts SynthOptions) ([]SynthRequest, error) {
	rng := rand.New(rand.NewSource(opts.Seed))
	shuffled := append([]SynthExample(nil), pool...)

	plans := make([]SynthRequest, 0, opts.Requests)
	for i := 0; i < opts.Requests; i++ {
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		var sb strings.Builder
		var used []SynthExample
		total := 0
		for _, ex := range shuffled {
			line := "- " + ex.Text + "\n"
			n := s.counter.Count(line)
			if total+n > opts.ContextBudget {
				break
			}
			sb.WriteString(line)
			total += n
			used = append(used, ex)
		}

		prompt, err := s.prompts.RenderPrompt(ai.PromptSyntheticAbstract, map[string]string{
			"EXAMPLES": strings.TrimSpace(sb.String()),
		})
		if err != nil {
			return nil, err
		}
		id := fmt.Sprintf("batch%02d_req%02d", 0, i)
		plans = append(plans, SynthRequest{
			CustomID: id,
			Examples: used,
			Request: batch.NewChatRequest(id, opts.Model,
				[]batch.Message{{Role: "user", Content: prompt}}, opts.MaxTokens),
		})
	}
	return plans, nil
}

// Run submits every plan as one batch, waits for it and compares each
// generated abstract with the examples its request carried. Requests that
// failed or carried no examples are skipped.
func (s *SynthService) Run(ctx context.Context, plans []SynthRequest, maxTextTokens int) ([]SynthResult, error) {
	reqs := make([]batch.Request, len(plans))
	byID := make(map[string]SynthRequest, len(plans))
	for i, p := range plans {
		reqs[i] = p.Request
		byID[p.CustomID] = p
	}

	job, _, err := s.runner.Run(ctx, filepath.Join(s.workDir, "batch_00.jsonl"), "synthetic-abstracts", reqs)
	if err != nil {
		return nil, err
	}
	outputs, err := s.runner.Collect(ctx, []string{job.BatchID})
	if err != nil {
		return nil, err
	}

	var results []SynthResult
	for _, o := range outputs {
		if !o.OK() || o.Content == "" {
			s.logger.Warn("[SynthService] skipping %s: %s", o.CustomID, o.Error)
			continue
		}
		plan, ok := byID[o.CustomID]
		if !ok || len(plan.Examples) == 0 {
			s.logger.Warn("[SynthService] no examples recorded for %s", o.CustomID)
			continue
		}
		res, err := s.Compare(ctx, o.CustomID, o.Content, plan.Examples, maxTextTokens)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// Compare embeds the generated text and the examples, picks the most similar
// example and diffs the two word by word
func (s *SynthService) Compare(ctx context.Context, customID, generated string, examples []SynthExample, maxTextTokens int) (SynthResult, error) {
	inputs := make([]string, 0, len(examples)+1)
	inputs = append(inputs, s.counter.Truncate(generated, maxTextTokens))
	for _, ex := range examples {
		inputs = append(inputs, s.counter.Truncate(ex.Text, maxTextTokens))
	}
	vectors, err := s.embedder.Embed(ctx, s.embedModel, inputs)
	if err != nil {
		return SynthResult{}, errors.Wrapf(err, "failed to embed %s", customID)
	}
	if len(vectors) != len(inputs) {
		return SynthResult{}, errors.InvalidInput(fmt.Sprintf("expected %d embeddings, got %d", len(inputs), len(vectors)))
	}

	query := similarity.Float64s(vectors[0])
	candidates := make([][]float64, len(examples))
	for i := range examples {
		candidates[i] = similarity.Float64s(vectors[i+1])
	}
	idx, score, err := similarity.Nearest(query, candidates)
	if err != nil {
		return SynthResult{}, err
	}
	nearest := examples[idx]
	return SynthResult{
		CustomID:   customID,
		Generated:  generated,
		Nearest:    nearest,
		Similarity: score,
		Diff:       similarity.WordDiff(generated, nearest.Text),
		Examples:   len(examples),
	}, nil
}

// WriteSynthResult writes {stamp}_{id}.txt and {stamp}_{id}_比較.csv into dir
func WriteSynthResult(dir, stamp string, r SynthResult) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create %s", dir)
	}
	txt := filepath.Join(dir, fmt.Sprintf("%s_%s.txt", stamp, r.CustomID))
	if err := os.WriteFile(txt, []byte(r.Generated), 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %s", txt)
	}
	csvPath := filepath.Join(dir, fmt.Sprintf("%s_%s_比較.csv", stamp, r.CustomID))
	return excel.WriteCSV(csvPath, SynthCompareHeaders, [][]string{r.Record()})
}
