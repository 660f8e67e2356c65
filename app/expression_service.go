package app

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"abstkit/adapters/excel"
	"abstkit/ai"
	"abstkit/domain/batch"
	"abstkit/internal"
	"abstkit/internal/errors"
)

// ExpressionHeaders is the header row of the patient expression output
var ExpressionHeaders = []string{"行ID", "ID", "出現形", "正規形", "TREE", "正規形_flag", "出力1", "出力2", "出力3"}

// expressionsPerRow is how many phrasings each dictionary row asks for
const expressionsPerRow = 3

// DefaultExpressionSlice is the number of rows per submitted batch
const DefaultExpressionSlice = 150

// ExpressionRow is one symptom dictionary entry
type ExpressionRow struct {
	RowID      string
	ID         string
	Surface    string // 出現形
	Normalized string // 正規形
	Tree       string
	Flag       string
}

// ExpressionRows keeps rows with a surface and a usable normalized form
func ExpressionRows(t *excel.Table) ([]ExpressionRow, error) {
	if err := t.RequireColumns("出現形", "正規形"); err != nil {
		return nil, err
	}
	var rows []ExpressionRow
	for _, r := range t.Rows {
		surface := strings.TrimSpace(r["出現形"])
		normalized := strings.TrimSpace(r["正規形"])
		if surface == "" || normalized == "" || normalized == "-1" || normalized == "ERR" {
			continue
		}
		rows = append(rows, ExpressionRow{
			RowID:      r["行ID"],
			ID:         r["ID"],
			Surface:    surface,
			Normalized: normalized,
			Tree:       r["TREE"],
			Flag:       r["正規形_flag"],
		})
	}
	return rows, nil
}

var (
	numberedItem = regexp.MustCompile(`\s*\d+\.\s*`)
	hasNumbered  = regexp.MustCompile(`\d+\.`)
)

const expressionTrim = "・- 「」\""

// ParseExpressions pulls up to n phrasings out of a reply, one per non-blank
// line with bullet and quote marks trimmed. A lone line holding a numbered
// list is split on the numbers. The result is padded with blanks to n.
func ParseExpressions(content string, n int) []string {
	var lines []string
	for _, l := range strings.Split(strings.TrimSpace(content), "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) == 1 && hasNumbered.MatchString(lines[0]) {
		lines = numberedItem.Split(lines[0], -1)
	}

	out := make([]string, 0, n)
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		if len(out) == n {
			break
		}
		// a line of only bullet characters still takes a slot
		out = append(out, strings.TrimSpace(strings.Trim(l, expressionTrim)))
	}
	for len(out) < n {
		out = append(out, "")
	}
	return out
}

// ExpressionFileName is {stamp}_{persona}_患者表現.csv
func ExpressionFileName(stamp, persona string) string {
	return fmt.Sprintf("%s_%s_患者表現.csv", stamp, persona)
}

// ExpressionService generates lay symptom descriptions through the Batch API
type ExpressionService struct {
	runner    *BatchRunner
	prompts   *ai.PromptManager
	model     string
	maxTokens int
	workDir   string
	slice     int
	logger    *internal.Logger
}

// NewExpressionService creates the service; batches are written under workDir
func NewExpressionService(runner *BatchRunner, prompts *ai.PromptManager, model string, maxTokens int, workDir string) *ExpressionService {
	return &ExpressionService{
		runner:    runner,
		prompts:   prompts,
		model:     model,
		maxTokens: maxTokens,
		workDir:   workDir,
		slice:     DefaultExpressionSlice,
		logger:    internal.DefaultLogger,
	}
}

// WithSliceSize overrides the rows per batch
func (s *ExpressionService) WithSliceSize(n int) *ExpressionService {
	if n > 0 {
		s.slice = n
	}
	return s
}

func expressionID(row ExpressionRow, index int) string {
	return fmt.Sprintf("request-%s-%d", row.RowID, index)
}

// Requests builds one request per row; index is the row's position in rows
func (s *ExpressionService) Requests(rows []ExpressionRow, persona string, offset int) ([]batch.Request, error) {
	system := fmt.Sprintf("あなたは%sです。", persona)
	reqs := make([]batch.Request, len(rows))
	for i, row := range rows {
		user, err := s.prompts.RenderPrompt(ai.PromptPatientExpression, map[string]string{
			"SURFACE":    row.Surface,
			"NORMALIZED": row.Normalized,
		})
		if err != nil {
			return nil, err
		}
		reqs[i] = batch.NewChatRequest(expressionID(row, offset+i), s.model,
			[]batch.Message{{Role: "system", Content: system}, {Role: "user", Content: user}}, s.maxTokens)
	}
	return reqs, nil
}

func errorOutputs(message string) []string {
	out := make([]string, expressionsPerRow)
	for i := range out {
		out[i] = "ERROR: " + message
	}
	return out
}

func (r ExpressionRow) record(outputs []string) []string {
	return append([]string{r.RowID, r.ID, r.Surface, r.Normalized, r.Tree, r.Flag}, outputs...)
}

// Generate submits rows in slices, waits for each batch and returns one
// output record per row in row order. Failed requests or batches produce
// ERROR: lines instead of aborting the run.
func (s *ExpressionService) Generate(ctx context.Context, rows []ExpressionRow, persona string) ([][]string, error) {
	records := make([][]string, 0, len(rows))
	total := (len(rows) + s.slice - 1) / s.slice
	for start := 0; start < len(rows); start += s.slice {
		end := start + s.slice
		if end > len(rows) {
			end = len(rows)
		}
		part := rows[start:end]
		n := start/s.slice + 1

		reqs, err := s.Requests(part, persona, start)
		if err != nil {
			return records, err
		}
		path := filepath.Join(s.workDir, fmt.Sprintf("expression_batch_%d.jsonl", n))
		job, _, err := s.runner.Run(ctx, path, fmt.Sprintf("expression-%d", n), reqs)
		if err != nil && !errors.Is(err, errors.CodeBatchFailed) {
			return records, err
		}

		outputs := make(map[string]batch.Output)
		if err == nil {
			collected, cerr := s.runner.Collect(ctx, []string{job.BatchID})
			if cerr != nil {
				return records, cerr
			}
			for _, o := range collected {
				outputs[o.CustomID] = o
			}
		} else {
			s.logger.Error("[ExpressionService] batch %d/%d failed: %v", n, total, err)
		}

		for i, row := range part {
			o, ok := outputs[expressionID(row, start+i)]
			switch {
			case err != nil:
				records = append(records, row.record(errorOutputs(err.Error())))
			case !ok:
				records = append(records, row.record(errorOutputs("Unknown error")))
			case !o.OK():
				msg := o.Error
				if msg == "" {
					msg = fmt.Sprintf("status %d", o.StatusCode)
				}
				records = append(records, row.record(errorOutputs(msg)))
			default:
				records = append(records, row.record(ParseExpressions(o.Content, expressionsPerRow)))
			}
		}
		s.logger.Info("[ExpressionService] batch %d/%d done (%d rows)", n, total, len(part))
	}
	return records, nil
}
