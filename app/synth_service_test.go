package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"abstkit/adapters/excel"
	"abstkit/ai"
	"abstkit/domain/batch"
	"abstkit/internal/errors"
	"abstkit/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func synthTable() *excel.Table {
	t := excel.NewTable("latest.xlsx", "課題管理番号", "対象疾患", "成果概要（日本語）")
	t.Append("P1", "新生物（悪性）", "がん 免疫 療法")
	t.Append("P2", "循環器", "心臓 手術")
	t.Append("P3", "新生物", "")
	t.Append("P4", "良性新生物", "遺伝子 解析 手法")
	t.Append("", "新生物", "ID なし")
	t.Append("P6", "新生物", strings.Repeat("長", 50))
	return t
}

func synthEmbedder(text string) []float32 {
	if strings.Contains(text, "がん") {
		return []float32{1, 0}
	}
	return []float32{0, 1}
}

func TestSynthService_Pool(t *testing.T) {
	svc := NewSynthService(nil, testkit.RuneCounter{}, nil, ai.NewPromptManager(""), "emb", t.TempDir())
	opts := DefaultSynthOptions()
	opts.MaxTextTokens = 20

	pool, err := svc.Pool(synthTable(), opts)
	require.NoError(t, err)
	assert.Equal(t, []SynthExample{{ID: "P1", Text: "がん 免疫 療法"}, {ID: "P4", Text: "遺伝子 解析 手法"}}, pool)

	opts.Keyword = "感染症"
	_, err = svc.Pool(synthTable(), opts)
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))
}

func TestSynthService_PlanRespectsBudget(t *testing.T) {
	svc := NewSynthService(nil, testkit.RuneCounter{}, nil, ai.NewPromptManager(""), "emb", t.TempDir())
	opts := DefaultSynthOptions()
	opts.Requests = 3
	// "- がん 免疫 療法\n" is 11 runes, so only one example fits
	opts.ContextBudget = 15
	pool := []SynthExample{{ID: "P1", Text: "がん 免疫 療法"}, {ID: "P4", Text: "遺伝子 解析 手法"}}

	plans, err := svc.Plan(pool, opts)
	require.NoError(t, err)
	require.Len(t, plans, 3)
	for i, p := range plans {
		assert.Len(t, p.Examples, 1)
		assert.Equal(t, p.CustomID, p.Request.CustomID)
		assert.Equal(t, []string{"batch00_req00", "batch00_req01", "batch00_req02"}[i], p.CustomID)
		content := p.Request.Body.Messages[0].Content
		assert.True(t, strings.HasPrefix(content, "以下は研究成果概要の実例です。"))
		assert.Contains(t, content, "- "+p.Examples[0].Text)
	}

	again, err := svc.Plan(pool, opts)
	require.NoError(t, err)
	for i := range plans {
		assert.Equal(t, plans[i].Examples, again[i].Examples, "same seed, same example sets")
	}
}

func TestSynthService_RunComparesAndWrites(t *testing.T) {
	cfg := testBatchConfig(t)
	api := testkit.NewFakeBatchAPI()
	api.Respond = func(req batch.Request) (string, int) {
		if req.CustomID == "batch00_req01" {
			return "server error", 500
		}
		return "がん 治療 療法", 200
	}
	runner := NewBatchRunner(api, nil, cfg)
	svc := NewSynthService(runner, testkit.RuneCounter{}, testkit.FuncEmbedder(synthEmbedder), ai.NewPromptManager(""), "emb", cfg.WorkDir)

	opts := DefaultSynthOptions()
	opts.Requests = 2
	pool := []SynthExample{{ID: "P1", Text: "がん 免疫 療法"}, {ID: "P4", Text: "遺伝子 解析 手法"}}
	plans, err := svc.Plan(pool, opts)
	require.NoError(t, err)

	results, err := svc.Run(context.Background(), plans, opts.MaxTextTokens)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Len(t, api.Created, 1, "all requests go in one batch")

	r := results[0]
	assert.Equal(t, "batch00_req00", r.CustomID)
	assert.Equal(t, "P1", r.Nearest.ID)
	assert.InDelta(t, 1.0, r.Similarity, 1e-9)
	assert.Equal(t, 2, r.Examples)
	assert.Equal(t, "  がん\n- 治療\n+ 免疫\n  療法", r.Diff)

	dir := filepath.Join(t.TempDir(), "outputs")
	require.NoError(t, WriteSynthResult(dir, "20250604_210215", r))
	txt, err := os.ReadFile(filepath.Join(dir, "20250604_210215_batch00_req00.txt"))
	require.NoError(t, err)
	assert.Equal(t, "がん 治療 療法", string(txt))

	table, err := excel.ReadTable(filepath.Join(dir, "20250604_210215_batch00_req00_比較.csv"))
	require.NoError(t, err)
	assert.Equal(t, SynthCompareHeaders, table.Headers)
	assert.Equal(t, "1", table.Rows[0]["類似度"])
	assert.Equal(t, "2", table.Rows[0]["参考件数"])
}
