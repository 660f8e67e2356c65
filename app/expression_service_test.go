package app

import (
	"context"
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

func TestParseExpressions(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{"plain lines", "頭が痛い\n\nお腹が張る\n熱っぽい\n余分な行", []string{"頭が痛い", "お腹が張る", "熱っぽい"}},
		{"bullets and quotes", "- 「頭が痛い」\n・\"めまいがする\"", []string{"頭が痛い", "めまいがする", ""}},
		{"numbered single line", "1. 頭が痛い 2. 吐き気がする 3. 寒気がする", []string{"頭が痛い", "吐き気がする", "寒気がする"}},
		{"bullet-only line keeps its slot", "・\n- 頭が痛い\n「」", []string{"", "頭が痛い", ""}},
		{"empty", "  ", []string{"", "", ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseExpressions(tt.content, 3))
		})
	}
}

func TestExpressionRows_Filters(t *testing.T) {
	table := excel.NewTable("dict.csv", "行ID", "ID", "出現形", "正規形", "TREE", "正規形_flag")
	table.Append("1", "A", "頭痛", "頭痛", "T1", "0")
	table.Append("2", "B", "", "腹痛", "", "")
	table.Append("3", "C", "めまい", "-1", "", "")
	table.Append("4", "D", "発熱", "ERR", "", "")
	table.Append("5", "E", "咳", "咳嗽", "T2", "1")

	rows, err := ExpressionRows(table)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, ExpressionRow{RowID: "1", ID: "A", Surface: "頭痛", Normalized: "頭痛", Tree: "T1", Flag: "0"}, rows[0])
	assert.Equal(t, "5", rows[1].RowID)

	_, err = ExpressionRows(excel.NewTable("x.csv", "出現形"))
	assert.Equal(t, errors.CodeMissingColumn, errors.GetCode(err))
}

func TestExpressionService_Generate(t *testing.T) {
	cfg := testBatchConfig(t)
	api := testkit.NewFakeBatchAPI(
		[]batch.Status{batch.StatusCompleted},
		[]batch.Status{batch.StatusExpired},
	)
	api.Respond = func(req batch.Request) (string, int) {
		assert.Equal(t, "あなたは高齢の患者です。", req.Body.Messages[0].Content)
		if strings.HasPrefix(req.CustomID, "request-2-") {
			return "rate limited", 429
		}
		return "ずきずきする\nこめかみが痛い\n朝がつらい", 200
	}
	runner := NewBatchRunner(api, nil, cfg)
	svc := NewExpressionService(runner, ai.NewPromptManager(""), "gpt-4.1-mini", 2000, cfg.WorkDir).WithSliceSize(2)

	rows := []ExpressionRow{
		{RowID: "1", ID: "A", Surface: "頭痛", Normalized: "頭痛"},
		{RowID: "2", ID: "B", Surface: "腹痛", Normalized: "腹痛"},
		{RowID: "3", ID: "C", Surface: "咳", Normalized: "咳嗽"},
	}
	reqs, err := svc.Requests(rows[:1], "高齢の患者", 0)
	require.NoError(t, err)
	assert.Equal(t, "request-1-0", reqs[0].CustomID)
	assert.Contains(t, reqs[0].Body.Messages[1].Content, "出現形: 頭痛")

	records, err := svc.Generate(context.Background(), rows, "高齢の患者")
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Len(t, api.Created, 2)

	assert.Equal(t, []string{"1", "A", "頭痛", "頭痛", "", "", "ずきずきする", "こめかみが痛い", "朝がつらい"}, records[0])
	for _, r := range records[1:] {
		require.Len(t, r, len(ExpressionHeaders))
		for _, out := range r[6:] {
			assert.True(t, strings.HasPrefix(out, "ERROR: "), out)
		}
	}
	assert.Contains(t, records[1][6], "rate limited")
	assert.Equal(t, "20250626_1200_高齢の患者_患者表現.csv", ExpressionFileName("20250626_1200", "高齢の患者"))
}

func TestExpressionService_GenerateMissingOutput(t *testing.T) {
	cfg := testBatchConfig(t)
	api := testkit.NewFakeBatchAPI()
	api.Respond = func(req batch.Request) (string, int) {
		if req.CustomID == "request-2-1" {
			return "", -1
		}
		return "・\n- 頭が痛い", 200
	}
	runner := NewBatchRunner(api, nil, cfg)
	svc := NewExpressionService(runner, ai.NewPromptManager(""), "gpt-4.1-mini", 2000, cfg.WorkDir)

	records, err := svc.Generate(context.Background(), []ExpressionRow{
		{RowID: "1", ID: "A", Surface: "頭痛", Normalized: "頭痛"},
		{RowID: "2", ID: "B", Surface: "腹痛", Normalized: "腹痛"},
	}, "若い患者")
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, []string{"", "頭が痛い", ""}, records[0][6:])
	assert.Equal(t, []string{"ERROR: Unknown error", "ERROR: Unknown error", "ERROR: Unknown error"}, records[1][6:])
}
