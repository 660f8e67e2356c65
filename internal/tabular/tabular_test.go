package tabular

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"abstkit/adapters/excel"
	"abstkit/internal"
	"abstkit/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	table := excel.NewTable("in.csv", "研究年度", "概要")
	table.Append("2019/2020", "一行目\n二行目")
	table.Append("令和（元）", "b")
	table.Append("2019/2020", "c\r")
	table.Append("", "no year")

	dir := t.TempDir()
	written, err := Split(table, "研究年度", dir, "年度")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "年度_2019_2020.csv"),
		filepath.Join(dir, "年度_令和(元).csv"),
	}, written)

	back, err := excel.ReadTable(written[0])
	require.NoError(t, err)
	require.Len(t, back.Rows, 2)
	assert.Equal(t, "一行目 二行目", back.Rows[0]["概要"])

	_, err = Split(table, "年度", dir, "年度")
	assert.Equal(t, errors.CodeMissingColumn, errors.GetCode(err))
}

func TestJoin(t *testing.T) {
	left := excel.NewTable("l.csv", "課題管理番号", "成果概要", "年度")
	left.Append("A1", "sa", "2019")
	left.Append("B2", "sb", "2020")
	left.Append("C3", "sc", "2021")

	right := excel.NewTable("r.csv", "課題管理番号", "課題名", "年度")
	right.Append("B2", "tb", "R2")
	right.Append("A1", "ta", "R1")
	right.Append("A1", "ta2", "R1b")
	right.Append("Z9", "tz", "R9")

	tests := []struct {
		how  JoinType
		keys []string
	}{
		{InnerJoin, []string{"A1", "A1", "B2"}},
		{LeftJoin, []string{"A1", "A1", "B2", "C3"}},
		{OuterJoin, []string{"A1", "A1", "B2", "C3", "Z9"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.how), func(t *testing.T) {
			out, err := Join(left, right, "課題管理番号", tt.how)
			require.NoError(t, err)
			assert.Equal(t, []string{"課題管理番号", "成果概要", "年度_x", "課題名", "年度_y"}, out.Headers)
			assert.Equal(t, tt.keys, out.Column("課題管理番号"))
		})
	}

	out, _ := Join(left, right, "課題管理番号", InnerJoin)
	assert.Equal(t, []string{"ta", "ta2", "tb"}, out.Column("課題名"))
	assert.Equal(t, "2019", out.Rows[0]["年度_x"])
	assert.Equal(t, "R1", out.Rows[0]["年度_y"])

	_, err := ParseJoinType("cross")
	assert.Error(t, err)
}

func TestConcat(t *testing.T) {
	a := excel.NewTable("a", "x", "y")
	a.Append("1", "2")
	b := excel.NewTable("b", "y", "z")
	b.Append("3", "4")

	out := Concat([]*excel.Table{a, b})
	assert.Equal(t, []string{"x", "y", "z"}, out.Headers)
	assert.Equal(t, [][]string{{"1", "2", ""}, {"", "3", "4"}}, out.Records())
}

func TestProfile(t *testing.T) {
	table := excel.NewTable("/data/年度_2019.csv", "概要", "空")
	table.Append("あいう", "")
	table.Append("", "")
	table.Append("あいうえおか", "")
	table.Append("ab", "")

	profiles := Profile(table)
	require.Len(t, profiles, 2)

	p := profiles[0]
	assert.Equal(t, "年度_2019", p.File)
	assert.Equal(t, 4, p.Records)
	assert.Equal(t, 3, p.Present)
	assert.Equal(t, 1, p.Missing)
	assert.Equal(t, 25.0, p.MissingRate)
	assert.Equal(t, 2.75, p.MeanLen) // (3+0+6+2)/4
	assert.Equal(t, 0.0, p.MinLen)
	assert.Equal(t, 2.5, p.MedianLen)
	assert.Equal(t, 6.0, p.MaxLen)
	assert.InDelta(t, 2.5, p.StdDevLen, 1e-9)

	assert.Equal(t, 100.0, profiles[1].MissingRate)
	rec := p.Record()
	assert.Len(t, rec, len(ProfileHeaders))
	assert.Equal(t, "25", rec[5])

	single := excel.NewTable("s.csv", "c")
	single.Append("x")
	assert.True(t, math.IsNaN(Profile(single)[0].StdDevLen))
	assert.Equal(t, "", Profile(single)[0].Record()[7])
}

func TestMissingCounts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "book.xlsx")
	require.NoError(t, excel.WriteXLSX(path, "Sheet1", []string{"a", "b"}, [][]string{
		{"1", ""}, {"", ""}, {"3", "x"},
	}))

	counts := MissingCounts([]string{path, filepath.Join(dir, "missing.xlsx")}, 2, internal.NewNopLogger())
	require.Len(t, counts, 2)
	assert.Equal(t, MissingCount{File: "book.xlsx", Sheet: "Sheet1", Column: "a", Missing: 0}, counts[0])
	assert.Equal(t, 1, counts[1].Missing, "row limit keeps only the first two data rows")
	assert.Equal(t, []string{"book.xlsx", "Sheet1", "b", "1"}, MissingRecords(counts)[1])
}

func TestFilter(t *testing.T) {
	table := excel.NewTable("dict.xlsx", "出現形", "正規形", "正規形_flag", "TREE")
	table.Append("しこり", "腫瘤; 結節", "S", "R01")
	table.Append("ERR", "腫瘤", "A", "R02")
	table.Append("痛み", "-1;疼痛", "B", "R03")
	table.Append("かゆみ", "掻痒", "D", "R04")
	table.Append("熱", "発熱", "C", "")
	table.Append("咳", "咳嗽", "C", "C01")

	out, err := Filter(table, ExpressionFilter())
	require.NoError(t, err)
	assert.Equal(t, []string{"腫瘤", "結節", "疼痛"}, out.Column("正規形"))
	assert.Equal(t, []string{"しこり", "しこり", "痛み"}, out.Column("出現形"))

	_, err = Filter(excel.NewTable("x", "出現形"), ExpressionFilter())
	assert.Equal(t, errors.CodeMissingColumn, errors.GetCode(err))
}

func TestPairSentences(t *testing.T) {
	table := excel.NewTable("gen.xlsx", "ID", "生成された成果概要", "書き換え後（LLM）：成果概要")
	table.Append(" 7 ", "一文目。二文目。", "書き換え一。二。三。")

	out, err := PairSentences(table, "id", "生成された成果概要", "書き換え後（llm）：成果概要")
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"7-1", "一文目。", "書き換え一。"},
		{"7-2", "二文目。", "二。"},
		{"7-3", "", "三。"},
	}, out.Records())

	path := filepath.Join(t.TempDir(), "paired.xlsx")
	require.NoError(t, excel.WriteXLSX(path, "Sheet1", out.Headers, out.Records()))
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestSplitSentences(t *testing.T) {
	assert.Equal(t, []string{"a。", "b。"}, SplitSentences("a。 。b"))
	assert.Empty(t, SplitSentences(""))
}
