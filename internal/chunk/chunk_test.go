package chunk

import (
	"testing"

	"abstkit/adapters/excel"
	"abstkit/internal/errors"
	"abstkit/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPack(t *testing.T) {
	counter := testkit.RuneCounter{}

	tests := []struct {
		name   string
		values []string
		max    int
		want   [][]string
	}{
		{
			name:   "fits in one chunk",
			values: []string{"ab", "cd"},
			max:    4,
			want:   [][]string{{"ab", "cd"}},
		},
		{
			name:   "splits when the next value overflows",
			values: []string{"abc", "de", "f"},
			max:    4,
			want:   [][]string{{"abc"}, {"de", "f"}},
		},
		{
			name:   "oversized value stands alone without an empty chunk",
			values: []string{"abcdef", "g"},
			max:    4,
			want:   [][]string{{"abcdef"}, {"g"}},
		},
		{
			name:   "no values",
			values: nil,
			max:    4,
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := Pack(tt.values, counter, tt.max)
			var got [][]string
			for _, c := range chunks {
				got = append(got, c.Items)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChunk_Text(t *testing.T) {
	c := Pack([]string{"一", "二"}, testkit.RuneCounter{}, 10)[0]
	assert.Equal(t, "一\n二", c.Text())
	assert.Equal(t, 2, c.Tokens)
}

func TestUniqueNonBlank(t *testing.T) {
	got := UniqueNonBlank([]string{"b", " ", "a", "b", "", "c"})
	assert.Equal(t, []string{"b", "a", "c"}, got)
}

func TestCombineColumns(t *testing.T) {
	table := excel.NewTable("in.csv", "研究概要", "研究目的")
	table.Append("概要A", "目的A")
	table.Append("概要A", "目的A")
	table.Append("", "目的B")
	table.Append("", "")

	combined, err := CombineColumns(table, []string{"研究概要", "研究目的"})
	require.NoError(t, err)
	assert.Equal(t, []string{"概要A 目的A", "目的B"}, combined)

	_, err = CombineColumns(table, []string{"研究方法"})
	assert.Equal(t, errors.CodeMissingColumn, errors.GetCode(err))
}

func TestBuildTokenReport(t *testing.T) {
	r := BuildTokenReport("in.csv", []string{"aaaa", "bb", "cc"}, testkit.RuneCounter{}, 4)

	assert.Equal(t, 3, r.UniqueCount)
	assert.Equal(t, 8, r.TotalTokens)
	require.Len(t, r.Lists, 2)

	md := r.Render().Markdown()
	assert.Contains(t, md, "トークン4以内に収まるリスト数: 2")
	assert.Contains(t, md, "List 2: 2項目, 合計トークン数 = 4")
}
