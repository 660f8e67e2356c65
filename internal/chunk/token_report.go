package chunk

import (
	"abstkit/internal/report"
	"abstkit/ports"
)

// TokenReport summarises how a set of texts packs into token-limited lists
type TokenReport struct {
	Source      string
	UniqueCount int
	TotalTokens int
	MaxTokens   int
	Lists       []Chunk
}

// BuildTokenReport counts and packs values
func BuildTokenReport(source string, values []string, counter ports.TokenCounter, max int) TokenReport {
	total := 0
	for _, v := range values {
		total += counter.Count(v)
	}
	return TokenReport{
		Source:      source,
		UniqueCount: len(values),
		TotalTokens: total,
		MaxTokens:   max,
		Lists:       Pack(values, counter, max),
	}
}

// Render lays the report out as Markdown
func (r TokenReport) Render() *report.Report {
	doc := report.New("トークンレポート: " + r.Source)
	doc.Bullet("ユニークな結合テキスト数: %d", r.UniqueCount)
	doc.Bullet("全結合テキストの合計トークン数: %d", r.TotalTokens)
	doc.Bullet("トークン%d以内に収まるリスト数: %d", r.MaxTokens, len(r.Lists))
	doc.EndList()

	doc.Heading(2, "リスト内訳")
	for i, list := range r.Lists {
		doc.Bullet("List %d: %d項目, 合計トークン数 = %d", i+1, len(list.Items), list.Tokens)
	}
	doc.EndList()

	doc.Line("全体のリスト数（分割されたリストの個数）: %d", len(r.Lists))
	return doc
}
