package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"abstkit/internal/errors"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// Report accumulates a Markdown document
type Report struct {
	title string
	b     strings.Builder
}

// New starts a report with a level-1 title
func New(title string) *Report {
	r := &Report{title: title}
	r.Heading(1, title)
	return r
}

// Heading appends a heading of the given level
func (r *Report) Heading(level int, text string) {
	if level < 1 {
		level = 1
	}
	fmt.Fprintf(&r.b, "%s %s\n\n", strings.Repeat("#", level), text)
}

// Line appends a paragraph line
func (r *Report) Line(format string, args ...interface{}) {
	fmt.Fprintf(&r.b, format+"\n\n", args...)
}

// Bullet appends a list item
func (r *Report) Bullet(format string, args ...interface{}) {
	fmt.Fprintf(&r.b, "- "+format+"\n", args...)
}

// EndList terminates a bullet list
func (r *Report) EndList() {
	r.b.WriteString("\n")
}

// Table appends a pipe table
func (r *Report) Table(headers []string, rows [][]string) {
	r.b.WriteString("| " + strings.Join(escapeCells(headers), " | ") + " |\n")
	seps := make([]string, len(headers))
	for i := range seps {
		seps[i] = "---"
	}
	r.b.WriteString("| " + strings.Join(seps, " | ") + " |\n")
	for _, row := range rows {
		r.b.WriteString("| " + strings.Join(escapeCells(row), " | ") + " |\n")
	}
	r.b.WriteString("\n")
}

// Markdown returns the document source
func (r *Report) Markdown() string {
	return r.b.String()
}

// HTML renders the document as a complete HTML page
func (r *Report) HTML() []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	doc := p.Parse([]byte(r.Markdown()))
	renderer := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags | html.CompletePage,
		Title: r.title,
	})
	return markdown.Render(doc, renderer)
}

// Save writes path (Markdown) and, when withHTML, the same name with .html
func (r *Report) Save(path string, withHTML bool) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "failed to create %s", dir)
		}
	}
	if err := os.WriteFile(path, []byte(r.Markdown()), 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	if withHTML {
		htmlPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".html"
		if err := os.WriteFile(htmlPath, r.HTML(), 0o644); err != nil {
			return errors.Wrapf(err, "failed to write %s", htmlPath)
		}
	}
	return nil
}

func escapeCells(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		c = strings.ReplaceAll(c, "|", `\|`)
		out[i] = strings.ReplaceAll(c, "\n", " ")
	}
	return out
}
