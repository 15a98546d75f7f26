package press

import (
	"fmt"
	"os"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"

	"github.com/mwinterhoff/presswerk/compose"
)

// proofWriter produces the editorial proof report that accompanies each
// artifact: layout decisions plus a markdown rendition of the composed
// document, reviewable without a PDF viewer.
type proofWriter struct {
	conv *converter.Converter
}

func newProofWriter() *proofWriter {
	return &proofWriter{
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

// write renders the proof to path. The report is best-effort: any failure
// is returned as a warning string (empty = ok) and never fails the job.
func (p *proofWriter) write(path string, in *inputs, tmpl *compose.GeneratedTemplate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Korrekturfahne: %s\n\n", in.issue.Title)
	fmt.Fprintf(&b, "Vorlage: %s %s\n\n", in.pack.Name, in.pack.Version)

	b.WriteString("| Artikel | Variante | Score | Schrift | Spalten |\n")
	b.WriteString("|---|---|---|---|---|\n")
	for _, it := range in.items {
		d := it.Decision
		fmt.Fprintf(&b, "| %s | %s | %d | %.1fpt / %.2f | %d |\n",
			it.Article.ArticleID, d.Variant.ID, d.Score, d.FontSize, d.LineHeight, d.Columns)
	}
	b.WriteString("\n---\n\n")

	md, err := p.conv.ConvertString(tmpl.HTML)
	if err != nil {
		return fmt.Sprintf("proof report: convert: %v", err)
	}
	b.WriteString(strings.TrimSpace(md))
	b.WriteString("\n")

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Sprintf("proof report: write: %v", err)
	}
	return ""
}
