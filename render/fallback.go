package render

import (
	"bytes"
	"fmt"
	stdhtml "html"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/mwinterhoff/presswerk/compose"
)

// Fallback produces the deterministic standalone HTML artifact used when
// the paged renderer is unavailable: the composed document's body content
// under a diagnostic banner, with the master CSS inlined. Images stay as
// URLs; nothing is resolved over the network.
func Fallback(t *compose.GeneratedTemplate) (string, error) {
	body, err := extractBody(t.HTML)
	if err != nil {
		return "", fmt.Errorf("render: fallback: %w", err)
	}

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html lang=\"de\">\n<head>\n<meta charset=\"utf-8\">\n")
	b.WriteString("<title>Druckvorschau (HTML-Fallback)</title>\n<style>\n")
	b.WriteString(t.CSS)
	b.WriteString(bannerCSS)
	b.WriteString("</style>\n</head>\n<body>\n")

	writeBanner(&b, t)
	b.WriteString(body)
	b.WriteString("</body>\n</html>\n")
	return b.String(), nil
}

const bannerCSS = `
.fallback-banner { background: #fff3cd; border: 1pt solid #b8860b; padding: 4mm; margin-bottom: 6mm; font-family: monospace; font-size: 8pt; }
.fallback-banner h2 { font-size: 10pt; margin-bottom: 2mm; }
.fallback-banner table { border-collapse: collapse; width: 100%; }
.fallback-banner td, .fallback-banner th { border: 0.5pt solid #b8860b; padding: 1mm 2mm; text-align: left; }
`

// writeBanner lists the layout decisions so editors can review typography
// even without a PDF viewer.
func writeBanner(b *strings.Builder, t *compose.GeneratedTemplate) {
	b.WriteString("<div class=\"fallback-banner\">\n<h2>HTML-Vorschau — PDF-Renderer nicht verfügbar</h2>\n")
	b.WriteString("<table>\n<tr><th>#</th><th>Variante</th><th>Score</th><th>Schrift</th><th>Spalten</th><th>Hinweise</th></tr>\n")
	for i, d := range t.Metadata.Decisions {
		fmt.Fprintf(b, "<tr><td>%d</td><td>%s</td><td>%d</td><td>%.1fpt / %.2f</td><td>%d</td><td>%s</td></tr>\n",
			i+1, stdhtml.EscapeString(d.Variant.ID), d.Score, d.FontSize, d.LineHeight, d.Columns,
			stdhtml.EscapeString(strings.Join(d.Warnings, "; ")))
	}
	b.WriteString("</table>\n</div>\n")
}

// extractBody parses the composed document and re-serializes the children
// of its <body>, dropping the doctype/html/head wrappers.
func extractBody(doc string) (string, error) {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return "", err
	}
	body := findNode(root, atom.Body)
	if body == nil {
		// No wrapper present; pass the input through unchanged.
		return doc, nil
	}

	var buf bytes.Buffer
	for c := body.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}

func findNode(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findNode(c, a); found != nil {
			return found
		}
	}
	return nil
}
