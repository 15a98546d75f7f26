package compose

import (
	"strings"
	"testing"
	"time"

	"github.com/mwinterhoff/presswerk/issue"
	"github.com/mwinterhoff/presswerk/layout"
)

func testIssue() *issue.Issue {
	return &issue.Issue{
		ID:       "2026-03",
		Title:    "Technik & Gesellschaft",
		Date:     time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Sections: []string{"Titelthema", "Meldungen"},
	}
}

func testPack() *issue.TemplatePack {
	return &issue.TemplatePack{ID: "p1", Name: "Modern", Version: "1.0"}
}

func item(slug, section, title, body string, d layout.Decision) Item {
	return Item{
		Article: issue.Article{
			ArticleID: slug,
			Section:   section,
			Title:     title,
			Author:    "Anna Beispiel",
			BodyHTML:  body,
		},
		Decision: d,
	}
}

func decision(cols int) layout.Decision {
	return layout.Decision{
		Variant:    issue.Variant{ID: "standard", Columns: cols},
		FontSize:   10.0,
		LineHeight: 1.45,
		Columns:    cols,
	}
}

func TestComposeDocumentStructure(t *testing.T) {
	items := []Item{
		item("leitartikel", "Titelthema", "Der Leitartikel", "<p>Text eins.</p>", decision(2)),
		item("kurzmeldung", "Meldungen", "Die Kurzmeldung", "<p>Text zwei.</p>", decision(1)),
	}

	tmpl := Compose(testIssue(), items, testPack())
	html := tmpl.HTML

	if got := strings.Count(html, "<article "); got != 2 {
		t.Fatalf("article blocks = %d, want 2", got)
	}
	// Reading order is preserved.
	if strings.Index(html, "art-leitartikel") > strings.Index(html, "art-kurzmeldung") {
		t.Error("articles out of order")
	}

	for _, want := range []string{
		"<html lang=\"de\">",
		"Ausgabe 2026-03",
		"1. März 2026",
		"Inhalt",
		"Impressum",
		"Von Anna Beispiel",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("document missing %q", want)
		}
	}

	if tmpl.Metadata.PageCount != 2+1+2 {
		t.Errorf("page count = %d, want 5", tmpl.Metadata.PageCount)
	}
	if len(tmpl.Metadata.Decisions) != 2 {
		t.Errorf("decisions = %d, want 2", len(tmpl.Metadata.Decisions))
	}
}

func TestComposeEscapesContent(t *testing.T) {
	items := []Item{
		item("xss", "Titelthema", `Titel <script>alert("x")</script>`, "<p>ok</p>", decision(1)),
	}
	tmpl := Compose(testIssue(), items, testPack())

	if strings.Contains(tmpl.HTML, "<script>alert") {
		t.Fatal("title interpolated unescaped")
	}
	if !strings.Contains(tmpl.HTML, "&lt;script&gt;") {
		t.Error("expected escaped title")
	}
}

func TestComposeMetadataCollectsDecisionWarnings(t *testing.T) {
	d1 := decision(2)
	d1.Warnings = []string{"Font size at minimum limit"}
	d2 := decision(3)
	d2.Warnings = []string{"Content overflow risk detected"}

	items := []Item{
		item("erster", "Titelthema", "Erster", "<p>Text.</p>", d1),
		item("zweiter", "Reportage", "Zweiter", "<p>Text.</p>", d2),
	}
	tmpl := Compose(testIssue(), items, testPack())

	want := []string{
		"erster: Font size at minimum limit",
		"zweiter: Content overflow risk detected",
		`article "zweiter": section "Reportage" not in issue sections`,
	}
	if len(tmpl.Metadata.Warnings) != len(want) {
		t.Fatalf("warnings = %v, want %v", tmpl.Metadata.Warnings, want)
	}
	for i, w := range want {
		if tmpl.Metadata.Warnings[i] != w {
			t.Errorf("warnings[%d] = %q, want %q", i, tmpl.Metadata.Warnings[i], w)
		}
	}
}

func TestComposeEscapesArticleID(t *testing.T) {
	// Intake rejects ids outside [a-z0-9-]; should one slip through anyway,
	// it must not break out of the id attribute.
	items := []Item{
		item(`x" onmouseover="1`, "Titelthema", "Titel", "<p>Text.</p>", decision(1)),
	}
	tmpl := Compose(testIssue(), items, testPack())

	if strings.Contains(tmpl.HTML, `id="art-x" onmouseover`) {
		t.Fatal("article id broke out of the id attribute")
	}
	if !strings.Contains(tmpl.HTML, "id=\"art-x&#34;") {
		t.Error("article id not escaped in attribute")
	}
}

func TestComposeStraySectionWarning(t *testing.T) {
	items := []Item{
		item("fremd", "Reportage", "Fremde Sektion", "<p>Text.</p>", decision(1)),
	}
	tmpl := Compose(testIssue(), items, testPack())

	if len(tmpl.Metadata.Warnings) != 1 {
		t.Fatalf("warnings = %v, want one stray-section warning", tmpl.Metadata.Warnings)
	}
	if !strings.Contains(tmpl.Metadata.Warnings[0], `section "Reportage"`) {
		t.Errorf("warning = %q", tmpl.Metadata.Warnings[0])
	}
	// The article itself is kept, grouped under its own section.
	if !strings.Contains(tmpl.HTML, "art-fremd") {
		t.Error("stray-section article dropped from document")
	}
	if !strings.Contains(tmpl.HTML, "<h3 class=\"toc-section\">Reportage</h3>") {
		t.Error("stray section missing from TOC")
	}
}

func TestComposePullquoteInsertedOnce(t *testing.T) {
	// Three paragraphs; the middle sentence is inside the pullquote length
	// bounds. The quote must appear exactly once, before paragraph 1.
	body := "<p>Kurz.</p>" +
		"<p>Dieser Satz liegt genau zwischen vierzig und hundertzwanzig Zeichen Laenge.</p>" +
		"<p>Auch kurz.</p>"

	d := decision(2)
	d.Variant.Pullquote = &issue.PullquoteSpec{Allow: true, MinParagraph: 2}

	tmpl := Compose(testIssue(), []Item{item("zitat", "Titelthema", "Mit Zitat", body, d)}, testPack())

	if got := strings.Count(tmpl.HTML, "class=\"pullquote\""); got != 1 {
		t.Fatalf("pullquote blocks = %d, want 1", got)
	}
	// floor(3/2) = 1: quote sits after paragraph 0, before paragraph 1.
	pq := strings.Index(tmpl.HTML, "class=\"pullquote\"")
	p0 := strings.Index(tmpl.HTML, "Kurz.")
	p1 := strings.Index(tmpl.HTML, "Dieser Satz")
	if !(p0 < pq && pq < p1) {
		t.Errorf("pullquote position: p0=%d pq=%d p1=%d", p0, pq, p1)
	}
}

func TestComposePullquoteRequiresEnoughParagraphs(t *testing.T) {
	body := "<p>Dieser Satz liegt genau zwischen vierzig und hundertzwanzig Zeichen Laenge.</p>"
	d := decision(1)
	d.Variant.Pullquote = &issue.PullquoteSpec{Allow: true, MinParagraph: 2}

	tmpl := Compose(testIssue(), []Item{item("solo", "Titelthema", "Einzeln", body, d)}, testPack())
	if strings.Contains(tmpl.HTML, "class=\"pullquote\"") {
		t.Error("pullquote inserted below min_paragraph")
	}
}

func TestComposeInlineFigureDistribution(t *testing.T) {
	// Four paragraphs, one inline image: figure goes after paragraph
	// floor(4*1/2) = 2.
	body := "<p>eins</p><p>zwei</p><p>drei</p><p>vier</p>"
	it := item("bilder", "Titelthema", "Mit Bildern", body, decision(2))
	it.Images = []issue.Image{
		{ID: "i1", Src: "inline.jpg", Role: issue.RoleInline, Caption: "Bildunterschrift"},
	}

	tmpl := Compose(testIssue(), []Item{it}, testPack())

	fig := strings.Index(tmpl.HTML, "<figure>")
	if fig < 0 {
		t.Fatal("inline figure missing")
	}
	p2 := strings.Index(tmpl.HTML, "<p>drei</p>")
	p3 := strings.Index(tmpl.HTML, "<p>vier</p>")
	if !(p2 < fig && fig < p3) {
		t.Errorf("figure position: p2=%d fig=%d p3=%d", p2, fig, p3)
	}
}

func TestComposeHeroUsesFocalPoint(t *testing.T) {
	it := item("held", "Titelthema", "Mit Held", "<p>Text.</p>", decision(1))
	it.Decision.HeroHeightVH = 40
	it.Images = []issue.Image{
		{ID: "h1", Src: "hero.jpg", Role: issue.RoleHero, FocalX: 0.25, FocalY: 0.75},
	}

	tmpl := Compose(testIssue(), []Item{it}, testPack())
	if !strings.Contains(tmpl.HTML, "object-position: 25% 75%") {
		t.Error("hero focal point not applied")
	}
}

func TestSelectPullquote(t *testing.T) {
	tests := []struct {
		name, body, want string
	}{
		{
			"first qualifying sentence",
			"<p>Zu kurz. Dieser Satz liegt genau zwischen vierzig und hundertzwanzig Zeichen. Noch einer hier.</p>",
			"Dieser Satz liegt genau zwischen vierzig und hundertzwanzig Zeichen",
		},
		{"all too short", "<p>Kurz. Sehr kurz. Winzig.</p>", ""},
		{"empty body", "", ""},
	}
	for _, tt := range tests {
		if got := SelectPullquote(tt.body); got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestArticleCSSScoping(t *testing.T) {
	d := decision(3)
	d.FontSize = 10.5
	d.LineHeight = 1.4
	css := ArticleCSS(d, "#art-test")

	for _, want := range []string{
		"#art-test .article-body",
		"font-size: 10.5pt",
		"line-height: 1.4",
		"column-count: 3",
	} {
		if !strings.Contains(css, want) {
			t.Errorf("css missing %q", want)
		}
	}
	if strings.Contains(css, "\n.article-body") {
		t.Error("unscoped selector leaked")
	}
}

func TestPageCountEstimate(t *testing.T) {
	// 2 front pages + ceil(n/2) TOC-ish + one page per article.
	tests := []struct{ n, want int }{
		{1, 4}, {2, 5}, {4, 8},
	}
	for _, tt := range tests {
		items := make([]Item, tt.n)
		for i := range items {
			items[i] = item("a", "Titelthema", "T", "<p>x</p>", decision(1))
		}
		tmpl := Compose(testIssue(), items, testPack())
		if tmpl.Metadata.PageCount != tt.want {
			t.Errorf("n=%d: page count = %d, want %d", tt.n, tmpl.Metadata.PageCount, tt.want)
		}
	}
}
