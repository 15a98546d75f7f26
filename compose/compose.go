// Package compose assembles one paged-media document (cover, table of
// contents, articles, imprint) from an issue and its per-article layout
// decisions, ready for a CSS Paged Media renderer.
package compose

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/mwinterhoff/presswerk/issue"
	"github.com/mwinterhoff/presswerk/layout"
	"github.com/mwinterhoff/presswerk/measure"
)

// Item is one article with its images and layout decision, in document
// order.
type Item struct {
	Article  issue.Article
	Images   []issue.Image
	Decision layout.Decision
}

// Metadata describes the composed document. PageCount is an estimate; true
// pagination is only known to the renderer.
type Metadata struct {
	PageCount int               `json:"page_count"`
	Decisions []layout.Decision `json:"decisions"`
	Warnings  []string          `json:"warnings,omitempty"`
}

// GeneratedTemplate is the single self-contained output document. HTML
// already embeds the master CSS plus one scoped style per article.
type GeneratedTemplate struct {
	HTML     string
	CSS      string
	Metadata Metadata
}

// tocStartPage is where the first article lands in the best-effort TOC
// numbering. The renderer owns real pagination.
const tocStartPage = 3

// Compose builds the paged document for an issue. Articles appear in input
// order; an article whose section is missing from the issue is kept and
// grouped under its own section name, with a warning in the metadata.
// Metadata.Warnings carries every decision's warnings in article order,
// prefixed with the article id, followed by any section warnings.
func Compose(iss *issue.Issue, items []Item, pack *issue.TemplatePack) *GeneratedTemplate {
	css := masterCSS(pack, time.Now())

	md := Metadata{
		PageCount: 2 + (len(items)+1)/2 + len(items),
	}
	for _, it := range items {
		md.Decisions = append(md.Decisions, it.Decision)
		for _, w := range it.Decision.Warnings {
			md.Warnings = append(md.Warnings, fmt.Sprintf("%s: %s", it.Article.ArticleID, w))
		}
	}
	for _, it := range items {
		if !iss.HasSection(it.Article.Section) {
			md.Warnings = append(md.Warnings, fmt.Sprintf(
				"article %q: section %q not in issue sections", it.Article.ArticleID, it.Article.Section))
		}
	}

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html lang=\"de\">\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&b, "<title>%s</title>\n", esc(iss.Title))
	b.WriteString("<style>\n")
	b.WriteString(css)
	b.WriteString("</style>\n</head>\n<body>\n")

	writeCover(&b, iss)
	writeTOC(&b, iss, items)
	for _, it := range items {
		writeArticle(&b, it)
	}
	writeImprint(&b, iss, pack)

	b.WriteString("</body>\n</html>\n")

	return &GeneratedTemplate{HTML: b.String(), CSS: css, Metadata: md}
}

func writeCover(b *strings.Builder, iss *issue.Issue) {
	b.WriteString("<section class=\"cover\">\n")
	b.WriteString("<div class=\"cover-band\"></div>\n")
	fmt.Fprintf(b, "<h1 class=\"cover-title\">%s</h1>\n", esc(iss.Title))
	fmt.Fprintf(b, "<p class=\"cover-issue\">Ausgabe %s</p>\n", esc(iss.ID))
	fmt.Fprintf(b, "<p class=\"cover-date\">%s</p>\n", esc(germanDate(iss.Date)))
	b.WriteString("</section>\n")
}

func writeTOC(b *strings.Builder, iss *issue.Issue, items []Item) {
	// Group by section: issue order first, then any stray sections in
	// article order under their own name.
	order := append([]string(nil), iss.Sections...)
	known := make(map[string]bool, len(order))
	for _, s := range order {
		known[s] = true
	}
	for _, it := range items {
		if !known[it.Article.Section] {
			known[it.Article.Section] = true
			order = append(order, it.Article.Section)
		}
	}

	b.WriteString("<section class=\"toc\">\n<h2 class=\"toc-title\">Inhalt</h2>\n")
	page := tocStartPage
	for _, section := range order {
		var rows []Item
		for _, it := range items {
			if it.Article.Section == section {
				rows = append(rows, it)
			}
		}
		if len(rows) == 0 {
			continue
		}
		fmt.Fprintf(b, "<h3 class=\"toc-section\">%s</h3>\n<ul class=\"toc-entries\">\n", esc(section))
		for _, it := range rows {
			fmt.Fprintf(b, "<li><span class=\"toc-entry-title\">%s</span><span class=\"toc-entry-author\">%s</span><span class=\"toc-entry-page\">%d</span></li>\n",
				esc(it.Article.Title), esc(it.Article.Author), page)
			page++
		}
		b.WriteString("</ul>\n")
	}
	b.WriteString("</section>\n")
}

func writeArticle(b *strings.Builder, it Item) {
	a := it.Article
	// Intake constrains article ids to [a-z0-9-], so the id is usable as a
	// CSS selector as-is. The attribute is escaped anyway.
	scope := "#art-" + a.ArticleID

	b.WriteString("<style>\n")
	b.WriteString(ArticleCSS(it.Decision, scope))
	b.WriteString("</style>\n")
	fmt.Fprintf(b, "<article class=\"article\" id=\"art-%s\">\n", esc(a.ArticleID))

	if it.Decision.HeroHeightVH > 0 {
		if hero := firstHero(it.Images); hero != nil {
			b.WriteString("<div class=\"hero-image\">\n")
			fmt.Fprintf(b, "<img src=\"%s\" alt=\"%s\" style=\"object-position: %.0f%% %.0f%%\">\n",
				esc(hero.Src), esc(hero.Caption), hero.FocalX*100, hero.FocalY*100)
			writeFigcaption(b, hero)
			b.WriteString("</div>\n")
		}
	}

	b.WriteString("<header>\n")
	fmt.Fprintf(b, "<h1 class=\"article-title\">%s</h1>\n", esc(a.Title))
	if a.Dek != "" {
		fmt.Fprintf(b, "<p class=\"article-dek\">%s</p>\n", esc(a.Dek))
	}
	if a.Author != "" {
		fmt.Fprintf(b, "<p class=\"article-byline\">Von %s</p>\n", esc(a.Author))
	}
	b.WriteString("</header>\n")

	b.WriteString("<div class=\"article-body\">\n")
	b.WriteString(interleaveBody(a.BodyHTML, it))
	b.WriteString("</div>\n</article>\n")
}

// interleaveBody splits the body at </p> boundaries and splices in inline
// image figures and, when eligible, one pullquote. BodyHTML is interpolated
// raw: sanitization happened at intake and is not repeated here.
func interleaveBody(body string, it Item) string {
	segs := splitParagraphs(body)
	n := len(segs)
	if n == 0 {
		return body
	}

	inline := inlineImages(it.Images)
	after := make(map[int][]string, len(inline))
	for i, img := range inline {
		p := n * (i + 1) / (len(inline) + 1)
		if p > n-1 {
			p = n - 1
		}
		after[p] = append(after[p], figureHTML(&img))
	}

	pq := ""
	pqAt := -1
	if v := it.Decision.Variant.Pullquote; v != nil && v.Allow && n >= v.MinParagraph {
		if q := SelectPullquote(body); q != "" {
			pq = fmt.Sprintf("<aside class=\"pullquote\">%s</aside>\n", esc(q))
			pqAt = n / 2
		}
	}

	var b strings.Builder
	for i, seg := range segs {
		if i == pqAt {
			b.WriteString(pq)
		}
		b.WriteString(seg)
		for _, fig := range after[i] {
			b.WriteString(fig)
		}
	}
	return b.String()
}

// splitParagraphs splits at </p>, keeping the closing tag with its chunk.
// Trailing non-paragraph content stays attached to the last chunk.
func splitParagraphs(body string) []string {
	parts := strings.SplitAfter(body, "</p>")
	if len(parts) > 1 && strings.TrimSpace(parts[len(parts)-1]) == "" {
		parts = parts[:len(parts)-1]
	} else if len(parts) > 1 {
		parts[len(parts)-2] += parts[len(parts)-1]
		parts = parts[:len(parts)-1]
	} else if strings.TrimSpace(parts[0]) == "" {
		return nil
	}
	return parts
}

var sentenceSplit = regexp.MustCompile(`[.!?]+`)

// Pullquote length bounds in characters.
const (
	pullquoteMin = 40
	pullquoteMax = 120
)

// SelectPullquote scans the plaintext body for the first sentence whose
// length falls inside the pullquote bounds. Empty when none qualifies.
func SelectPullquote(body string) string {
	plain := measure.StripTags(body)
	for _, s := range sentenceSplit.Split(plain, -1) {
		s = strings.TrimSpace(s)
		if len(s) >= pullquoteMin && len(s) <= pullquoteMax {
			return s
		}
	}
	return ""
}

func figureHTML(img *issue.Image) string {
	var b strings.Builder
	b.WriteString("<figure>\n")
	fmt.Fprintf(&b, "<img src=\"%s\" alt=\"%s\">\n", esc(img.Src), esc(img.Caption))
	writeFigcaption(&b, img)
	b.WriteString("</figure>\n")
	return b.String()
}

func writeFigcaption(b *strings.Builder, img *issue.Image) {
	if img.Caption == "" && img.Credit == "" {
		return
	}
	b.WriteString("<figcaption>")
	if img.Caption != "" {
		fmt.Fprintf(b, "<span class=\"caption\">%s</span>", esc(img.Caption))
	}
	if img.Credit != "" {
		fmt.Fprintf(b, " <span class=\"credit\">Foto: %s</span>", esc(img.Credit))
	}
	b.WriteString("</figcaption>\n")
}

func writeImprint(b *strings.Builder, iss *issue.Issue, pack *issue.TemplatePack) {
	b.WriteString("<section class=\"imprint\">\n<h2>Impressum</h2>\n")
	b.WriteString("<p>Herausgeber: Presswerk Verlagsgesellschaft</p>\n")
	b.WriteString("<p>Redaktion: presswerk render pipeline</p>\n")
	fmt.Fprintf(b, "<p>%s — %s</p>\n", esc(iss.Title), esc(germanDate(iss.Date)))
	fmt.Fprintf(b, "<p>Gestaltung: Vorlage %s, Version %s</p>\n", esc(pack.Name), esc(pack.Version))
	fmt.Fprintf(b, "<p>© %d. Alle Rechte vorbehalten.</p>\n", iss.Date.Year())
	b.WriteString("</section>\n")
}

func firstHero(images []issue.Image) *issue.Image {
	for i := range images {
		if images[i].Role == issue.RoleHero {
			return &images[i]
		}
	}
	return nil
}

func inlineImages(images []issue.Image) []issue.Image {
	var out []issue.Image
	for _, img := range images {
		if img.Role == issue.RoleInline {
			out = append(out, img)
		}
	}
	return out
}

var germanMonths = [...]string{
	"Januar", "Februar", "März", "April", "Mai", "Juni",
	"Juli", "August", "September", "Oktober", "November", "Dezember",
}

func germanDate(t time.Time) string {
	return fmt.Sprintf("%d. %s %d", t.Day(), germanMonths[t.Month()-1], t.Year())
}

// esc escapes &<>"' in content interpolated into the document.
func esc(s string) string {
	return html.EscapeString(s)
}
