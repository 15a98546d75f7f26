package compose

import (
	"fmt"
	"math"
	"strings"

	"github.com/mwinterhoff/presswerk/layout"
)

// ArticleCSS emits the scoped CSS fragment for one article from its layout
// decision. Every numeric value derives deterministically from the decision
// font size; the fragment is intended for a <style> element preceding the
// article container identified by scope (e.g. "#art-wolfsburg").
func ArticleCSS(d layout.Decision, scope string) string {
	f := d.FontSize
	var b strings.Builder

	rule := func(selector, body string) {
		b.WriteString(scope)
		b.WriteByte(' ')
		b.WriteString(selector)
		b.WriteString(" { ")
		b.WriteString(body)
		b.WriteString(" }\n")
	}

	rule(".article-title", fmt.Sprintf(
		"font-size: %dpt; line-height: 1.2; column-span: all; break-after: avoid; margin: 0 0 %dpt;",
		pt(f*2.8), pt(f*0.8)))

	rule(".article-dek", fmt.Sprintf(
		"font-size: %dpt; line-height: 1.4; column-span: all; margin: 0 0 %dpt;",
		pt(f*1.2), pt(f*0.6)))

	rule(".article-byline", fmt.Sprintf(
		"font-size: %dpt; text-transform: uppercase; letter-spacing: 0.5px; column-span: all; margin: 0 0 %dpt;",
		pt(f*0.9), pt(f)))

	rule(".article-body", fmt.Sprintf(
		"font-size: %.1fpt; line-height: %.2f; column-count: %d; column-gap: 24px; column-fill: balance; hyphens: auto; orphans: 2; widows: 2;",
		f, d.LineHeight, d.Columns))

	rule(".article-body > p:first-of-type::first-letter", fmt.Sprintf(
		"font-size: %dpt; float: left; line-height: 0.8; padding-right: 4pt; font-weight: 700;",
		pt(f*3.5)))

	rule(".article-body p", fmt.Sprintf(
		"margin: 0 0 %dpt; break-inside: avoid-column;",
		pt(f*0.8)))

	if d.HeroHeightVH > 0 {
		rule(".hero-image", fmt.Sprintf(
			"height: %gvh; column-span: all; break-after: avoid; overflow: hidden;",
			d.HeroHeightVH))
		rule(".hero-image img", "width: 100%; height: 100%; object-fit: cover;")
	}

	if d.Variant.Pullquote != nil && d.Variant.Pullquote.Allow {
		span := "all"
		if d.Columns > 2 {
			span = "2"
		}
		rule(".pullquote", fmt.Sprintf(
			"font-size: %dpt; line-height: 1.3; column-span: %s; break-inside: avoid; font-style: italic; border-top: 1pt solid #111; border-bottom: 1pt solid #111; padding: %dpt 0; margin: %dpt 0;",
			pt(f*1.4), span, pt(f*0.7), pt(f)))
	}

	rule("figure", "margin: 0 0 "+fmt.Sprintf("%dpt", pt(f*0.8))+"; break-inside: avoid-column;")
	rule("figure img", "width: 100%;")
	rule(".caption", fmt.Sprintf("font-size: %dpt; font-style: italic; margin-top: 2pt;", pt(f*0.85)))
	rule(".credit", fmt.Sprintf("font-size: %dpt; text-transform: uppercase; letter-spacing: 0.4px; color: #666;", pt(f*0.75)))

	return b.String()
}

// pt rounds a derived size to whole points.
func pt(f float64) int {
	return int(math.Round(f))
}
