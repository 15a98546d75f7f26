// Package measure derives layout-relevant metrics from an article's body.
//
// All measurements are purely lexical: tags are stripped by a linear scan,
// never parsed, so malformed HTML can never fail analysis.
package measure

import (
	"strings"
	"unicode"

	"github.com/mwinterhoff/presswerk/issue"
)

// longParagraphWords is the threshold above which a paragraph is
// considered long for readability scoring.
const longParagraphWords = 100

// wordsPerLine is the abstract line width used for the line estimate.
const wordsPerLine = 10

// Metrics is the measured profile of one article. Derived, never persisted.
type Metrics struct {
	WordCount         int
	ParagraphCount    int
	CharCount         int
	HeroImage         *issue.Image
	InlineImages      []issue.Image
	HasLongParagraphs bool
	EstimatedLines    int
}

// Analyze measures an article body and classifies its images.
// It never fails: any input produces a metrics record.
func Analyze(a *issue.Article, images []issue.Image) Metrics {
	plain := StripTags(a.BodyHTML)

	m := Metrics{
		WordCount:      len(strings.Fields(plain)),
		ParagraphCount: strings.Count(strings.ToLower(a.BodyHTML), "</p>"),
		CharCount:      len(plain),
	}

	for _, p := range Paragraphs(a.BodyHTML) {
		if len(strings.Fields(StripTags(p))) > longParagraphWords {
			m.HasLongParagraphs = true
			break
		}
	}

	for _, img := range images {
		switch img.Role {
		case issue.RoleHero:
			if m.HeroImage == nil {
				hero := img
				m.HeroImage = &hero
			}
		case issue.RoleInline:
			m.InlineImages = append(m.InlineImages, img)
		}
	}

	m.EstimatedLines = (m.WordCount + wordsPerLine - 1) / wordsPerLine
	return m
}

// StripTags replaces every <...> run with a single space and collapses
// whitespace. Purely lexical; unterminated tags swallow the remainder.
func StripTags(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
			sb.WriteByte(' ')
		case r == '>':
			inTag = false
		case !inTag:
			sb.WriteRune(r)
		}
	}
	return collapseSpace(sb.String())
}

// Paragraphs splits body HTML into paragraph chunks at </p> and <p ...>
// boundaries. Chunks still contain inline markup; callers strip as needed.
func Paragraphs(body string) []string {
	var parts []string
	rest := body
	for {
		ci := strings.Index(strings.ToLower(rest), "</p>")
		if ci < 0 {
			break
		}
		chunk := rest[:ci]
		// Drop everything up to and including the opening <p ...> tag.
		if open := strings.LastIndex(strings.ToLower(chunk), "<p"); open >= 0 {
			if end := strings.IndexByte(chunk[open:], '>'); end >= 0 {
				chunk = chunk[open+end+1:]
			}
		}
		if strings.TrimSpace(chunk) != "" {
			parts = append(parts, chunk)
		}
		rest = rest[ci+len("</p>"):]
	}
	return parts
}

func collapseSpace(s string) string {
	var sb strings.Builder
	prevSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !prevSpace && sb.Len() > 0 {
				sb.WriteByte(' ')
				prevSpace = true
			}
		} else {
			sb.WriteRune(r)
			prevSpace = false
		}
	}
	return strings.TrimSpace(sb.String())
}
