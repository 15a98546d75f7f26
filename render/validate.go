package render

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/mwinterhoff/presswerk/compose"
)

// ValidateTemplate checks a composed document for defects the renderer
// would otherwise surface as a broken PDF: images without a source,
// unbalanced CSS blocks, and an empty article list. No PDF is produced.
func ValidateTemplate(t *compose.GeneratedTemplate) Validation {
	v := Validation{OK: true}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(t.HTML))
	if err != nil {
		v.OK = false
		v.Errors = append(v.Errors, fmt.Sprintf("document not parseable: %v", err))
		return v
	}

	doc.Find("img").Each(func(i int, s *goquery.Selection) {
		src, ok := s.Attr("src")
		if !ok || strings.TrimSpace(src) == "" {
			v.OK = false
			v.Errors = append(v.Errors, fmt.Sprintf("image %d has no source", i))
		}
	})

	if doc.Find("article").Length() == 0 {
		v.Warnings = append(v.Warnings, "document contains no articles")
	}

	doc.Find("style").Each(func(i int, s *goquery.Selection) {
		if err := checkCSS(s.Text()); err != nil {
			v.OK = false
			v.Errors = append(v.Errors, fmt.Sprintf("style block %d: %v", i, err))
		}
	})
	if err := checkCSS(t.CSS); err != nil {
		v.OK = false
		v.Errors = append(v.Errors, fmt.Sprintf("master css: %v", err))
	}

	return v
}

// checkCSS verifies brace balance. Paged engines silently drop everything
// after an unbalanced rule, which turns into missing page geometry.
func checkCSS(css string) error {
	depth := 0
	for i, r := range css {
		switch r {
		case '{':
			depth++
		case '}':
			depth--
			if depth < 0 {
				return fmt.Errorf("unbalanced '}' at offset %d", i)
			}
		}
	}
	if depth != 0 {
		return fmt.Errorf("%d unclosed '{'", depth)
	}
	return nil
}
