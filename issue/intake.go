package issue

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
)

// ErrSchema marks any intake document that violates the import schema
// (missing fields, bad enums, numeric ranges). Mapped to 400 by the API.
var ErrSchema = errors.New("intake: schema violation")

// intakeDoc mirrors the import JSON wire format.
type intakeDoc struct {
	Issue struct {
		ID    string `json:"id"`
		Title string `json:"title"`
		Date  string `json:"date"` // YYYY-MM-DD
	} `json:"issue"`
	Sections []string `json:"sections"`
	Articles []struct {
		ID       string `json:"id"`
		Section  string `json:"section"`
		Type     string `json:"type"`
		Title    string `json:"title"`
		Dek      string `json:"dek"`
		Author   string `json:"author"`
		BodyHTML string `json:"body_html"`
		Images   []struct {
			Src        string `json:"src"`
			Role       string `json:"role"`
			Caption    string `json:"caption"`
			Credit     string `json:"credit"`
			FocalPoint string `json:"focal_point"` // "x,y", both in [0,1]
		} `json:"images"`
	} `json:"articles"`
}

// Intake is a fully validated import: one issue plus its articles and
// images, in document order. IDs are not yet assigned; the store does that
// when persisting.
type Intake struct {
	Issue    Issue
	Articles []IntakeArticle
}

// IntakeArticle pairs an article with its images.
type IntakeArticle struct {
	Article Article
	Images  []Image
}

// bodyPolicy is the sanitization policy for article bodies. This is the
// trust boundary: downstream components interpolate BodyHTML raw and never
// re-sanitize.
var bodyPolicy = func() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("p", "h2", "h3", "strong", "em", "ul", "ol", "li", "blockquote")
	p.AllowAttrs("href").OnElements("a")
	p.AllowStandardURLs()
	return p
}()

var validTypes = map[string]ArticleType{
	"feature":   TypeFeature,
	"article":   TypeArticle,
	"reportage": TypeReportage,
	"news":      TypeNews,
	"editorial": TypeEditorial,
}

var validRoles = map[string]ImageRole{
	"hero":    RoleHero,
	"inline":  RoleInline,
	"gallery": RoleGallery,
}

// articleSlug constrains article ids. Composition interpolates the id into
// HTML id attributes and CSS scope selectors, so anything beyond this
// charset is rejected up front.
var articleSlug = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// ParseIntake decodes and validates an import document. Unknown JSON keys
// are rejected. BodyHTML is sanitized to the permitted tag set; focal
// points are parsed once into typed pairs.
func ParseIntake(data []byte) (*Intake, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var doc intakeDoc
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchema, err)
	}

	if doc.Issue.ID == "" {
		return nil, fmt.Errorf("%w: issue.id is required", ErrSchema)
	}
	if doc.Issue.Title == "" {
		return nil, fmt.Errorf("%w: issue.title is required", ErrSchema)
	}
	date, err := time.Parse("2006-01-02", doc.Issue.Date)
	if err != nil {
		return nil, fmt.Errorf("%w: issue.date %q is not YYYY-MM-DD", ErrSchema, doc.Issue.Date)
	}
	if len(doc.Sections) == 0 {
		return nil, fmt.Errorf("%w: sections must not be empty", ErrSchema)
	}

	sections := make(map[string]bool, len(doc.Sections))
	for _, s := range doc.Sections {
		if s == "" {
			return nil, fmt.Errorf("%w: empty section name", ErrSchema)
		}
		if sections[s] {
			return nil, fmt.Errorf("%w: duplicate section %q", ErrSchema, s)
		}
		sections[s] = true
	}

	in := &Intake{
		Issue: Issue{
			ID:       doc.Issue.ID,
			Title:    doc.Issue.Title,
			Date:     date,
			Sections: doc.Sections,
			Status:   StatusDraft,
		},
	}

	slugs := make(map[string]bool, len(doc.Articles))
	for ai, a := range doc.Articles {
		loc := fmt.Sprintf("articles[%d]", ai)
		if a.ID == "" {
			return nil, fmt.Errorf("%w: %s.id is required", ErrSchema, loc)
		}
		if !articleSlug.MatchString(a.ID) {
			return nil, fmt.Errorf("%w: %s.id %q is not a slug (want [a-z0-9-])", ErrSchema, loc, a.ID)
		}
		if slugs[a.ID] {
			return nil, fmt.Errorf("%w: %s.id %q duplicated within issue", ErrSchema, loc, a.ID)
		}
		slugs[a.ID] = true
		if !sections[a.Section] {
			return nil, fmt.Errorf("%w: %s.section %q not in sections", ErrSchema, loc, a.Section)
		}
		typ, ok := validTypes[a.Type]
		if !ok {
			return nil, fmt.Errorf("%w: %s.type %q unknown", ErrSchema, loc, a.Type)
		}
		if a.Title == "" {
			return nil, fmt.Errorf("%w: %s.title is required", ErrSchema, loc)
		}

		art := IntakeArticle{Article: Article{
			ArticleID: a.ID,
			Section:   a.Section,
			Type:      typ,
			Title:     a.Title,
			Dek:       a.Dek,
			Author:    a.Author,
			BodyHTML:  bodyPolicy.Sanitize(a.BodyHTML),
			Position:  ai,
		}}

		for ii, img := range a.Images {
			iloc := fmt.Sprintf("%s.images[%d]", loc, ii)
			if img.Src == "" {
				return nil, fmt.Errorf("%w: %s.src is required", ErrSchema, iloc)
			}
			role, ok := validRoles[img.Role]
			if !ok {
				return nil, fmt.Errorf("%w: %s.role %q unknown", ErrSchema, iloc, img.Role)
			}
			fx, fy, err := parseFocalPoint(img.FocalPoint)
			if err != nil {
				return nil, fmt.Errorf("%w: %s.focal_point: %v", ErrSchema, iloc, err)
			}
			art.Images = append(art.Images, Image{
				Src:      img.Src,
				Role:     role,
				Caption:  img.Caption,
				Credit:   img.Credit,
				FocalX:   fx,
				FocalY:   fy,
				Position: ii,
			})
		}

		in.Articles = append(in.Articles, art)
	}

	return in, nil
}

// parseFocalPoint parses "x,y" with both coordinates in [0,1].
// An empty string means the image center.
func parseFocalPoint(s string) (float64, float64, error) {
	if s == "" {
		return 0.5, 0.5, nil
	}
	xs, ys, ok := strings.Cut(s, ",")
	if !ok {
		return 0, 0, fmt.Errorf("want %q, got %q", "x,y", s)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(xs), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("x: %v", err)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(ys), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("y: %v", err)
	}
	if x < 0 || x > 1 || y < 0 || y > 1 {
		return 0, 0, fmt.Errorf("coordinates %v,%v outside [0,1]", x, y)
	}
	return x, y, nil
}
