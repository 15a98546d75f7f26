// Package issue defines the magazine domain model: issues, articles,
// images, template packs, and render jobs, plus the intake JSON format
// that feeds them.
package issue

import "time"

// Status tracks an issue through its lifecycle.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Issue is one magazine issue: metadata plus an ordered set of section names.
type Issue struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Date      time.Time `json:"date"`
	Sections  []string  `json:"sections"` // order significant
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// HasSection reports whether name is one of the issue's sections.
func (i *Issue) HasSection(name string) bool {
	for _, s := range i.Sections {
		if s == name {
			return true
		}
	}
	return false
}

// ArticleType classifies an article's editorial weight.
type ArticleType string

const (
	TypeFeature   ArticleType = "feature"
	TypeArticle   ArticleType = "article"
	TypeReportage ArticleType = "reportage"
	TypeNews      ArticleType = "news"
	TypeEditorial ArticleType = "editorial"
)

// Article is one piece of content inside an issue. BodyHTML is a constrained
// fragment sanitized at intake; downstream components interpolate it raw.
type Article struct {
	ID        string      `json:"id"`
	IssueID   string      `json:"issue_id"`
	ArticleID string      `json:"article_id"` // human slug, unique within issue
	Section   string      `json:"section"`
	Type      ArticleType `json:"type"`
	Title     string      `json:"title"`
	Dek       string      `json:"dek,omitempty"`
	Author    string      `json:"author"`
	BodyHTML  string      `json:"body_html"`
	Position  int         `json:"position"` // insertion order within the issue
	CreatedAt time.Time   `json:"created_at"`
}

// ImageRole determines placement semantics in the composed document.
type ImageRole string

const (
	RoleHero    ImageRole = "hero"
	RoleInline  ImageRole = "inline"
	RoleGallery ImageRole = "gallery"
)

// Image belongs to an article. FocalX/FocalY are normalized to [0,1].
type Image struct {
	ID        string    `json:"id"`
	ArticleID string    `json:"article_id"`
	Src       string    `json:"src"`
	Role      ImageRole `json:"role"`
	Caption   string    `json:"caption,omitempty"`
	Credit    string    `json:"credit,omitempty"`
	FocalX    float64   `json:"focal_x"`
	FocalY    float64   `json:"focal_y"`
	Width     int       `json:"width,omitempty"`  // intrinsic pixels
	Height    int       `json:"height,omitempty"` // intrinsic pixels
	DPI       int       `json:"dpi,omitempty"`
	Position  int       `json:"position"`
}

// HeroSpec bounds the hero block height in viewport-height percent.
type HeroSpec struct {
	MinVH float64 `json:"min_vh" yaml:"min_vh"`
	MaxVH float64 `json:"max_vh" yaml:"max_vh"`
}

// BodySpec bounds body typography for one variant. Leading is [lo, hi].
type BodySpec struct {
	FontMin float64    `json:"font_min" yaml:"font_min"`
	FontMax float64    `json:"font_max" yaml:"font_max"`
	Leading [2]float64 `json:"leading" yaml:"leading"`
}

// PullquoteSpec controls pullquote eligibility for one variant.
type PullquoteSpec struct {
	Allow        bool `json:"allow" yaml:"allow"`
	MinParagraph int  `json:"min_paragraph" yaml:"min_paragraph"`
}

// Variant is a named layout recipe within a template pack. Optional fields
// fall back to the pack-wide RuleSet clamps.
type Variant struct {
	ID        string         `json:"id" yaml:"id"`
	Columns   int            `json:"columns" yaml:"columns"` // 1..3
	Hero      *HeroSpec      `json:"hero,omitempty" yaml:"hero,omitempty"`
	Body      *BodySpec      `json:"body,omitempty" yaml:"body,omitempty"`
	Pullquote *PullquoteSpec `json:"pullquote,omitempty" yaml:"pullquote,omitempty"`
}

// TypographyRules are pack-wide font and line-height clamps.
type TypographyRules struct {
	FontMin       float64 `json:"font_min" yaml:"font_min"`
	FontMax       float64 `json:"font_max" yaml:"font_max"`
	LineHeightMin float64 `json:"line_height_min" yaml:"line_height_min"`
	LineHeightMax float64 `json:"line_height_max" yaml:"line_height_max"`
}

// LayoutRules are pack-wide layout clamps.
type LayoutRules struct {
	MaxColumns    int `json:"max_columns" yaml:"max_columns"`
	MinTextLength int `json:"min_text_length" yaml:"min_text_length"`
	MaxTextLength int `json:"max_text_length" yaml:"max_text_length"`
}

// ImageRules are pack-wide image placement clamps.
type ImageRules struct {
	HeroRequiredWords  int `json:"hero_required_words" yaml:"hero_required_words"`
	MaxImagesPerColumn int `json:"max_images_per_column" yaml:"max_images_per_column"`
}

// RuleSet holds the pack-wide clamps used when a variant omits a field.
type RuleSet struct {
	Typography TypographyRules `json:"typography" yaml:"typography"`
	Layout     LayoutRules     `json:"layout" yaml:"layout"`
	Images     ImageRules      `json:"images" yaml:"images"`
}

// TemplatePack bundles variants and rules defining one visual identity.
// A pack is an immutable value once loaded for a job; toggling Active is
// a repository write, never a mutation of a cached pack.
type TemplatePack struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Version   string    `json:"version"`
	Active    bool      `json:"is_active"`
	Variants  []Variant `json:"variants"`
	Rules     RuleSet   `json:"rules"`
	CreatedAt time.Time `json:"created_at"`
}

// JobStatus tracks a render job through queued → processing → terminal.
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// RendererKind selects the render path for a job.
type RendererKind string

const (
	RendererPagedPrimary RendererKind = "paged_primary"
	RendererHTMLFallback RendererKind = "html_fallback"
)

// DecisionSummary is the condensed layout outcome embedded on a job.
type DecisionSummary struct {
	FontSize float64  `json:"fontSize"`
	Columns  int      `json:"columns"`
	Score    int      `json:"score"`
	Warnings []string `json:"warnings,omitempty"`
}

// RenderJob drives one issue+pack combination to a print artifact.
// Mutated only by the supervisor after creation.
type RenderJob struct {
	ID             string           `json:"id"`
	IssueID        string           `json:"issue_id"`
	TemplatePackID string           `json:"template_pack_id"`
	Renderer       RendererKind     `json:"renderer"`
	Status         JobStatus        `json:"status"`
	Progress       int              `json:"progress"` // 0..100, monotone
	ArtifactURL    string           `json:"artifact_url,omitempty"`
	ErrorMessage   string           `json:"error_message,omitempty"`
	Warnings       []string         `json:"warnings,omitempty"`
	Decision       *DecisionSummary `json:"decision,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	StartedAt      *time.Time       `json:"started_at,omitempty"`
	CompletedAt    *time.Time       `json:"completed_at,omitempty"`
}
