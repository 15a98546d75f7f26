// Package render adapts external paged-media engines behind one interface.
//
// The primary renderer drives headless Chrome via CDP print-to-PDF; when it
// is unavailable or fails, callers fall back to a deterministic standalone
// HTML artifact (see Fallback).
package render

import (
	"context"
	"time"

	"github.com/mwinterhoff/presswerk/compose"
)

// Options are the PDF production knobs handed to the engine.
type Options struct {
	// PageFormat is "A4", "Letter" or "A3". Default: "A4".
	PageFormat string

	// MarginsMM are top, right, bottom, left in millimetres.
	// Default: 15, 15, 20, 15.
	MarginsMM [4]float64

	// Scale of the rendering. Default: 1.0.
	Scale float64

	Landscape bool

	// Timeout bounds one render call. Default: 60s.
	Timeout time.Duration
}

func (o *Options) defaults() {
	if o.PageFormat == "" {
		o.PageFormat = "A4"
	}
	if o.MarginsMM == ([4]float64{}) {
		o.MarginsMM = [4]float64{15, 15, 20, 15}
	}
	if o.Scale <= 0 {
		o.Scale = 1.0
	}
	if o.Timeout <= 0 {
		o.Timeout = 60 * time.Second
	}
}

// Validation is the outcome of a pre-render document check. It never
// produces a PDF.
type Validation struct {
	OK       bool     `json:"ok"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Result is one successful render.
type Result struct {
	PDF       []byte
	PageCount int
	Warnings  []string
	RenderMS  int64
}

// Renderer is the uniform contract over paged-media engines.
//
// Initialize is idempotent; Render consumes template.HTML (which already
// embeds the CSS); Close is safe to call multiple times. Implementations
// must detect a crashed engine and reinitialize transparently on next use.
type Renderer interface {
	Initialize(ctx context.Context) error
	Validate(t *compose.GeneratedTemplate) Validation
	Render(ctx context.Context, t *compose.GeneratedTemplate, opts Options) (*Result, error)
	Close() error
}
