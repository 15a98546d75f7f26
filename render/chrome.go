package render

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/mwinterhoff/presswerk/compose"
)

// ChromeConfig configures the headless Chrome renderer.
type ChromeConfig struct {
	// RemoteURL is the WebSocket URL of an external Chrome instance.
	// Empty = launch a local Chrome via launcher.
	RemoteURL string

	// RenderTimeout bounds one print-to-PDF call when Options carry no
	// timeout of their own. Default: 60s.
	RenderTimeout time.Duration

	Logger *slog.Logger
}

func (c *ChromeConfig) defaults() {
	if c.RenderTimeout <= 0 {
		c.RenderTimeout = 60 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Chrome renders paged documents by driving headless Chrome over CDP.
// Render calls are serialized; the engine is relaunched transparently when
// a previous crash is detected.
type Chrome struct {
	cfg ChromeConfig

	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	closed  bool
}

// NewChrome creates the renderer. Chrome itself is launched lazily by
// Initialize (or the first Render).
func NewChrome(cfg ChromeConfig) *Chrome {
	cfg.defaults()
	return &Chrome{cfg: cfg}
}

// Initialize launches Chrome or reuses a live instance. Idempotent.
func (c *Chrome) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("render: chrome renderer is closed")
	}
	return c.ensureLocked(ctx)
}

// ensureLocked connects to Chrome if there is no healthy instance yet.
func (c *Chrome) ensureLocked(ctx context.Context) error {
	if c.browser != nil {
		// Probe the connection; a crashed Chrome answers nothing.
		if _, err := c.browser.Pages(); err == nil {
			return nil
		}
		c.cfg.Logger.Warn("render: chrome unresponsive, relaunching")
		c.cleanupLocked()
	}

	wsURL := c.cfg.RemoteURL
	if wsURL == "" {
		l := launcher.New().Headless(true)
		u, err := l.Launch()
		if err != nil {
			return fmt.Errorf("render: launch: %w", err)
		}
		c.lnch = l
		wsURL = u
		c.cfg.Logger.Info("render: launched local chrome", "url", wsURL)
	} else {
		c.cfg.Logger.Info("render: connecting to remote chrome", "url", wsURL)
	}

	b := rod.New().ControlURL(wsURL).Context(ctx)
	if err := b.Connect(); err != nil {
		c.cleanupLocked()
		return fmt.Errorf("render: connect: %w", err)
	}
	c.browser = b
	return nil
}

// Validate checks the composed document without producing a PDF.
// See validate.go for the rule set.
func (c *Chrome) Validate(t *compose.GeneratedTemplate) Validation {
	return ValidateTemplate(t)
}

// Render prints the document to PDF bytes and inspects the result.
func (c *Chrome) Render(ctx context.Context, t *compose.GeneratedTemplate, opts Options) (*Result, error) {
	opts.defaults()
	if opts.Timeout <= 0 || opts.Timeout > c.cfg.RenderTimeout {
		opts.Timeout = c.cfg.RenderTimeout
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, fmt.Errorf("render: chrome renderer is closed")
	}
	if err := c.ensureLocked(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	renderCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	page, err := c.browser.Page(proto.TargetCreateTarget{URL: ""})
	if err != nil {
		return nil, fmt.Errorf("render: create page: %w", err)
	}
	defer page.Close()
	page = page.Context(renderCtx)

	if err := page.SetDocumentContent(t.HTML); err != nil {
		return nil, fmt.Errorf("render: set content: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		c.cfg.Logger.Warn("render: wait load", "error", err)
	}

	req := printRequest(opts)
	stream, err := page.PDF(req)
	if err != nil {
		if renderCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("render: timeout after %s", opts.Timeout)
		}
		return nil, fmt.Errorf("render: print: %w", err)
	}
	pdf, err := io.ReadAll(stream)
	if err != nil {
		return nil, fmt.Errorf("render: read stream: %w", err)
	}
	if len(pdf) == 0 {
		return nil, fmt.Errorf("render: empty PDF output")
	}

	res := &Result{PDF: pdf, RenderMS: time.Since(start).Milliseconds()}

	pages, err := pdfPageCount(pdf)
	if err != nil {
		return nil, fmt.Errorf("render: produced PDF unreadable: %w", err)
	}
	if pages == 0 {
		return nil, fmt.Errorf("render: produced PDF has no pages")
	}
	res.PageCount = pages

	c.cfg.Logger.Info("render: pdf produced",
		"bytes", len(pdf), "pages", pages, "ms", res.RenderMS)
	return res, nil
}

// Close shuts Chrome down. Safe to call multiple times.
func (c *Chrome) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.cleanupLocked()
	return nil
}

func (c *Chrome) cleanupLocked() {
	if c.browser != nil {
		c.browser.Close()
		c.browser = nil
	}
	if c.lnch != nil {
		c.lnch.Cleanup()
		c.lnch = nil
	}
}

// paperSizes in inches, per CDP's PrintToPDF unit.
var paperSizes = map[string][2]float64{
	"A4":     {8.27, 11.69},
	"A3":     {11.69, 16.54},
	"Letter": {8.5, 11.0},
}

const mmPerInch = 25.4

func printRequest(opts Options) *proto.PagePrintToPDF {
	size, ok := paperSizes[opts.PageFormat]
	if !ok {
		size = paperSizes["A4"]
	}
	w, h := size[0], size[1]

	req := &proto.PagePrintToPDF{
		Landscape:         opts.Landscape,
		PrintBackground:   true,
		PreferCSSPageSize: true,
		Scale:             f64(opts.Scale),
		PaperWidth:        f64(w),
		PaperHeight:       f64(h),
		MarginTop:         f64(opts.MarginsMM[0] / mmPerInch),
		MarginRight:       f64(opts.MarginsMM[1] / mmPerInch),
		MarginBottom:      f64(opts.MarginsMM[2] / mmPerInch),
		MarginLeft:        f64(opts.MarginsMM[3] / mmPerInch),
	}
	return req
}

func f64(v float64) *float64 { return &v }

// pdfPageCount reads the produced bytes back with pdfcpu. This catches
// truncated or corrupt output before it is persisted as an artifact.
func pdfPageCount(pdf []byte) (int, error) {
	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(pdf), conf)
	if err != nil {
		return 0, err
	}
	return ctx.PageCount, nil
}
