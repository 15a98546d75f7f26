// Package press supervises render jobs end to end: load inputs, run the
// layout decisions, compose the paged document, drive the renderer, and
// persist the artifact, reporting progress along the way.
//
// A job that loses its PDF engine does not fail: the supervisor degrades
// to the standalone HTML artifact and completes with a warning. Only
// missing inputs, cancellation, or an unwritable artifact fail a job.
package press

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mwinterhoff/presswerk/compose"
	"github.com/mwinterhoff/presswerk/issue"
	"github.com/mwinterhoff/presswerk/layout"
	"github.com/mwinterhoff/presswerk/measure"
	"github.com/mwinterhoff/presswerk/render"
	"github.com/mwinterhoff/presswerk/store"
)

// fallbackWarning is recorded on every job that degrades to HTML.
const fallbackWarning = "PDF rendering unavailable in this environment, generated HTML preview instead"

// cancelledMessage is the error message of a cancelled job.
const cancelledMessage = "Job was cancelled"

// Config wires the supervisor's collaborators.
type Config struct {
	Store *store.Store

	// Renderer produces PDFs. nil puts the supervisor in fallback-only
	// mode: every job degrades to the HTML artifact.
	Renderer render.Renderer

	// ArtifactsDir is where artifacts are written.
	ArtifactsDir string

	// ArtifactBase is the URL prefix artifacts are served under.
	// Default: "/artifacts".
	ArtifactBase string

	RenderOpts render.Options

	Logger *slog.Logger

	// Now is the clock used for artifact names. Tests pin it.
	Now func() time.Time
}

func (c *Config) defaults() {
	if c.ArtifactBase == "" {
		c.ArtifactBase = "/artifacts"
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Supervisor runs render jobs. One Supervisor serves the whole process;
// Process is safe for concurrent jobs.
type Supervisor struct {
	cfg     Config
	cancels cancelRegistry
	proof   *proofWriter
}

// New creates a supervisor.
func New(cfg Config) *Supervisor {
	cfg.defaults()
	return &Supervisor{
		cfg:   cfg,
		proof: newProofWriter(),
	}
}

// Submit creates a queued job for the issue and pack and starts processing
// it in the background. An empty packID selects the active pack.
func (s *Supervisor) Submit(ctx context.Context, issueID, packID string) (*issue.RenderJob, error) {
	if _, err := s.cfg.Store.Issue(ctx, issueID); err != nil {
		return nil, fmt.Errorf("press: issue %s: %w", issueID, err)
	}
	if packID == "" {
		p, err := s.cfg.Store.ActivePack(ctx)
		if err != nil {
			return nil, fmt.Errorf("press: no active pack: %w", err)
		}
		packID = p.ID
	} else if _, err := s.cfg.Store.Pack(ctx, packID); err != nil {
		return nil, fmt.Errorf("press: pack %s: %w", packID, err)
	}

	job, err := s.cfg.Store.CreateJob(ctx, issueID, packID)
	if err != nil {
		return nil, err
	}

	go func() {
		if err := s.Process(context.Background(), job.ID); err != nil {
			s.cfg.Logger.Error("press: job finished with error", "job", job.ID, "error", err)
		}
	}()
	return job, nil
}

// Cancel requests cancellation of a running job. The job stops at the next
// progress checkpoint; past 85% it runs to completion.
func (s *Supervisor) Cancel(ctx context.Context, jobID string) error {
	job, err := s.cfg.Store.Job(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return store.ErrTerminal
	}
	s.cancels.request(jobID)
	return nil
}

// inputs is everything one job reads from the repository.
type inputs struct {
	issue *issue.Issue
	pack  *issue.TemplatePack
	items []compose.Item
}

// errCancelled aborts the pipeline between stages.
var errCancelled = errors.New("press: job cancelled")

// Process runs one job to a terminal state. It is normally invoked by
// Submit in a goroutine; tests call it directly.
func (s *Supervisor) Process(ctx context.Context, jobID string) error {
	log := s.cfg.Logger.With("job", jobID)
	defer s.cancels.clear(jobID)

	if err := s.cfg.Store.MarkJobStarted(ctx, jobID); err != nil {
		return fmt.Errorf("press: start job %s: %w", jobID, err)
	}
	job, err := s.cfg.Store.Job(ctx, jobID)
	if err != nil {
		return err
	}

	fail := func(msg string, warnings []string) error {
		if err := s.cfg.Store.FailJob(ctx, jobID, msg, warnings); err != nil {
			return err
		}
		s.cfg.Store.SetIssueStatus(ctx, job.IssueID, issue.StatusFailed)
		return nil
	}

	var warnings []string
	step := func(pct int) error {
		if err := s.cfg.Store.SetJobProgress(ctx, jobID, pct); err != nil {
			return err
		}
		if pct <= 85 && s.cancels.requested(jobID) {
			log.Info("press: job cancelled", "at", pct)
			if err := fail(cancelledMessage, warnings); err != nil {
				return err
			}
			return errCancelled
		}
		return nil
	}

	// 10: started, about to load inputs.
	if err := step(10); err != nil {
		return err
	}

	in, err := s.loadInputs(ctx, job)
	if err != nil {
		log.Error("press: inputs missing", "error", err)
		s.cfg.Store.FailJob(ctx, jobID, err.Error(), nil)
		return err
	}
	s.cfg.Store.SetIssueStatus(ctx, in.issue.ID, issue.StatusProcessing)

	// 25: inputs loaded.
	if err := step(25); err != nil {
		return err
	}

	// Layout decisions, one per article, in reading order.
	var lead *issue.DecisionSummary
	for i := range in.items {
		it := &in.items[i]
		m := measure.Analyze(&it.Article, it.Images)
		it.Decision = layout.Decide(m, in.pack.Variants, in.pack.Rules)
		if lead == nil {
			sum := it.Decision.Summary()
			lead = &sum
		}
	}

	// 50: decisions taken.
	if err := step(50); err != nil {
		return err
	}

	tmpl := compose.Compose(in.issue, in.items, in.pack)
	warnings = append(warnings, tmpl.Metadata.Warnings...)

	// Validation and rendering. Any engine problem from here on degrades
	// to the HTML artifact instead of failing the job.
	var engineErr error
	if s.cfg.Renderer == nil {
		engineErr = errors.New("no renderer configured")
	} else if err := s.cfg.Renderer.Initialize(ctx); err != nil {
		engineErr = err
	} else if v := s.cfg.Renderer.Validate(tmpl); !v.OK {
		engineErr = fmt.Errorf("template invalid: %s", strings.Join(v.Errors, "; "))
	} else {
		warnings = append(warnings, v.Warnings...)
	}

	// 70: document composed and validated.
	if err := step(70); err != nil {
		return err
	}

	var result *render.Result
	if engineErr == nil {
		result, engineErr = s.cfg.Renderer.Render(ctx, tmpl, s.cfg.RenderOpts)
		if result != nil && engineErr == nil {
			warnings = append(warnings, result.Warnings...)
		}
	}
	if engineErr != nil {
		result = nil
		log.Warn("press: degrading to html fallback", "reason", engineErr)
	}
	if err := step(85); err != nil {
		return err
	}

	// Persist the artifact. From here the job is no longer cancellable.
	name := artifactName(in.issue.ID, in.pack.Name, s.cfg.Now())
	var artifact string
	if result != nil {
		artifact = name + ".pdf"
		if err := s.writeArtifact(artifact, result.PDF); err != nil {
			log.Error("press: write artifact", "error", err)
			return fail(fmt.Sprintf("writing artifact: %v", err), warnings)
		}
	} else {
		warnings = append(warnings, fallbackWarning)
		html, err := render.Fallback(tmpl)
		if err != nil {
			log.Error("press: fallback compose", "error", err)
			return fail(fmt.Sprintf("generating fallback: %v", err), warnings)
		}
		artifact = name + ".html"
		if err := s.writeArtifact(artifact, []byte(html)); err != nil {
			log.Error("press: write artifact", "error", err)
			return fail(fmt.Sprintf("writing artifact: %v", err), warnings)
		}
		if err := s.cfg.Store.SetJobRenderer(ctx, jobID, issue.RendererHTMLFallback); err != nil {
			return err
		}
	}
	if err := s.cfg.Store.SetJobProgress(ctx, jobID, 95); err != nil {
		return err
	}

	// Proof report is best-effort: a conversion problem is a warning.
	if w := s.proof.write(filepath.Join(s.cfg.ArtifactsDir, artifact+".proof.md"), in, tmpl); w != "" {
		warnings = append(warnings, w)
	}

	url := s.cfg.ArtifactBase + "/" + artifact
	if err := s.cfg.Store.CompleteJob(ctx, jobID, url, warnings, lead); err != nil {
		return err
	}
	s.cfg.Store.SetIssueStatus(ctx, in.issue.ID, issue.StatusCompleted)
	log.Info("press: job completed", "artifact", url, "warnings", len(warnings))
	return nil
}

// loadInputs gathers the issue, pack, articles, and images and orders the
// articles by the issue's section order, then insertion order.
func (s *Supervisor) loadInputs(ctx context.Context, job *issue.RenderJob) (*inputs, error) {
	iss, err := s.cfg.Store.Issue(ctx, job.IssueID)
	if err != nil {
		return nil, fmt.Errorf("input not found: issue %s: %w", job.IssueID, err)
	}
	pack, err := s.cfg.Store.Pack(ctx, job.TemplatePackID)
	if err != nil {
		return nil, fmt.Errorf("input not found: template pack %s: %w", job.TemplatePackID, err)
	}
	articles, err := s.cfg.Store.Articles(ctx, iss.ID)
	if err != nil {
		return nil, fmt.Errorf("input not found: articles of %s: %w", iss.ID, err)
	}
	if len(articles) == 0 {
		return nil, fmt.Errorf("input not found: issue %s has no articles", iss.ID)
	}

	sectionRank := make(map[string]int, len(iss.Sections))
	for i, sec := range iss.Sections {
		sectionRank[sec] = i
	}
	rank := func(a issue.Article) int {
		if r, ok := sectionRank[a.Section]; ok {
			return r
		}
		return len(iss.Sections) // strays after the known sections
	}
	sort.SliceStable(articles, func(i, j int) bool {
		ri, rj := rank(articles[i]), rank(articles[j])
		if ri != rj {
			return ri < rj
		}
		return articles[i].Position < articles[j].Position
	})

	items := make([]compose.Item, 0, len(articles))
	for _, a := range articles {
		imgs, err := s.cfg.Store.Images(ctx, a.ID)
		if err != nil {
			return nil, fmt.Errorf("input not found: images of %s: %w", a.ArticleID, err)
		}
		items = append(items, compose.Item{Article: a, Images: imgs})
	}
	return &inputs{issue: iss, pack: pack, items: items}, nil
}

func (s *Supervisor) writeArtifact(name string, data []byte) error {
	if err := os.MkdirAll(s.cfg.ArtifactsDir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.cfg.ArtifactsDir, name), data, 0o644)
}

// artifactName builds "{issue}-{pack-slug}-{epoch_ms}" without extension.
func artifactName(issueID, packName string, now time.Time) string {
	return fmt.Sprintf("%s-%s-%d", issueID, slug(packName), now.UnixMilli())
}

// slug lowercases and turns whitespace runs into single hyphens.
func slug(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), "-")
}
