package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/mwinterhoff/presswerk/issue"
)

func seqGen() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%04d", n)
	}
}

func testIntake() *issue.Intake {
	return &issue.Intake{
		Issue: issue.Issue{
			ID:       "2026-03",
			Title:    "Technik",
			Date:     time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
			Sections: []string{"Titelthema", "Meldungen"},
		},
		Articles: []issue.IntakeArticle{
			{
				Article: issue.Article{
					ArticleID: "leitartikel", Section: "Titelthema",
					Type: issue.TypeFeature, Title: "Der Leitartikel",
					Author: "Anna Beispiel", BodyHTML: "<p>Text.</p>", Position: 0,
				},
				Images: []issue.Image{
					{Src: "hero.jpg", Role: issue.RoleHero, FocalX: 0.5, FocalY: 0.5, Position: 0},
					{Src: "inline.jpg", Role: issue.RoleInline, FocalX: 0.5, FocalY: 0.5, Position: 1},
				},
			},
			{
				Article: issue.Article{
					ArticleID: "meldung", Section: "Meldungen",
					Type: issue.TypeNews, Title: "Eine Meldung",
					BodyHTML: "<p>Kurz.</p>", Position: 1,
				},
			},
		},
	}
}

func TestImportIssueRoundTrip(t *testing.T) {
	s := OpenMemory(t, WithIDGenerator(seqGen()))
	ctx := context.Background()

	iss, err := s.ImportIssue(ctx, testIntake())
	if err != nil {
		t.Fatal(err)
	}
	if iss.Status != issue.StatusDraft {
		t.Errorf("status = %s, want draft", iss.Status)
	}

	got, err := s.Issue(ctx, "2026-03")
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Technik" || len(got.Sections) != 2 {
		t.Errorf("issue = %+v", got)
	}
	if !got.Date.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("date = %v", got.Date)
	}

	articles, err := s.Articles(ctx, "2026-03")
	if err != nil {
		t.Fatal(err)
	}
	if len(articles) != 2 {
		t.Fatalf("articles = %d, want 2", len(articles))
	}
	if articles[0].ArticleID != "leitartikel" || articles[1].ArticleID != "meldung" {
		t.Errorf("order = %s, %s", articles[0].ArticleID, articles[1].ArticleID)
	}

	images, err := s.Images(ctx, articles[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(images) != 2 || images[0].Role != issue.RoleHero {
		t.Errorf("images = %+v", images)
	}
}

func TestImportIssueReplacesWholesale(t *testing.T) {
	s := OpenMemory(t, WithIDGenerator(seqGen()))
	ctx := context.Background()

	if _, err := s.ImportIssue(ctx, testIntake()); err != nil {
		t.Fatal(err)
	}

	// Re-import with a single different article.
	in := testIntake()
	in.Articles = in.Articles[:1]
	in.Articles[0].Article.ArticleID = "neu"
	if _, err := s.ImportIssue(ctx, in); err != nil {
		t.Fatal(err)
	}

	articles, err := s.Articles(ctx, "2026-03")
	if err != nil {
		t.Fatal(err)
	}
	if len(articles) != 1 || articles[0].ArticleID != "neu" {
		t.Errorf("articles after re-import = %+v", articles)
	}
}

func TestIssueNotFound(t *testing.T) {
	s := OpenMemory(t)
	if _, err := s.Issue(context.Background(), "fehlt"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSeedAndActivatePacks(t *testing.T) {
	s := OpenMemory(t, WithIDGenerator(seqGen()))
	ctx := context.Background()

	if err := s.SeedBuiltinPacks(ctx); err != nil {
		t.Fatal(err)
	}

	packs, err := s.Packs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(packs) != 2 {
		t.Fatalf("packs = %d, want 2 builtins", len(packs))
	}

	active, err := s.ActivePack(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(active.Variants) == 0 {
		t.Error("active pack has no variants")
	}

	// Seeding again must not duplicate.
	if err := s.SeedBuiltinPacks(ctx); err != nil {
		t.Fatal(err)
	}
	packs, _ = s.Packs(ctx)
	if len(packs) != 2 {
		t.Errorf("packs after reseed = %d, want 2", len(packs))
	}

	// Switching the active pack keeps exactly one active.
	var other *issue.TemplatePack
	for _, p := range packs {
		if p.ID != active.ID {
			other = p
		}
	}
	if err := s.ActivatePack(ctx, other.ID); err != nil {
		t.Fatal(err)
	}
	now, err := s.ActivePack(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if now.ID != other.ID {
		t.Errorf("active = %s, want %s", now.ID, other.ID)
	}

	if err := s.ActivatePack(ctx, "fehlt"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestJobLifecycle(t *testing.T) {
	s := OpenMemory(t, WithIDGenerator(seqGen()))
	ctx := context.Background()

	job, err := s.CreateJob(ctx, "2026-03", "pack-1")
	if err != nil {
		t.Fatal(err)
	}
	if job.Status != issue.JobQueued || job.Progress != 0 {
		t.Fatalf("job = %+v", job)
	}

	if err := s.MarkJobStarted(ctx, job.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.SetJobProgress(ctx, job.ID, 50); err != nil {
		t.Fatal(err)
	}
	// A lower value never decreases progress.
	if err := s.SetJobProgress(ctx, job.ID, 25); err != nil {
		t.Fatal(err)
	}
	got, _ := s.Job(ctx, job.ID)
	if got.Progress != 50 {
		t.Errorf("progress = %d, want 50", got.Progress)
	}
	if got.Status != issue.JobProcessing || got.StartedAt == nil {
		t.Errorf("job = %+v", got)
	}

	dec := &issue.DecisionSummary{FontSize: 10.0, Columns: 2, Score: 80}
	if err := s.CompleteJob(ctx, job.ID, "/artifacts/a.pdf", []string{"w1"}, dec); err != nil {
		t.Fatal(err)
	}

	got, _ = s.Job(ctx, job.ID)
	if got.Status != issue.JobCompleted || got.Progress != 100 {
		t.Errorf("job = %+v", got)
	}
	if got.ArtifactURL != "/artifacts/a.pdf" || got.CompletedAt == nil {
		t.Errorf("job = %+v", got)
	}
	if len(got.Warnings) != 1 || got.Warnings[0] != "w1" {
		t.Errorf("warnings = %v", got.Warnings)
	}
	if got.Decision == nil || got.Decision.Score != 80 {
		t.Errorf("decision = %+v", got.Decision)
	}
}

func TestJobTerminalIsImmutable(t *testing.T) {
	s := OpenMemory(t, WithIDGenerator(seqGen()))
	ctx := context.Background()

	job, _ := s.CreateJob(ctx, "2026-03", "pack-1")
	s.MarkJobStarted(ctx, job.ID)
	if err := s.FailJob(ctx, job.ID, "kaputt", nil); err != nil {
		t.Fatal(err)
	}

	if err := s.SetJobProgress(ctx, job.ID, 99); !errors.Is(err, ErrTerminal) {
		t.Errorf("progress on failed job: err = %v, want ErrTerminal", err)
	}
	if err := s.CompleteJob(ctx, job.ID, "x", nil, nil); !errors.Is(err, ErrTerminal) {
		t.Errorf("complete on failed job: err = %v, want ErrTerminal", err)
	}
	if err := s.FailJob(ctx, job.ID, "nochmal", nil); !errors.Is(err, ErrTerminal) {
		t.Errorf("fail on failed job: err = %v, want ErrTerminal", err)
	}

	got, _ := s.Job(ctx, job.ID)
	if got.ErrorMessage != "kaputt" {
		t.Errorf("error message overwritten: %q", got.ErrorMessage)
	}
	// A failed job keeps its last progress, never 100.
	if got.Progress == 100 {
		t.Error("failed job progress reached 100")
	}
}

func TestJobsListAndNotFound(t *testing.T) {
	s := OpenMemory(t, WithIDGenerator(seqGen()))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := s.CreateJob(ctx, "2026-03", "pack-1"); err != nil {
			t.Fatal(err)
		}
	}
	jobs, err := s.Jobs(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 2 {
		t.Errorf("jobs = %d, want 2 (limit)", len(jobs))
	}

	if _, err := s.Job(ctx, "fehlt"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if err := s.MarkJobStarted(ctx, "fehlt"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
