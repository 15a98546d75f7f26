package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/mwinterhoff/presswerk/issue"
)

// CreateJob enqueues a render job for one issue+pack combination.
func (s *Store) CreateJob(ctx context.Context, issueID, packID string) (*issue.RenderJob, error) {
	job := &issue.RenderJob{
		ID:             s.newID(),
		IssueID:        issueID,
		TemplatePackID: packID,
		Renderer:       issue.RendererPagedPrimary,
		Status:         issue.JobQueued,
		CreatedAt:      time.Now().UTC(),
	}

	q, args, err := qb.Insert("render_jobs").
		Columns("id", "issue_id", "template_pack_id", "renderer", "status", "progress", "created_at").
		Values(job.ID, job.IssueID, job.TemplatePackID, string(job.Renderer),
			string(job.Status), 0, job.CreatedAt.Unix()).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("store: build insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return nil, fmt.Errorf("store: insert job: %w", err)
	}
	return job, nil
}

// Job loads one render job by ID.
func (s *Store) Job(ctx context.Context, id string) (*issue.RenderJob, error) {
	q, args, err := jobColumns().Where("id = ?", id).ToSql()
	if err != nil {
		return nil, fmt.Errorf("store: build select: %w", err)
	}
	return scanJob(s.db.QueryRowContext(ctx, q, args...))
}

// Jobs lists render jobs, newest first, capped at limit (0 = 100).
func (s *Store) Jobs(ctx context.Context, limit int) ([]*issue.RenderJob, error) {
	if limit <= 0 {
		limit = 100
	}
	q, args, err := jobColumns().OrderBy("created_at DESC").Limit(uint64(limit)).ToSql()
	if err != nil {
		return nil, fmt.Errorf("store: build select: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list jobs: %w", err)
	}
	defer rows.Close()

	var out []*issue.RenderJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// MarkJobStarted moves a queued job into processing.
func (s *Store) MarkJobStarted(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE render_jobs SET status = ?, started_at = ? WHERE id = ? AND status = ?",
		string(issue.JobProcessing), time.Now().UTC().Unix(), id, string(issue.JobQueued))
	if err != nil {
		return fmt.Errorf("store: start job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return s.jobGuardErr(ctx, id)
	}
	return nil
}

// SetJobProgress raises the job's progress. Decreases are absorbed by
// max(), terminal jobs reject the write.
func (s *Store) SetJobProgress(ctx context.Context, id string, progress int) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE render_jobs SET progress = max(progress, ?) WHERE id = ? AND status NOT IN (?, ?)",
		progress, id, string(issue.JobCompleted), string(issue.JobFailed))
	if err != nil {
		return fmt.Errorf("store: set progress: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return s.jobGuardErr(ctx, id)
	}
	return nil
}

// SetJobRenderer records which render path actually produced the artifact.
func (s *Store) SetJobRenderer(ctx context.Context, id string, kind issue.RendererKind) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE render_jobs SET renderer = ? WHERE id = ? AND status NOT IN (?, ?)",
		string(kind), id, string(issue.JobCompleted), string(issue.JobFailed))
	if err != nil {
		return fmt.Errorf("store: set renderer: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return s.jobGuardErr(ctx, id)
	}
	return nil
}

// CompleteJob finalizes a job at 100% with its artifact, warnings, and
// layout summary. A job already terminal rejects the write.
func (s *Store) CompleteJob(ctx context.Context, id, artifactURL string, warnings []string, dec *issue.DecisionSummary) error {
	wj, err := json.Marshal(emptyToNilSafe(warnings))
	if err != nil {
		return fmt.Errorf("store: marshal warnings: %w", err)
	}
	var decJSON any
	if dec != nil {
		dj, err := json.Marshal(dec)
		if err != nil {
			return fmt.Errorf("store: marshal decision: %w", err)
		}
		decJSON = string(dj)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE render_jobs
		 SET status = ?, progress = 100, artifact_url = ?, warnings = ?, decision = ?, completed_at = ?
		 WHERE id = ? AND status NOT IN (?, ?)`,
		string(issue.JobCompleted), artifactURL, string(wj), decJSON,
		time.Now().UTC().Unix(), id, string(issue.JobCompleted), string(issue.JobFailed))
	if err != nil {
		return fmt.Errorf("store: complete job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return s.jobGuardErr(ctx, id)
	}
	return nil
}

// FailJob finalizes a job as failed, keeping whatever progress it reached.
func (s *Store) FailJob(ctx context.Context, id, msg string, warnings []string) error {
	wj, err := json.Marshal(emptyToNilSafe(warnings))
	if err != nil {
		return fmt.Errorf("store: marshal warnings: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE render_jobs
		 SET status = ?, error_message = ?, warnings = ?, completed_at = ?
		 WHERE id = ? AND status NOT IN (?, ?)`,
		string(issue.JobFailed), msg, string(wj), time.Now().UTC().Unix(),
		id, string(issue.JobCompleted), string(issue.JobFailed))
	if err != nil {
		return fmt.Errorf("store: fail job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return s.jobGuardErr(ctx, id)
	}
	return nil
}

// jobGuardErr distinguishes "no such job" from "job is terminal" after a
// conditional update matched zero rows.
func (s *Store) jobGuardErr(ctx context.Context, id string) error {
	if _, err := s.Job(ctx, id); errors.Is(err, ErrNotFound) {
		return ErrNotFound
	} else if err != nil {
		return err
	}
	return ErrTerminal
}

func jobColumns() sq.SelectBuilder {
	return qb.Select("id", "issue_id", "template_pack_id", "renderer", "status",
		"progress", "artifact_url", "error_message", "warnings", "decision",
		"created_at", "started_at", "completed_at").
		From("render_jobs")
}

func scanJob(row rowScanner) (*issue.RenderJob, error) {
	var j issue.RenderJob
	var renderer, status, warnings string
	var decision sql.NullString
	var created int64
	var started, completed sql.NullInt64

	err := row.Scan(&j.ID, &j.IssueID, &j.TemplatePackID, &renderer, &status,
		&j.Progress, &j.ArtifactURL, &j.ErrorMessage, &warnings, &decision,
		&created, &started, &completed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan job: %w", err)
	}

	j.Renderer = issue.RendererKind(renderer)
	j.Status = issue.JobStatus(status)
	if err := json.Unmarshal([]byte(warnings), &j.Warnings); err != nil {
		return nil, fmt.Errorf("store: job %s warnings: %w", j.ID, err)
	}
	if decision.Valid && decision.String != "" {
		var dec issue.DecisionSummary
		if err := json.Unmarshal([]byte(decision.String), &dec); err != nil {
			return nil, fmt.Errorf("store: job %s decision: %w", j.ID, err)
		}
		j.Decision = &dec
	}
	j.CreatedAt = time.Unix(created, 0).UTC()
	if started.Valid {
		t := time.Unix(started.Int64, 0).UTC()
		j.StartedAt = &t
	}
	if completed.Valid {
		t := time.Unix(completed.Int64, 0).UTC()
		j.CompletedAt = &t
	}
	return &j, nil
}

// emptyToNilSafe keeps the warnings column a JSON array even when nil.
func emptyToNilSafe(w []string) []string {
	if w == nil {
		return []string{}
	}
	return w
}
