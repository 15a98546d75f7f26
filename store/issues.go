package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mwinterhoff/presswerk/issue"
)

const dateLayout = "2006-01-02"

// ImportIssue persists a validated intake in one transaction. Re-importing
// an issue ID replaces it wholesale: previous articles and images are
// dropped via the cascade.
func (s *Store) ImportIssue(ctx context.Context, in *issue.Intake) (*issue.Issue, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	sections, err := json.Marshal(in.Issue.Sections)
	if err != nil {
		return nil, fmt.Errorf("store: marshal sections: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM issues WHERE id = ?", in.Issue.ID); err != nil {
		return nil, fmt.Errorf("store: replace issue: %w", err)
	}

	q, args, err := qb.Insert("issues").
		Columns("id", "title", "date", "sections", "status", "created_at").
		Values(in.Issue.ID, in.Issue.Title, in.Issue.Date.Format(dateLayout),
			string(sections), string(issue.StatusDraft), now.Unix()).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("store: build insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, q, args...); err != nil {
		return nil, fmt.Errorf("store: insert issue: %w", err)
	}

	for _, ia := range in.Articles {
		a := ia.Article
		a.ID = s.newID()
		a.IssueID = in.Issue.ID
		a.CreatedAt = now

		q, args, err := qb.Insert("articles").
			Columns("id", "issue_id", "article_id", "section", "type",
				"title", "dek", "author", "body_html", "position", "created_at").
			Values(a.ID, a.IssueID, a.ArticleID, a.Section, string(a.Type),
				a.Title, a.Dek, a.Author, a.BodyHTML, a.Position, now.Unix()).
			ToSql()
		if err != nil {
			return nil, fmt.Errorf("store: build insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return nil, fmt.Errorf("store: insert article %q: %w", a.ArticleID, err)
		}

		for _, img := range ia.Images {
			img.ID = s.newID()
			img.ArticleID = a.ID

			q, args, err := qb.Insert("images").
				Columns("id", "article_id", "src", "role", "caption", "credit",
					"focal_x", "focal_y", "width", "height", "dpi", "position").
				Values(img.ID, img.ArticleID, img.Src, string(img.Role),
					img.Caption, img.Credit, img.FocalX, img.FocalY,
					img.Width, img.Height, img.DPI, img.Position).
				ToSql()
			if err != nil {
				return nil, fmt.Errorf("store: build insert: %w", err)
			}
			if _, err := tx.ExecContext(ctx, q, args...); err != nil {
				return nil, fmt.Errorf("store: insert image: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: commit: %w", err)
	}

	iss := in.Issue
	iss.Status = issue.StatusDraft
	iss.CreatedAt = now
	return &iss, nil
}

// Issue loads one issue by ID.
func (s *Store) Issue(ctx context.Context, id string) (*issue.Issue, error) {
	q, args, err := qb.Select("id", "title", "date", "sections", "status", "created_at").
		From("issues").Where("id = ?", id).ToSql()
	if err != nil {
		return nil, fmt.Errorf("store: build select: %w", err)
	}
	return scanIssue(s.db.QueryRowContext(ctx, q, args...))
}

// Issues lists all issues, newest first.
func (s *Store) Issues(ctx context.Context) ([]*issue.Issue, error) {
	q, args, err := qb.Select("id", "title", "date", "sections", "status", "created_at").
		From("issues").OrderBy("created_at DESC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("store: build select: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list issues: %w", err)
	}
	defer rows.Close()

	var out []*issue.Issue
	for rows.Next() {
		iss, err := scanIssue(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, iss)
	}
	return out, rows.Err()
}

// SetIssueStatus updates the lifecycle status of one issue.
func (s *Store) SetIssueStatus(ctx context.Context, id string, st issue.Status) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE issues SET status = ? WHERE id = ?", string(st), id)
	if err != nil {
		return fmt.Errorf("store: set issue status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Articles returns the issue's articles in insertion order. Callers that
// need section order sort against Issue.Sections.
func (s *Store) Articles(ctx context.Context, issueID string) ([]issue.Article, error) {
	q, args, err := qb.Select("id", "issue_id", "article_id", "section", "type",
		"title", "dek", "author", "body_html", "position", "created_at").
		From("articles").Where("issue_id = ?", issueID).OrderBy("position").ToSql()
	if err != nil {
		return nil, fmt.Errorf("store: build select: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list articles: %w", err)
	}
	defer rows.Close()

	var out []issue.Article
	for rows.Next() {
		var a issue.Article
		var typ string
		var created int64
		if err := rows.Scan(&a.ID, &a.IssueID, &a.ArticleID, &a.Section, &typ,
			&a.Title, &a.Dek, &a.Author, &a.BodyHTML, &a.Position, &created); err != nil {
			return nil, fmt.Errorf("store: scan article: %w", err)
		}
		a.Type = issue.ArticleType(typ)
		a.CreatedAt = time.Unix(created, 0).UTC()
		out = append(out, a)
	}
	return out, rows.Err()
}

// Images returns an article's images in position order.
func (s *Store) Images(ctx context.Context, articleID string) ([]issue.Image, error) {
	q, args, err := qb.Select("id", "article_id", "src", "role", "caption", "credit",
		"focal_x", "focal_y", "width", "height", "dpi", "position").
		From("images").Where("article_id = ?", articleID).OrderBy("position").ToSql()
	if err != nil {
		return nil, fmt.Errorf("store: build select: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list images: %w", err)
	}
	defer rows.Close()

	var out []issue.Image
	for rows.Next() {
		var img issue.Image
		var role string
		if err := rows.Scan(&img.ID, &img.ArticleID, &img.Src, &role,
			&img.Caption, &img.Credit, &img.FocalX, &img.FocalY,
			&img.Width, &img.Height, &img.DPI, &img.Position); err != nil {
			return nil, fmt.Errorf("store: scan image: %w", err)
		}
		img.Role = issue.ImageRole(role)
		out = append(out, img)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIssue(row rowScanner) (*issue.Issue, error) {
	var iss issue.Issue
	var date, sections, status string
	var created int64
	err := row.Scan(&iss.ID, &iss.Title, &date, &sections, &status, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan issue: %w", err)
	}
	iss.Date, err = time.Parse(dateLayout, date)
	if err != nil {
		return nil, fmt.Errorf("store: issue %s date: %w", iss.ID, err)
	}
	if err := json.Unmarshal([]byte(sections), &iss.Sections); err != nil {
		return nil, fmt.Errorf("store: issue %s sections: %w", iss.ID, err)
	}
	iss.Status = issue.Status(status)
	iss.CreatedAt = time.Unix(created, 0).UTC()
	return &iss, nil
}
