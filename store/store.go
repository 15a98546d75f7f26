// Package store is the SQLite repository behind the render pipeline:
// issues, articles, images, template packs, and render jobs.
//
// SQLite runs in WAL mode with a busy timeout, which gives the
// linearizable per-row updates the supervisor relies on.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"github.com/mwinterhoff/presswerk/idgen"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("store: not found")

// ErrTerminal is returned when a mutation hits a job already in a
// terminal state.
var ErrTerminal = errors.New("store: job is terminal")

const schema = `
CREATE TABLE IF NOT EXISTS issues (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	date       TEXT NOT NULL,
	sections   TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'draft',
	created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS articles (
	id         TEXT PRIMARY KEY,
	issue_id   TEXT NOT NULL REFERENCES issues(id) ON DELETE CASCADE,
	article_id TEXT NOT NULL,
	section    TEXT NOT NULL,
	type       TEXT NOT NULL,
	title      TEXT NOT NULL,
	dek        TEXT NOT NULL DEFAULT '',
	author     TEXT NOT NULL DEFAULT '',
	body_html  TEXT NOT NULL,
	position   INTEGER NOT NULL,
	created_at INTEGER NOT NULL,
	UNIQUE (issue_id, article_id)
);
CREATE INDEX IF NOT EXISTS idx_articles_issue ON articles(issue_id, position);
CREATE TABLE IF NOT EXISTS images (
	id         TEXT PRIMARY KEY,
	article_id TEXT NOT NULL REFERENCES articles(id) ON DELETE CASCADE,
	src        TEXT NOT NULL,
	role       TEXT NOT NULL,
	caption    TEXT NOT NULL DEFAULT '',
	credit     TEXT NOT NULL DEFAULT '',
	focal_x    REAL NOT NULL DEFAULT 0.5,
	focal_y    REAL NOT NULL DEFAULT 0.5,
	width      INTEGER NOT NULL DEFAULT 0,
	height     INTEGER NOT NULL DEFAULT 0,
	dpi        INTEGER NOT NULL DEFAULT 0,
	position   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_images_article ON images(article_id, position);
CREATE TABLE IF NOT EXISTS template_packs (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL UNIQUE,
	version    TEXT NOT NULL DEFAULT '',
	is_active  INTEGER NOT NULL DEFAULT 0,
	variants   TEXT NOT NULL,
	rules      TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS render_jobs (
	id               TEXT PRIMARY KEY,
	issue_id         TEXT NOT NULL,
	template_pack_id TEXT NOT NULL,
	renderer         TEXT NOT NULL DEFAULT 'paged_primary',
	status           TEXT NOT NULL DEFAULT 'queued',
	progress         INTEGER NOT NULL DEFAULT 0,
	artifact_url     TEXT NOT NULL DEFAULT '',
	error_message    TEXT NOT NULL DEFAULT '',
	warnings         TEXT NOT NULL DEFAULT '[]',
	decision         TEXT,
	created_at       INTEGER NOT NULL,
	started_at       INTEGER,
	completed_at     INTEGER
);
CREATE INDEX IF NOT EXISTS idx_jobs_status ON render_jobs(status, created_at);
`

// Store wraps the repository database.
type Store struct {
	db    *sql.DB
	newID idgen.Generator
}

// Option customises Open behaviour.
type Option func(*Store)

// WithIDGenerator sets a custom ID generator (tests use deterministic ones).
func WithIDGenerator(gen idgen.Generator) Option {
	return func(s *Store) { s.newID = gen }
}

// Open opens (and migrates) the repository at path with production-safe
// pragmas applied.
func Open(path string, opts ...Option) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("store: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: schema: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	s := &Store{db: db, newID: idgen.Default}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// OpenMemory opens an in-memory repository for testing. MaxOpenConns(1)
// keeps every query on the same in-memory database; cleanup is registered
// on t.
func OpenMemory(t testing.TB, opts ...Option) *Store {
	t.Helper()
	s, err := Open(":memory:", opts...)
	if err != nil {
		t.Fatalf("store.OpenMemory: %v", err)
	}
	s.db.SetMaxOpenConns(1)
	t.Cleanup(func() { s.Close() })
	return s
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// qb is the squirrel builder configured for SQLite placeholders.
var qb = sq.StatementBuilder.PlaceholderFormat(sq.Question)
