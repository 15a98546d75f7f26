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

// SavePack inserts a template pack or, when the name already exists,
// replaces its variants, rules, and version. The active flag and the
// original ID are preserved on update.
func (s *Store) SavePack(ctx context.Context, p *issue.TemplatePack) (*issue.TemplatePack, error) {
	variants, err := json.Marshal(p.Variants)
	if err != nil {
		return nil, fmt.Errorf("store: marshal variants: %w", err)
	}
	rules, err := json.Marshal(p.Rules)
	if err != nil {
		return nil, fmt.Errorf("store: marshal rules: %w", err)
	}

	existing, err := s.packByName(ctx, p.Name)
	switch {
	case err == nil:
		q, args, err := qb.Update("template_packs").
			Set("version", p.Version).
			Set("variants", string(variants)).
			Set("rules", string(rules)).
			Where("id = ?", existing.ID).ToSql()
		if err != nil {
			return nil, fmt.Errorf("store: build update: %w", err)
		}
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return nil, fmt.Errorf("store: update pack: %w", err)
		}
		return s.Pack(ctx, existing.ID)

	case errors.Is(err, ErrNotFound):
		saved := *p
		if saved.ID == "" {
			saved.ID = s.newID()
		}
		saved.CreatedAt = time.Now().UTC()
		q, args, err := qb.Insert("template_packs").
			Columns("id", "name", "version", "is_active", "variants", "rules", "created_at").
			Values(saved.ID, saved.Name, saved.Version, boolToInt(saved.Active),
				string(variants), string(rules), saved.CreatedAt.Unix()).
			ToSql()
		if err != nil {
			return nil, fmt.Errorf("store: build insert: %w", err)
		}
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return nil, fmt.Errorf("store: insert pack: %w", err)
		}
		return &saved, nil

	default:
		return nil, err
	}
}

// SeedBuiltinPacks loads the embedded packs that are not present yet and
// guarantees exactly one active pack afterwards.
func (s *Store) SeedBuiltinPacks(ctx context.Context) error {
	packs, err := issue.BuiltinPacks()
	if err != nil {
		return err
	}
	for _, p := range packs {
		if _, err := s.packByName(ctx, p.Name); err == nil {
			continue
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		if _, err := s.SavePack(ctx, p); err != nil {
			return err
		}
	}

	if _, err := s.ActivePack(ctx); errors.Is(err, ErrNotFound) {
		all, err := s.Packs(ctx)
		if err != nil {
			return err
		}
		if len(all) > 0 {
			return s.ActivatePack(ctx, all[0].ID)
		}
	} else if err != nil {
		return err
	}
	return nil
}

// Packs lists all template packs, oldest first.
func (s *Store) Packs(ctx context.Context) ([]*issue.TemplatePack, error) {
	q, args, err := packSelect().OrderBy("created_at", "name").ToSql()
	if err != nil {
		return nil, fmt.Errorf("store: build select: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list packs: %w", err)
	}
	defer rows.Close()

	var out []*issue.TemplatePack
	for rows.Next() {
		p, err := scanPack(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Pack loads one template pack by ID.
func (s *Store) Pack(ctx context.Context, id string) (*issue.TemplatePack, error) {
	q, args, err := packSelect().Where("id = ?", id).ToSql()
	if err != nil {
		return nil, fmt.Errorf("store: build select: %w", err)
	}
	return scanPack(s.db.QueryRowContext(ctx, q, args...))
}

// ActivePack returns the single active pack.
func (s *Store) ActivePack(ctx context.Context) (*issue.TemplatePack, error) {
	q, args, err := packSelect().Where("is_active = 1").ToSql()
	if err != nil {
		return nil, fmt.Errorf("store: build select: %w", err)
	}
	return scanPack(s.db.QueryRowContext(ctx, q, args...))
}

// ActivatePack makes one pack active and every other pack inactive, in a
// single transaction so there is never more or less than one active pack.
func (s *Store) ActivatePack(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "UPDATE template_packs SET is_active = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("store: activate pack: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, "UPDATE template_packs SET is_active = 0 WHERE id != ?", id); err != nil {
		return fmt.Errorf("store: deactivate packs: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

func (s *Store) packByName(ctx context.Context, name string) (*issue.TemplatePack, error) {
	q, args, err := packSelect().Where("name = ?", name).ToSql()
	if err != nil {
		return nil, fmt.Errorf("store: build select: %w", err)
	}
	return scanPack(s.db.QueryRowContext(ctx, q, args...))
}

func packSelect() sq.SelectBuilder {
	return qb.Select("id", "name", "version", "is_active", "variants", "rules", "created_at").
		From("template_packs")
}

func scanPack(row rowScanner) (*issue.TemplatePack, error) {
	var p issue.TemplatePack
	var active int
	var variants, rules string
	var created int64
	err := row.Scan(&p.ID, &p.Name, &p.Version, &active, &variants, &rules, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan pack: %w", err)
	}
	if err := json.Unmarshal([]byte(variants), &p.Variants); err != nil {
		return nil, fmt.Errorf("store: pack %s variants: %w", p.ID, err)
	}
	if err := json.Unmarshal([]byte(rules), &p.Rules); err != nil {
		return nil, fmt.Errorf("store: pack %s rules: %w", p.ID, err)
	}
	p.Active = active != 0
	p.CreatedAt = time.Unix(created, 0).UTC()
	return &p, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
