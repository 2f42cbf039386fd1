package store

import (
	"context"
	"fmt"
	"time"

	"github.com/blackwell-systems/brewdeps/internal/brew"
	"github.com/blackwell-systems/brewdeps/internal/graph"
)

const fetchedAtKey = "fetched_at"

// WriteGraph replaces the database contents with g in one transaction.
func (s *Store) WriteGraph(ctx context.Context, g *graph.Graph, fetchedAt time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"external_dependencies", "dependencies", "packages", "metadata"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return wrapQueryErr(err, "failed to clear %s", table)
		}
	}

	pkgStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO packages (name, kind, version, installed_on_request, top_level)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare package insert: %w", err)
	}
	defer pkgStmt.Close()

	for _, id := range g.Nodes() {
		record, err := g.Record(id)
		if err != nil {
			return err
		}
		top, err := g.IsTopLevel(id)
		if err != nil {
			return err
		}
		if _, err := pkgStmt.ExecContext(ctx, id.Name, id.Kind.String(), version(record), record.OnRequest(), top); err != nil {
			return fmt.Errorf("failed to insert package %s: %w", id, err)
		}
	}

	depStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO dependencies (package, package_kind, depends_on, depends_on_kind, dep_type)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare dependency insert: %w", err)
	}
	defer depStmt.Close()

	for _, e := range g.Edges() {
		if _, err := depStmt.ExecContext(ctx, e.From.Name, e.From.Kind.String(), e.To.Name, e.To.Kind.String(), e.Type.String()); err != nil {
			return fmt.Errorf("failed to insert dependency %s -> %s: %w", e.From, e.To, err)
		}
	}

	for _, ext := range g.Externals() {
		d := ext.Dependency
		_, err := tx.ExecContext(ctx, `
			INSERT INTO external_dependencies (package, package_kind, depends_on, depends_on_kind, dep_type)
			VALUES (?, ?, ?, ?, ?)
		`, ext.From.Name, ext.From.Kind.String(), d.Name, d.Kind.String(), d.Type.String())
		if err != nil {
			return fmt.Errorf("failed to insert external dependency %s -> %s: %w", ext.From, d.Name, err)
		}
	}

	if _, err := tx.ExecContext(ctx, "INSERT INTO metadata (key, value) VALUES (?, ?)",
		fetchedAtKey, fetchedAt.UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("failed to record fetch time: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit graph: %w", err)
	}
	return nil
}

func version(r brew.Record) string {
	switch rec := r.(type) {
	case *brew.Formula:
		if n := len(rec.InstalledVersions); n > 0 {
			return rec.InstalledVersions[n-1]
		}
		return rec.Version
	case *brew.Cask:
		if rec.InstalledVersion != "" {
			return rec.InstalledVersion
		}
		return rec.Version
	}
	return ""
}
