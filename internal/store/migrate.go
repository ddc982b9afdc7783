package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migrations returns the embedded, versioned SQL migrations.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrationFS, "migrations")
	if err != nil {
		panic("store: embedded migrations missing: " + err.Error())
	}
	return sub
}

// MigrationStatus describes one migration and whether it has been applied.
type MigrationStatus struct {
	Version int64
	Path    string
	Applied bool
}

// Migrate applies all pending migrations to the database at dsn and returns
// the resulting schema version.
func Migrate(ctx context.Context, dsn string) (int64, error) {
	p, closeDB, err := newMigrationProvider(dsn)
	if err != nil {
		return 0, err
	}
	defer closeDB()

	results, err := p.Up(ctx)
	if err != nil {
		return 0, fmt.Errorf("store: migrate: %w", err)
	}
	for _, r := range results {
		slog.Info("migration applied", "version", r.Source.Version, "path", r.Source.Path, "duration", r.Duration)
	}
	v, err := p.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("store: migrate: read version: %w", err)
	}
	return v, nil
}

// Status reports every known migration.
func Status(ctx context.Context, dsn string) ([]MigrationStatus, error) {
	p, closeDB, err := newMigrationProvider(dsn)
	if err != nil {
		return nil, err
	}
	defer closeDB()

	st, err := p.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: migration status: %w", err)
	}
	out := make([]MigrationStatus, 0, len(st))
	for _, s := range st {
		out = append(out, MigrationStatus{
			Version: s.Source.Version,
			Path:    s.Source.Path,
			Applied: s.State == goose.StateApplied,
		})
	}
	return out, nil
}

func newMigrationProvider(dsn string) (*goose.Provider, func(), error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("store: open database: %w", err)
	}
	p, err := goose.NewProvider(goose.DialectPostgres, db, Migrations())
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("store: migration provider: %w", err)
	}
	return p, func() { _ = db.Close() }, nil
}
