// Package db opens the server database for the configured backend, applies
// embedded goose migrations and vends the directory repository bound to it.
package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/almers2006/tresor/internal/server/directory"
	pgmigrations "github.com/almers2006/tresor/internal/server/migrations/postgres"
	litemigrations "github.com/almers2006/tresor/internal/server/migrations/sqlite"
)

// Manager owns the database connection and the repositories built on it.
type Manager struct {
	db        *sql.DB
	directory directory.Repository
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// NewManager opens the database named by driver ("sqlite" or "postgres"),
// runs pending migrations and returns a ready Manager.
func NewManager(ctx context.Context, driver, dsn string) (*Manager, error) {
	switch driver {
	case "sqlite":
		db, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("db open: %w", err)
		}
		goose.SetBaseFS(litemigrations.Migrations)
		if err := goose.SetDialect("sqlite3"); err != nil {
			_ = db.Close()
			return nil, err
		}
		if err := gooseUpContext(ctx, db, "."); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return &Manager{db: db, directory: directory.NewSQLiteRepository(db)}, nil

	case "postgres":
		db, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("db open: %w", err)
		}
		goose.SetBaseFS(pgmigrations.Migrations)
		if err := goose.SetDialect("pgx"); err != nil {
			_ = db.Close()
			return nil, err
		}
		if err := gooseUpContext(ctx, db, "."); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return &Manager{db: db, directory: directory.NewPostgresRepository(db)}, nil

	default:
		return nil, fmt.Errorf("unknown database driver: %q", driver)
	}
}

// Directory returns the directory repository.
func (m *Manager) Directory() directory.Repository { return m.directory }

func (m *Manager) Close() error { return m.db.Close() }
