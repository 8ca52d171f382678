package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

// RunMigrations applies every pending migration from source using golang-migrate.
func RunMigrations(db *sql.DB, source string) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("could not create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}
	return nil
}

// SchemaMigrator applies migrations the first time the database answers.
// A failed attempt is retried on the next call.
type SchemaMigrator struct {
	db      *sqlx.DB
	migrate func(*sql.DB) error

	mu      sync.Mutex
	applied bool
}

// NewSchemaMigrator creates a migrator reading migrations from source.
func NewSchemaMigrator(db *sqlx.DB, source string) *SchemaMigrator {
	return &SchemaMigrator{
		db: db,
		migrate: func(d *sql.DB) error {
			return RunMigrations(d, source)
		},
	}
}

// Ensure pings the database and applies migrations unless that already happened.
// It reports whether migrations ran during this call.
func (m *SchemaMigrator) Ensure(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.applied {
		return false, nil
	}
	if err := m.db.PingContext(ctx); err != nil {
		return false, fmt.Errorf("database not reachable: %w", err)
	}
	if err := m.migrate(m.db.DB); err != nil {
		return false, err
	}
	m.applied = true
	log.Info().Msg("migrations completed successfully")
	return true, nil
}

// Applied reports whether migrations have run.
func (m *SchemaMigrator) Applied() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applied
}
