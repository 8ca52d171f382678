package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver

	appconfig "github.com/GTDGit/garimpo_api/internal/config"
)

// Retry policy: up to 5 attempts, exponential backoff starting at 500ms.
const (
	maxAttempts = 5
	baseDelay   = 500 * time.Millisecond
)

// DSN builds the PostgreSQL connection string for cfg.
func DSN(cfg *appconfig.DatabaseConfig) string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		url.QueryEscape(cfg.User), url.QueryEscape(cfg.Password), cfg.Host, cfg.Port, cfg.Name, cfg.SSLMode,
	)
}

// Open returns a pooled handle without contacting the server. Connections are
// made on first use, so a database that is down at startup can come back later.
func Open(cfg *appconfig.DatabaseConfig) (*sqlx.DB, error) {
	if cfg == nil {
		return nil, errors.New("nil database config")
	}
	db, err := sqlx.Open("postgres", DSN(cfg))
	if err != nil {
		return nil, err
	}
	setPool(db.DB)
	return db, nil
}

// Connect establishes a PostgreSQL connection, retrying while the server is
// still starting. The returned *sqlx.DB is pinged before returning.
func Connect(cfg *appconfig.DatabaseConfig) (*sqlx.DB, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		var db *sqlx.DB
		db, lastErr = Open(cfg)
		if lastErr != nil {
			if cfg == nil {
				return nil, lastErr
			}
			sleepWithBackoff(attempt, baseDelay)
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		lastErr = db.PingContext(ctx)
		cancel()
		if lastErr == nil {
			return db, nil
		}

		_ = db.Close()
		if attempt < maxAttempts {
			sleepWithBackoff(attempt, baseDelay)
		}
	}

	return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", maxAttempts, lastErr)
}

// setPool configures the connection pool for the database.
func setPool(db *sql.DB) {
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)
}

// sleepWithBackoff sleeps for base * 2^(attempt-1), capped to 5s.
func sleepWithBackoff(attempt int, base time.Duration) {
	d := base << (attempt - 1)
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	time.Sleep(d)
}
