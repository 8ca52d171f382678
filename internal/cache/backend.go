package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/GTDGit/garimpo_api/internal/config"
)

// DocumentBackend persists whole documents under a fixed key.
// Load reports found=false when the key has never been written.
type DocumentBackend interface {
	Load(ctx context.Context, key string) (data []byte, found bool, err error)
	Save(ctx context.Context, key string, data []byte) error
}

// NewBackend builds the backend selected by configuration. redis may be nil unless
// the redis backend is selected.
func NewBackend(cfg *config.LocalCacheConfig, redis KeyValue) (DocumentBackend, error) {
	switch cfg.Backend {
	case "file":
		return NewFileBackend(cfg.Path)
	case "sqlite":
		return NewSQLiteBackend(filepath.Join(cfg.Path, "garimpo.db"))
	case "redis":
		if redis == nil {
			return nil, errors.New("redis backend selected but redis is not connected")
		}
		return NewRedisBackend(redis), nil
	default:
		return nil, fmt.Errorf("unknown local cache backend %q", cfg.Backend)
	}
}

// FileBackend stores each document as <dir>/<key>.json, replaced atomically.
type FileBackend struct {
	dir string
	mu  sync.Mutex
}

// NewFileBackend creates dir if needed.
func NewFileBackend(dir string) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &FileBackend{dir: dir}, nil
}

func (b *FileBackend) path(key string) string {
	return filepath.Join(b.dir, key+".json")
}

// Load reads the document file.
func (b *FileBackend) Load(_ context.Context, key string) ([]byte, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := os.ReadFile(b.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Save writes to a temp file in the same directory and renames it over the target,
// so readers never observe a half-written document.
func (b *FileBackend) Save(_ context.Context, key string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	tmp, err := os.CreateTemp(b.dir, key+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, b.path(key))
}

// SQLiteBackend keeps documents in a single key/value table of an embedded database.
type SQLiteBackend struct {
	db *sqlx.DB
}

// NewSQLiteBackend opens (or creates) the database file and its table.
func NewSQLiteBackend(path string) (*SQLiteBackend, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite cache: %w", err)
	}
	// single writer
	db.SetMaxOpenConns(1)

	const ddl = `CREATE TABLE IF NOT EXISTS documents (
        key TEXT PRIMARY KEY,
        value TEXT NOT NULL,
        updated_at INTEGER NOT NULL
    )`
	if _, err := db.Exec(ddl); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init sqlite cache: %w", err)
	}
	return &SQLiteBackend{db: db}, nil
}

// Load returns the stored document.
func (b *SQLiteBackend) Load(ctx context.Context, key string) ([]byte, bool, error) {
	var value string
	err := b.db.GetContext(ctx, &value, `SELECT value FROM documents WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return []byte(value), true, nil
}

// Save replaces the document in one statement.
func (b *SQLiteBackend) Save(ctx context.Context, key string, data []byte) error {
	const q = `INSERT INTO documents (key, value, updated_at) VALUES (?, ?, ?)
        ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	_, err := b.db.ExecContext(ctx, q, key, string(data), time.Now().UnixMilli())
	return err
}

// Close closes the database.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

// RedisBackend stores documents as plain Redis strings without expiry.
type RedisBackend struct {
	kv KeyValue
}

// NewRedisBackend wraps a Redis connection.
func NewRedisBackend(kv KeyValue) *RedisBackend {
	return &RedisBackend{kv: kv}
}

func (b *RedisBackend) redisKey(key string) string {
	return "garimpo:doc:" + key
}

// Load reads the document key.
func (b *RedisBackend) Load(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := b.kv.Get(ctx, b.redisKey(key))
	if errors.Is(err, ErrCacheMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return []byte(v), true, nil
}

// Save overwrites the document key.
func (b *RedisBackend) Save(ctx context.Context, key string, data []byte) error {
	return b.kv.Set(ctx, b.redisKey(key), string(data), 0)
}
